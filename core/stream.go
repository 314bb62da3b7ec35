package core

// ToolCallDelta is an incremental fragment of a tool call as streamed by a
// model. Index identifies the call slot within one model turn; Name is
// usually present only on the first fragment of a slot.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// StreamItem is either a text fragment or a tool-call delta.
type StreamItem struct {
	Text     string
	ToolCall *ToolCallDelta
}

// TextItem wraps a text fragment.
func TextItem(text string) StreamItem { return StreamItem{Text: text} }

// ToolCallItem wraps a tool-call delta.
func ToolCallItem(d ToolCallDelta) StreamItem { return StreamItem{ToolCall: &d} }

// IsToolCall reports whether the item carries a tool-call delta.
func (i StreamItem) IsToolCall() bool { return i.ToolCall != nil }
