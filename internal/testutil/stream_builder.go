package testutil

import (
	"github.com/zysilm-ai/open-claude-pilot/core"
	"github.com/zysilm-ai/open-claude-pilot/model"
)

// StreamBuilder provides a fluent helper for scripting one model turn.
// Example:
//
//	turn := NewStreamBuilder().Text("Let me check").Call(0, "file_read").Args(0, `{"path":`).Args(0, `"/workspace/a"}`).Turn()
//
// Chain only the parts you need.
type StreamBuilder struct {
	items []core.StreamItem
	err   error
	hooks map[int]func()
}

// NewStreamBuilder creates an empty builder.
func NewStreamBuilder() *StreamBuilder { return &StreamBuilder{} }

// Text appends text fragments (chainable).
func (b *StreamBuilder) Text(fragments ...string) *StreamBuilder {
	for _, f := range fragments {
		b.items = append(b.items, core.TextItem(f))
	}
	return b
}

// Call appends the first delta of a tool call carrying its name (chainable).
// The call ID is derived from the index.
func (b *StreamBuilder) Call(index int, name string) *StreamBuilder {
	return b.Delta(core.ToolCallDelta{Index: index, ID: callID(index), Name: name})
}

// Args appends an argument fragment for index (chainable).
func (b *StreamBuilder) Args(index int, fragment string) *StreamBuilder {
	return b.Delta(core.ToolCallDelta{Index: index, Arguments: fragment})
}

// Delta appends a raw tool-call delta (chainable).
func (b *StreamBuilder) Delta(d core.ToolCallDelta) *StreamBuilder {
	b.items = append(b.items, core.ToolCallItem(d))
	return b
}

// Before registers fn to run before the next appended item is streamed
// (chainable).
func (b *StreamBuilder) Before(fn func()) *StreamBuilder {
	if b.hooks == nil {
		b.hooks = map[int]func(){}
	}
	b.hooks[len(b.items)] = fn
	return b
}

// Fail makes the turn end with err after its items (chainable).
func (b *StreamBuilder) Fail(err error) *StreamBuilder { b.err = err; return b }

// Items returns the scripted items.
func (b *StreamBuilder) Items() []core.StreamItem { return b.items }

// Turn returns the scripted model.Turn.
func (b *StreamBuilder) Turn() model.Turn {
	return model.Turn{Items: b.items, Err: b.err, BeforeItem: b.hooks}
}

// ToolTurn scripts a complete single tool call with the given raw argument text.
func ToolTurn(name, args string) model.Turn {
	b := NewStreamBuilder().Call(0, name)
	if args != "" {
		b.Args(0, args)
	}
	return b.Turn()
}

func callID(index int) string {
	return "call_" + string(rune('a'+index))
}
