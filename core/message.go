package core

// Role tags a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a complete function invocation recorded in history.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON object text
}

// Message is one entry of the conversation history handed to a model.
// Assistant messages may carry a ToolCall; tool messages reference the call
// they answer through ToolCallID.
type Message struct {
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	ToolCall   *ToolCall `json:"tool_call,omitempty"`
	ToolCallID string    `json:"tool_call_id,omitempty"`
	Name       string    `json:"name,omitempty"`
}

// SystemMessage creates a system instruction message.
func SystemMessage(text string) Message { return Message{Role: RoleSystem, Content: text} }

// UserMessage creates a user message.
func UserMessage(text string) Message { return Message{Role: RoleUser, Content: text} }

// AssistantMessage creates a plain assistant answer.
func AssistantMessage(text string) Message { return Message{Role: RoleAssistant, Content: text} }

// AssistantToolCallMessage creates an assistant turn that requested a tool.
func AssistantToolCallMessage(text string, call ToolCall) Message {
	return Message{Role: RoleAssistant, Content: text, ToolCall: &call}
}

// ToolMessage creates the observation message answering a tool call.
func ToolMessage(callID, name, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID, Name: name}
}
