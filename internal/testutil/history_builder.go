package testutil

import "github.com/zysilm-ai/open-claude-pilot/core"

// HistoryBuilder helps construct conversation history with fluent chaining.
// Example:
//
//	h := NewHistoryBuilder().User("hi").Assistant("hello").Build()
type HistoryBuilder struct {
	msgs []core.Message
}

// NewHistoryBuilder creates an empty builder.
func NewHistoryBuilder() *HistoryBuilder { return &HistoryBuilder{} }

// User appends a user message (chainable).
func (b *HistoryBuilder) User(text string) *HistoryBuilder {
	b.msgs = append(b.msgs, core.UserMessage(text))
	return b
}

// Assistant appends an assistant answer (chainable).
func (b *HistoryBuilder) Assistant(text string) *HistoryBuilder {
	b.msgs = append(b.msgs, core.AssistantMessage(text))
	return b
}

// ToolExchange appends an assistant tool call and its observation (chainable).
func (b *HistoryBuilder) ToolExchange(id, name, args, result string) *HistoryBuilder {
	b.msgs = append(b.msgs,
		core.AssistantToolCallMessage("", core.ToolCall{ID: id, Name: name, Arguments: args}),
		core.ToolMessage(id, name, result),
	)
	return b
}

// Build returns a copy of the accumulated messages.
func (b *HistoryBuilder) Build() []core.Message {
	return append([]core.Message(nil), b.msgs...)
}
