package runner

import (
	"context"
	"sync"
)

// EnvelopeType discriminates transport-level envelope events.
type EnvelopeType string

const (
	EnvelopeUserMessageSaved EnvelopeType = "user_message_saved"
	EnvelopeStart            EnvelopeType = "start"
	EnvelopeEnd              EnvelopeType = "end"
	EnvelopeError            EnvelopeType = "error"
	EnvelopeCancelled        EnvelopeType = "cancelled"
)

// Envelope is a transport-level event framing an agent run.
type Envelope struct {
	Type      EnvelopeType `json:"type"`
	MessageID string       `json:"message_id,omitempty"`
	Content   string       `json:"content,omitempty"`
}

// Sender delivers events to a client. v is either a core.Event or an
// Envelope; both encode to the wire shape as JSON.
type Sender interface {
	Send(ctx context.Context, v any) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, v any) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, v any) error { return f(ctx, v) }

// Discard is a Sender that drops everything. It serves runs nobody watches.
var Discard Sender = SenderFunc(func(context.Context, any) error { return nil })

// CollectSender records everything it is sent. It is safe for concurrent
// use.
type CollectSender struct {
	mu    sync.Mutex
	items []any
}

// Send records v.
func (c *CollectSender) Send(_ context.Context, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, v)
	return nil
}

// Items returns a copy of everything sent so far.
func (c *CollectSender) Items() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.items...)
}
