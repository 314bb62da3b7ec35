package session

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/zysilm-ai/open-claude-pilot/core"
)

// ErrNotFound is returned when a message or action does not exist.
var ErrNotFound = errors.New("session: not found")

// Message is a persisted chat message.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      core.Role `json:"role"`
	Content   string    `json:"content"`
	Streaming bool      `json:"streaming"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActionStatus is the lifecycle state of a persisted tool action.
type ActionStatus string

const (
	ActionPending ActionStatus = "pending"
	ActionSuccess ActionStatus = "success"
	ActionError   ActionStatus = "error"
)

// Action is a persisted tool invocation attached to an assistant message.
type Action struct {
	ID        string         `json:"id"`
	MessageID string         `json:"message_id"`
	Tool      string         `json:"action_type"`
	Input     map[string]any `json:"action_input"`
	Output    map[string]any `json:"action_output,omitempty"`
	Status    ActionStatus   `json:"status"`
	Step      int            `json:"step"`
	CreatedAt time.Time      `json:"created_at"`
}

// Store persists messages and actions. Every method commits before it
// returns.
type Store interface {
	// CreateMessage inserts m. Empty ID and zero timestamps are filled in.
	CreateMessage(ctx context.Context, m Message) (Message, error)
	// AppendMessageContent appends delta to the message content and marks
	// it streaming.
	AppendMessageContent(ctx context.Context, messageID, delta string) error
	// SetStreaming updates the streaming flag of a message.
	SetStreaming(ctx context.Context, messageID string, streaming bool) error
	GetMessage(ctx context.Context, messageID string) (Message, error)
	// ListMessages returns the messages of a session, oldest first.
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)

	// CreateAction inserts a pending action. Empty ID and zero timestamps
	// are filled in.
	CreateAction(ctx context.Context, a Action) (Action, error)
	// CompleteAction records the outcome of an action.
	CompleteAction(ctx context.Context, actionID, result string, success bool) error
	// ListActions returns the actions of a message in creation order.
	ListActions(ctx context.Context, messageID string) ([]Action, error)
}

// ActionOutput builds the stored output document of a completed action.
func ActionOutput(result string, success bool) map[string]any {
	return map[string]any{"result": result, "success": success}
}

// ActionStatusFor maps a tool outcome to the stored action status.
func ActionStatusFor(success bool) ActionStatus {
	if success {
		return ActionSuccess
	}
	return ActionError
}

func (a Action) clone() Action {
	a.Input = maps.Clone(a.Input)
	a.Output = maps.Clone(a.Output)
	return a
}
