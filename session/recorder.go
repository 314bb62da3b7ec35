package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zysilm-ai/open-claude-pilot/core"
	"github.com/zysilm-ai/open-claude-pilot/logging"
)

// ErrNoPendingAction is returned when an observation arrives before the
// action it answers.
var ErrNoPendingAction = errors.New("session: observation without pending action")

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	Logger logging.Logger
}

// Recorder applies the events of one agent run to the assistant message the
// run writes into. Each event is committed before Apply returns.
type Recorder struct {
	store     Store
	messageID string
	logger    logging.Logger

	mu      sync.Mutex
	pending string // id of the action awaiting its observation
	chunks  int
	actions int
}

// NewRecorder creates a recorder writing into messageID.
func NewRecorder(store Store, messageID string, optFns ...func(o *RecorderOptions)) *Recorder {
	opts := RecorderOptions{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Recorder{
		store:     store,
		messageID: messageID,
		logger:    logging.OrNoOp(opts.Logger),
	}
}

// MessageID returns the assistant message the recorder writes into.
func (r *Recorder) MessageID() string { return r.messageID }

// Apply persists ev. Progress-only events (action_streaming,
// action_args_chunk) are not stored.
func (r *Recorder) Apply(ctx context.Context, ev core.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Type {
	case core.EventChunk:
		if ev.Content == "" {
			return nil
		}
		if err := r.store.AppendMessageContent(ctx, r.messageID, ev.Content); err != nil {
			return fmt.Errorf("session: persist chunk: %w", err)
		}
		r.chunks++

	case core.EventAction:
		a, err := r.store.CreateAction(ctx, Action{
			MessageID: r.messageID,
			Tool:      ev.Tool,
			Input:     ev.Args,
			Status:    ActionPending,
			Step:      ev.Step,
		})
		if err != nil {
			return fmt.Errorf("session: persist action %s: %w", ev.Tool, err)
		}
		r.pending = a.ID
		r.actions++

		r.logger.Debug("session.action.saved", "message_id", r.messageID, "action_id", a.ID, "tool", ev.Tool)

	case core.EventObservation:
		if r.pending == "" {
			return ErrNoPendingAction
		}
		if err := r.store.CompleteAction(ctx, r.pending, ev.Content, ev.Success); err != nil {
			return fmt.Errorf("session: persist observation: %w", err)
		}

		r.logger.Debug("session.action.completed", "message_id", r.messageID, "action_id", r.pending, "success", ev.Success)
		r.pending = ""
	}

	return nil
}

// Finish clears the streaming flag of the assistant message. It must be
// called on every exit path of a run.
func (r *Recorder) Finish(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.SetStreaming(ctx, r.messageID, false); err != nil {
		return fmt.Errorf("session: finish message %s: %w", r.messageID, err)
	}

	r.logger.Debug("session.message.finished", "message_id", r.messageID, "chunks", r.chunks, "actions", r.actions)

	return nil
}
