package task

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no task is registered for a session.
var ErrNotFound = errors.New("task: not found")

// Status is the lifecycle state of a Task.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusError     Status = "error"
)

// IsTerminal reports whether the status ends a task's lifecycle.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusError:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusRunning || s.IsTerminal()
}

// Task is a snapshot of a registry entry. Mutating a snapshot does not
// affect the registry.
type Task struct {
	SessionID string    `json:"session_id"`
	MessageID string    `json:"message_id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`

	done   <-chan struct{}
	cancel context.CancelFunc
}

// Done returns the channel closed when the run's goroutine exits. It is
// nil when the run was registered without a handle.
func (t Task) Done() <-chan struct{} { return t.done }

// Finished reports whether the run's goroutine has exited.
func (t Task) Finished() bool {
	if t.done == nil {
		return false
	}
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// reclaimable reports whether CleanupOld may drop the entry. Running
// entries are never reclaimable, even when their goroutine has exited.
func (t Task) reclaimable() bool {
	return t.Status.IsTerminal()
}
