package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zysilm-ai/open-claude-pilot/logging"
)

// Options configures a Registry.
type Options struct {
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
	// Logger receives lifecycle logs. Defaults to a NoOp logger.
	Logger logging.Logger
}

// Registry maps session IDs to their most recent agent run. All methods are
// safe for concurrent use; every mutation happens under a single mutex.
type Registry struct {
	clock  func() time.Time
	logger logging.Logger

	mu    sync.RWMutex
	tasks map[string]*Task
}

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// Default returns the process-wide registry, creating it on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry constructs an empty registry.
func NewRegistry(optFns ...func(o *Options)) *Registry {
	opts := Options{
		Clock:  time.Now,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Registry{
		clock:  opts.Clock,
		logger: logging.OrNoOp(opts.Logger),
		tasks:  make(map[string]*Task),
	}
}

// Register records a new running task for sessionID. done is closed when the
// run's goroutine exits and cancel stops the run; either may be nil. A
// still-running task for the same session is cancelled and marked cancelled
// before it is replaced.
func (r *Registry) Register(sessionID, messageID string, done <-chan struct{}, cancel context.CancelFunc) Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.tasks[sessionID]; ok && !prev.Status.IsTerminal() {
		if prev.cancel != nil {
			prev.cancel()
		}
		prev.Status = StatusCancelled

		r.logger.Info("task.superseded",
			"session_id", sessionID,
			"message_id", prev.MessageID,
			"new_message_id", messageID,
		)
	}

	t := &Task{
		SessionID: sessionID,
		MessageID: messageID,
		Status:    StatusRunning,
		CreatedAt: r.clock(),
		done:      done,
		cancel:    cancel,
	}
	r.tasks[sessionID] = t

	r.logger.Debug("task.registered", "session_id", sessionID, "message_id", messageID)

	return *t
}

// Get returns a snapshot of the task registered for sessionID.
func (r *Registry) Get(sessionID string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[sessionID]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Cancel requests cancellation of the running task for sessionID. It reports
// false when no task is registered or the task already reached a terminal
// status, so it returns true at most once per run.
func (r *Registry) Cancel(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[sessionID]
	if !ok || t.Status.IsTerminal() {
		return false
	}

	if t.cancel != nil {
		t.cancel()
	}
	t.Status = StatusCancelled

	r.logger.Info("task.cancelled", "session_id", sessionID, "message_id", t.MessageID)

	return true
}

// MarkCompleted sets the terminal status of the task for sessionID. The
// entry stays in the registry until it is cleaned up.
func (r *Registry) MarkCompleted(sessionID string, status Status) error {
	return r.markCompleted(sessionID, "", status)
}

// MarkCompletedFor is like MarkCompleted but only touches the entry when it
// still belongs to messageID. A run that was superseded by a newer one uses
// it so that it cannot overwrite its successor's status.
func (r *Registry) MarkCompletedFor(sessionID, messageID string, status Status) error {
	return r.markCompleted(sessionID, messageID, status)
}

func (r *Registry) markCompleted(sessionID, messageID string, status Status) error {
	if !status.IsTerminal() {
		return fmt.Errorf("task: %q is not a terminal status", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[sessionID]
	if !ok || (messageID != "" && t.MessageID != messageID) {
		return fmt.Errorf("task for session %s: %w", sessionID, ErrNotFound)
	}

	// A cancelled run that unwinds normally still reports cancelled.
	if t.Status == StatusCancelled && status == StatusCompleted {
		return nil
	}
	t.Status = status

	r.logger.Debug("task.completed", "session_id", sessionID, "message_id", t.MessageID, "status", string(status))

	return nil
}

// Cleanup removes the entry for sessionID regardless of its status. It
// reports whether an entry was removed.
func (r *Registry) Cleanup(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[sessionID]; !ok {
		return false
	}
	delete(r.tasks, sessionID)
	return true
}

// CleanupOld removes entries older than maxAge that carry a terminal status
// and returns how many were removed. Running entries are kept no matter how
// old they are.
func (r *Registry) CleanupOld(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	removed := 0

	for id, t := range r.tasks {
		if now.Sub(t.CreatedAt) <= maxAge || !t.reclaimable() {
			continue
		}
		delete(r.tasks, id)
		removed++
	}

	if removed > 0 {
		r.logger.Info("task.cleanup", "removed", removed, "remaining", len(r.tasks))
	}

	return removed
}

// Wait blocks until the run registered for sessionID exits or ctx is done.
// It returns ErrNotFound when no task is registered. Tasks registered
// without a done channel return immediately.
func (r *Registry) Wait(ctx context.Context, sessionID string) error {
	t, ok := r.Get(sessionID)
	if !ok {
		return fmt.Errorf("task for session %s: %w", sessionID, ErrNotFound)
	}
	if t.done == nil {
		return nil
	}

	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// StartJanitor runs CleanupOld every interval until ctx is done. The
// returned channel is closed once the janitor goroutine has exited.
func (r *Registry) StartJanitor(ctx context.Context, interval, maxAge time.Duration) <-chan struct{} {
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.CleanupOld(maxAge)
			}
		}
	}()

	return stopped
}
