package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zysilm-ai/open-claude-pilot/agent"
	"github.com/zysilm-ai/open-claude-pilot/core"
	"github.com/zysilm-ai/open-claude-pilot/logging"
	"github.com/zysilm-ai/open-claude-pilot/session"
	"github.com/zysilm-ai/open-claude-pilot/task"
)

const tracerName = "github.com/zysilm-ai/open-claude-pilot/runner"

// Agent executes one run. *agent.ReActAgent implements it.
type Agent interface {
	Run(ctx context.Context, input string, history []core.Message, emit agent.EmitFunc) (agent.RunResult, error)
}

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// Store persists messages and actions. Defaults to an in-memory store.
	Store session.Store
	// Tasks tracks live runs. Defaults to task.Default().
	Tasks *task.Registry
	// Logger defaults to a NoOp logger.
	Logger logging.Logger
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Runner coordinates agent runs for chat sessions. Public methods are safe
// for concurrent use.
type Runner struct {
	agent  Agent
	store  session.Store
	tasks  *task.Registry
	logger logging.Logger
	tracer trace.Tracer
}

// New constructs a Runner with optional overrides.
func New(a Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Store == nil {
		opts.Store = session.NewInMemoryStore()
	}
	if opts.Tasks == nil {
		opts.Tasks = task.Default()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}

	return &Runner{
		agent:  a,
		store:  opts.Store,
		tasks:  opts.Tasks,
		logger: logging.OrNoOp(opts.Logger),
		tracer: opts.TracerProvider.Tracer(tracerName),
	}
}

// Store returns the session store the runner persists into.
func (r *Runner) Store() session.Store { return r.store }

// Tasks returns the task registry the runner registers runs in.
func (r *Runner) Tasks() *task.Registry { return r.tasks }

// Run is the handle of a started run.
type Run struct {
	SessionID     string
	UserMessageID string
	// MessageID identifies the assistant message the run writes into.
	MessageID string

	done   chan struct{}
	result agent.RunResult
	status task.Status
	err    error
}

// Done returns a channel closed when the run has finished, including
// persistence of its final state.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run finishes or ctx is done.
func (r *Run) Wait(ctx context.Context) (agent.RunResult, error) {
	select {
	case <-r.done:
		return r.result, r.err
	case <-ctx.Done():
		return agent.RunResult{}, ctx.Err()
	}
}

// Status returns the terminal status of the run. It is only meaningful
// after Done is closed.
func (r *Run) Status() task.Status { return r.status }

// Start persists content as a user message of sessionID and starts an agent
// run answering it. The run outlives ctx: it is only stopped through Cancel
// (or by a newer run for the same session). Events are delivered to sender,
// which may be nil.
func (r *Runner) Start(ctx context.Context, sessionID, content string, sender Sender) (*Run, error) {
	if r.agent == nil {
		return nil, agent.ErrNoModel
	}
	if sender == nil {
		sender = Discard
	}

	out := &guardedSender{sender: sender, logger: r.logger, sessionID: sessionID}

	user, err := r.store.CreateMessage(ctx, session.Message{
		SessionID: sessionID,
		Role:      core.RoleUser,
		Content:   content,
	})
	if err != nil {
		return nil, fmt.Errorf("runner: save user message: %w", err)
	}

	out.send(ctx, Envelope{Type: EnvelopeUserMessageSaved, MessageID: user.ID})

	history, err := session.LoadHistory(ctx, r.store, sessionID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}

	assistant, err := r.store.CreateMessage(ctx, session.Message{
		SessionID: sessionID,
		Role:      core.RoleAssistant,
		Streaming: true,
	})
	if err != nil {
		return nil, fmt.Errorf("runner: create assistant message: %w", err)
	}

	// The run must survive the request that started it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	run := &Run{
		SessionID:     sessionID,
		UserMessageID: user.ID,
		MessageID:     assistant.ID,
		done:          make(chan struct{}),
	}

	// The task handle closes once the agent goroutine has fully unwound.
	handle := make(chan struct{})
	r.tasks.Register(sessionID, assistant.ID, handle, cancel)

	r.logger.Info("runner.run.start", "session_id", sessionID, "message_id", assistant.ID, "history", len(history))

	go func() {
		defer close(run.done)
		defer close(handle)
		defer cancel()

		r.execute(runCtx, run, content, history, out)
	}()

	return run, nil
}

// Cancel requests cancellation of the session's live run. It reports false
// when there is nothing to cancel.
func (r *Runner) Cancel(sessionID string) bool {
	return r.tasks.Cancel(sessionID)
}

func (r *Runner) execute(ctx context.Context, run *Run, input string, history []core.Message, out *guardedSender) {
	ctx, span := r.tracer.Start(ctx, "runner.run", trace.WithAttributes(
		attribute.String("session.id", run.SessionID),
		attribute.String("message.id", run.MessageID),
	))
	defer span.End()

	start := time.Now()

	// Persistence must complete even after the run is cancelled.
	persistCtx := context.WithoutCancel(ctx)
	rec := session.NewRecorder(r.store, run.MessageID, func(o *session.RecorderOptions) {
		o.Logger = r.logger
	})

	out.send(ctx, Envelope{Type: EnvelopeStart, MessageID: run.MessageID})

	result, err := r.agent.Run(ctx, input, history, func(ev core.Event) error {
		if err := rec.Apply(persistCtx, ev); err != nil {
			return err
		}
		out.send(ctx, ev)
		return nil
	})

	if ferr := rec.Finish(persistCtx); ferr != nil {
		r.logger.Error("runner.finish.failed", "session_id", run.SessionID, "message_id", run.MessageID, "error", ferr.Error())
		err = errors.Join(err, ferr)
	}

	// Terminal envelopes go out under the run context so a stalled client
	// cannot hold a cancelled run.
	status := task.StatusCompleted
	switch {
	case err != nil:
		status = task.StatusError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		out.send(ctx, Envelope{Type: EnvelopeError, MessageID: run.MessageID, Content: fmt.Sprintf("Agent error: %v", err)})
	case result.Cancelled:
		status = task.StatusCancelled
		out.send(ctx, Envelope{Type: EnvelopeCancelled, MessageID: run.MessageID})
	default:
		out.send(ctx, Envelope{Type: EnvelopeEnd, MessageID: run.MessageID})
	}

	if merr := r.tasks.MarkCompletedFor(run.SessionID, run.MessageID, status); merr != nil {
		// Superseded by a newer run, or cleaned up already.
		r.logger.Debug("runner.task.untracked", "session_id", run.SessionID, "message_id", run.MessageID, "error", merr.Error())
	}

	run.result = result
	run.status = status
	run.err = err

	span.SetAttributes(attribute.String("run.status", string(status)))

	logArgs := []any{
		"session_id", run.SessionID,
		"message_id", run.MessageID,
		"status", string(status),
		"iterations", result.Iterations,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		r.logger.Error("runner.run.failed", append(logArgs, "error", err.Error())...)
		return
	}
	r.logger.Info("runner.run.complete", logArgs...)
}

// guardedSender isolates transport failures from the run. After the first
// failed send the client is considered gone and later sends are dropped.
type guardedSender struct {
	sender    Sender
	logger    logging.Logger
	sessionID string

	mu     sync.Mutex
	failed bool
}

func (g *guardedSender) send(ctx context.Context, v any) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failed {
		return
	}
	if err := g.sender.Send(ctx, v); err != nil {
		g.failed = true
		g.logger.Warn("runner.send.failed", "session_id", g.sessionID, "error", err.Error())
	}
}
