// Package pilot provides a high-level façade over the agent execution engine:
// a ReAct agent, the runner that persists and streams its events, and the
// task registry tracking one live run per chat session. Most applications
// interact with this package by:
//  1. Creating a Pilot via New() with a model stream source and a tool registry
//  2. Sending user messages asynchronously (Send) or synchronously (SendSync)
//  3. Cancelling a session's live run (Cancel)
//
// All defaults are safe for local development and testing; production
// deployments typically supply the sqlite session store and a structured
// logger.
package pilot

import (
	"context"

	"github.com/zysilm-ai/open-claude-pilot/agent"
	"github.com/zysilm-ai/open-claude-pilot/core"
	"github.com/zysilm-ai/open-claude-pilot/logging"
	"github.com/zysilm-ai/open-claude-pilot/model"
	"github.com/zysilm-ai/open-claude-pilot/runner"
	"github.com/zysilm-ai/open-claude-pilot/session"
	"github.com/zysilm-ai/open-claude-pilot/task"
	"github.com/zysilm-ai/open-claude-pilot/tool"
)

// Options configures the Pilot instance.
type Options struct {
	// Agent is the per-session agent configuration (instructions, enabled
	// tools, iteration bound).
	Agent agent.Config

	// EventBufferSize sets the channel buffer of Send. Values below 1 are
	// raised to 1.
	EventBufferSize int

	// Store defaults to an in-memory implementation if not provided.
	Store session.Store
	// Tasks defaults to task.Default().
	Tasks *task.Registry

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Pilot is the high-level façade aggregating the agent, runner and registry.
type Pilot struct {
	opts   Options
	agent  *agent.ReActAgent
	runner *runner.Runner
}

// New creates a Pilot answering with source and acting through tools.
func New(source model.StreamSource, tools *tool.Registry, optFns ...func(o *Options)) *Pilot {
	opts := Options{
		EventBufferSize: 100,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.EventBufferSize < 1 {
		opts.EventBufferSize = 1
	}

	a := agent.NewFromConfig(source, tools, opts.Agent, func(o *agent.Options) {
		o.Logger = opts.Logger
	})

	r := runner.New(a, func(o *runner.Options) {
		o.Store = opts.Store
		o.Tasks = opts.Tasks
		o.Logger = opts.Logger
	})

	return &Pilot{opts: opts, agent: a, runner: r}
}

// Runner exposes the underlying runner, e.g. for server.New.
func (p *Pilot) Runner() *runner.Runner { return p.runner }

// Agent exposes the underlying agent.
func (p *Pilot) Agent() *agent.ReActAgent { return p.agent }

// Send starts a run answering content in sessionID. The returned channel
// carries every envelope (runner.Envelope) and event (core.Event) of the run
// and is closed when the run has finished. The run stops streaming to the
// channel once ctx is done but keeps executing and persisting. Once the run
// is cancelled, items that do not fit into the buffer are dropped.
func (p *Pilot) Send(ctx context.Context, sessionID, content string) (*runner.Run, <-chan any, error) {
	ch := make(chan any, p.opts.EventBufferSize)

	// sendCtx is done once the run is cancelled; a consumer that stops
	// reading must not hold the run past that point.
	sender := runner.SenderFunc(func(sendCtx context.Context, v any) error {
		select {
		case ch <- v:
			return nil
		default:
		}

		select {
		case ch <- v:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-sendCtx.Done():
			return sendCtx.Err()
		}
	})

	run, err := p.runner.Start(ctx, sessionID, content, sender)
	if err != nil {
		return nil, nil, err
	}

	go func() {
		<-run.Done()
		close(ch)
	}()

	return run, ch, nil
}

// SendSync is a synchronous helper that runs to completion and returns the
// agent events in emission order.
func (p *Pilot) SendSync(ctx context.Context, sessionID, content string) ([]core.Event, agent.RunResult, error) {
	run, ch, err := p.Send(ctx, sessionID, content)
	if err != nil {
		return nil, agent.RunResult{}, err
	}

	var events []core.Event
	for {
		select {
		case <-ctx.Done():
			// The run keeps going in the background; return what arrived.
			return events, agent.RunResult{}, ctx.Err()

		case v, ok := <-ch:
			if !ok {
				res, err := run.Wait(context.WithoutCancel(ctx))
				return events, res, err
			}
			if ev, isEvent := v.(core.Event); isEvent {
				events = append(events, ev)
			}
		}
	}
}

// Cancel requests cancellation of the session's live run.
func (p *Pilot) Cancel(sessionID string) bool { return p.runner.Cancel(sessionID) }

// Task returns the registry entry of the session's most recent run.
func (p *Pilot) Task(sessionID string) (task.Task, bool) { return p.runner.Tasks().Get(sessionID) }
