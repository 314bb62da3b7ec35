package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zysilm-ai/open-claude-pilot/core"
	"github.com/zysilm-ai/open-claude-pilot/logging"
	"github.com/zysilm-ai/open-claude-pilot/model"
	"github.com/zysilm-ai/open-claude-pilot/tool"
)

const tracerName = "github.com/zysilm-ai/open-claude-pilot/agent"

// ErrNoModel is returned by Run when the agent has no stream source.
var ErrNoModel = errors.New("agent: no model configured")

// EmitFunc receives every event of a run in emission order. A non-nil error
// aborts the run and is returned from Run.
type EmitFunc func(ev core.Event) error

// RunResult summarizes a finished run.
type RunResult struct {
	Iterations int
	// Answer is the text of the final iteration.
	Answer string
	// History is the conversation as handed to the model plus every message
	// added by this run.
	History      []core.Message
	LimitReached bool
	Cancelled    bool
}

// ReActAgent drives the reasoning/acting loop: stream a model turn, surface
// its events, execute at most one tool call and feed the observation back.
// A ReActAgent holds no per-run state and may serve concurrent runs.
type ReActAgent struct {
	source model.StreamSource
	tools  *tool.Registry
	opts   Options
	tracer trace.Tracer
}

// NewReActAgent creates an agent over source and tools. A nil registry means
// no tools.
func NewReActAgent(source model.StreamSource, tools *tool.Registry, optFns ...func(o *Options)) *ReActAgent {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	if tools == nil {
		tools = tool.NewRegistry()
	}

	return &ReActAgent{
		source: source,
		tools:  tools,
		opts:   opts,
		tracer: opts.TracerProvider.Tracer(tracerName),
	}
}

// NewFromConfig creates an agent restricted to cfg.EnabledTools.
func NewFromConfig(source model.StreamSource, tools *tool.Registry, cfg Config, optFns ...func(o *Options)) *ReActAgent {
	if tools != nil && len(cfg.EnabledTools) > 0 {
		tools = tools.Subset(cfg.EnabledTools)
	}
	return NewReActAgent(source, tools, append([]func(o *Options){WithConfig(cfg)}, optFns...)...)
}

// Tools returns the registry the agent executes against.
func (a *ReActAgent) Tools() *tool.Registry { return a.tools }

// MaxIterations returns the configured iteration bound.
func (a *ReActAgent) MaxIterations() int { return a.opts.MaxIterations }

// Run executes one agent run for input on top of history.
//
// Cancellation of ctx is cooperative: it is observed at the start of every
// iteration and before a tool call is surfaced, and ends the run with a nil
// error and RunResult.Cancelled set. Events already emitted stay valid. A
// stream failure is returned after every event that preceded it has been
// emitted.
func (a *ReActAgent) Run(ctx context.Context, input string, history []core.Message, emit EmitFunc) (RunResult, error) {
	if a.source == nil {
		return RunResult{}, ErrNoModel
	}

	ctx, span := a.tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("model.provider", a.source.Info().Provider),
		attribute.String("model.name", a.source.Info().Name),
		attribute.Int("agent.max_iterations", a.opts.MaxIterations),
	))
	defer span.End()

	start := time.Now()
	result := RunResult{}

	messages, err := a.initialMessages(ctx, input, history)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	defs := a.tools.Definitions()

	for step := 1; step <= a.opts.MaxIterations; step++ {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		result.Iterations = step
		out, err := a.iterate(ctx, step, messages, defs, emit)
		messages = out.messages
		if err != nil {
			if ctx.Err() != nil {
				// A stream torn down by cancellation is not a failure.
				result.Cancelled = true
				break
			}
			result.History = messages
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			a.opts.Logger.Error("agent.run.failed", "iterations", step, "error", err.Error(),
				"duration_ms", time.Since(start).Milliseconds())
			return result, err
		}

		result.Answer = out.text
		if out.cancelled {
			result.Cancelled = true
			break
		}
		if !out.toolCalled {
			break
		}
		if step == a.opts.MaxIterations {
			result.LimitReached = true
		}
	}

	result.History = messages
	span.SetAttributes(
		attribute.Int("agent.iterations", result.Iterations),
		attribute.Bool("agent.cancelled", result.Cancelled),
		attribute.Bool("agent.limit_reached", result.LimitReached),
	)
	a.opts.Logger.Info("agent.run.complete",
		"iterations", result.Iterations,
		"cancelled", result.Cancelled,
		"limit_reached", result.LimitReached,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (a *ReActAgent) initialMessages(ctx context.Context, input string, history []core.Message) ([]core.Message, error) {
	messages := make([]core.Message, 0, len(history)+2)

	if !a.opts.Instruction.IsZero() {
		system, err := a.opts.Instruction.Resolve(ctx, PromptData{
			Tools:     a.tools.Names(),
			Workspace: a.opts.Workspace,
		})
		if err != nil {
			return nil, fmt.Errorf("agent: resolve instruction: %w", err)
		}
		if system != "" {
			messages = append(messages, core.SystemMessage(system))
		}
	}

	messages = append(messages, history...)
	return append(messages, core.UserMessage(input)), nil
}

type iteration struct {
	messages   []core.Message
	text       string
	toolCalled bool
	cancelled  bool
}

func (a *ReActAgent) iterate(
	ctx context.Context,
	step int,
	messages []core.Message,
	defs []model.ToolDefinition,
	emit EmitFunc,
) (out iteration, err error) {
	ctx, span := a.tracer.Start(ctx, "agent.iteration", trace.WithAttributes(attribute.Int("agent.step", step)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	out.messages = messages
	a.opts.Logger.Debug("agent.iteration.start", "step", step, "messages", len(messages))

	acc := NewAccumulator(step)
	if err := a.consume(ctx, step, model.Request{Messages: messages, Tools: defs}, acc, emit); err != nil {
		return out, err
	}
	out.text = acc.Text()

	call, ok := acc.Selected()
	if !ok {
		out.messages = append(out.messages, core.AssistantMessage(out.text))
		out.cancelled = ctx.Err() != nil
		return out, nil
	}
	out.toolCalled = true

	if ctx.Err() != nil {
		out.cancelled = true
		return out, nil
	}

	if n := acc.StreamingCalls(); n > 1 {
		a.opts.Logger.Debug("agent.iteration.extra_calls_dropped", "step", step, "calls", n, "executed", call.Name)
	}

	res, err := a.act(ctx, step, call, emit)
	if err != nil {
		return out, err
	}

	callID := call.ID
	if callID == "" {
		callID = "call_" + core.NewID()
	}
	arguments := call.Arguments
	if arguments == "" {
		arguments = "{}"
	}
	out.messages = append(out.messages,
		core.AssistantToolCallMessage(out.text, core.ToolCall{ID: callID, Name: call.Name, Arguments: arguments}),
		core.ToolMessage(callID, call.Name, res.Content()),
	)
	return out, nil
}

// consume drives the model stream through the accumulator. When the stream
// is abandoned early the provider is cancelled and drained so its goroutine
// can exit.
func (a *ReActAgent) consume(ctx context.Context, step int, req model.Request, acc *Accumulator, emit EmitFunc) error {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	items, errs := a.source.Stream(streamCtx, req)

	count := 0
	for item := range items {
		count++
		for _, ev := range acc.Add(item) {
			if err := emit(ev); err != nil {
				cancel()
				for range items {
				}
				return fmt.Errorf("agent: emit %s event: %w", ev.Type, err)
			}
		}
	}

	if err := <-errs; err != nil {
		a.opts.Logger.Warn("agent.stream.failed", "step", step, "items", count, "error", err.Error())
		return fmt.Errorf("agent: stream step %d: %w", step, err)
	}
	a.opts.Logger.Debug("agent.stream.complete", "step", step, "items", count,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// act surfaces the selected call, executes it and surfaces the observation.
// Malformed arguments are reported as a failed observation without running
// the tool.
func (a *ReActAgent) act(ctx context.Context, step int, call PendingCall, emit EmitFunc) (tool.Result, error) {
	args, perr := call.Parse()
	if perr != nil {
		if err := emit(core.NewActionEvent(call.Name, map[string]any{}, step)); err != nil {
			return tool.Result{}, fmt.Errorf("agent: emit action event: %w", err)
		}
		res := tool.Failure(tool.CodeInvalidArguments,
			fmt.Sprintf("Invalid tool arguments for %s: %v", call.Name, perr),
			map[string]any{"tool": call.Name, "raw_arguments": call.Arguments})
		a.opts.Logger.Warn("agent.tool.invalid_arguments", "step", step, "tool", call.Name, "error", perr.Error())
		return res, a.observe(step, res, emit)
	}

	if err := emit(core.NewActionEvent(call.Name, args, step)); err != nil {
		return tool.Result{}, fmt.Errorf("agent: emit action event: %w", err)
	}

	start := time.Now()
	res := a.tools.Execute(ctx, call.Name, args)
	a.opts.Logger.Info("agent.tool.executed", "step", step, "tool", call.Name, "success", res.Success,
		"duration_ms", time.Since(start).Milliseconds())

	return res, a.observe(step, res, emit)
}

func (a *ReActAgent) observe(step int, res tool.Result, emit EmitFunc) error {
	if err := emit(core.NewObservationEvent(res.Content(), res.Success, step)); err != nil {
		return fmt.Errorf("agent: emit observation event: %w", err)
	}
	return nil
}
