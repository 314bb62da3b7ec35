package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zysilm-ai/open-claude-pilot/core"
	"github.com/zysilm-ai/open-claude-pilot/internal/testutil"
	"github.com/zysilm-ai/open-claude-pilot/model"
	"github.com/zysilm-ai/open-claude-pilot/tool"
)

// MockTool records invocations through testify's mock.
type MockTool struct {
	mock.Mock
	name string
}

func newMockTool(name string) *MockTool { return &MockTool{name: name} }

func (m *MockTool) Name() string                 { return m.name }
func (m *MockTool) Description() string          { return "A mock tool named " + m.name }
func (m *MockTool) Parameters() []tool.Parameter { return nil }

func (m *MockTool) Execute(_ context.Context, args map[string]any) tool.Result {
	ret := m.Called(args)
	return ret.Get(0).(tool.Result)
}

func newAgent(t *testing.T, src model.StreamSource, tools []tool.Tool, optFns ...func(o *Options)) *ReActAgent {
	t.Helper()
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(tools...))
	return NewReActAgent(src, reg, optFns...)
}

func maxIterations(n int) func(o *Options) {
	return func(o *Options) { o.MaxIterations = n }
}

func indexOfType(events []core.Event, typ core.EventType) int {
	for i, ev := range events {
		if ev.Type == typ {
			return i
		}
	}
	return -1
}

// -------------------- Action Streaming Tests --------------------

func TestRun_ActionStreamingBeforeAction(t *testing.T) {
	toolA := newMockTool("tool_a")
	toolA.On("Execute", map[string]any{"x": 1.0}).Return(tool.Success("tool_a executed", nil)).Once()

	src := model.NewScriptedSource(
		testutil.NewStreamBuilder().Call(0, "tool_a").Args(0, `{"x"`).Args(0, `: 1}`).Turn(),
	)
	rec := testutil.NewEventRecorder()

	res, err := newAgent(t, src, []tool.Tool{toolA}, maxIterations(1)).Run(context.Background(), "Test message", nil, rec.Emit)
	require.NoError(t, err)
	toolA.AssertExpectations(t)

	streaming := rec.OfType(core.EventActionStreaming)
	require.Len(t, streaming, 1)
	assert.Equal(t, "tool_a", streaming[0].Tool)
	assert.Equal(t, "streaming", streaming[0].Status)
	assert.Equal(t, 1, streaming[0].Step)

	require.Len(t, rec.OfType(core.EventAction), 1)
	events := rec.Events()
	assert.Less(t, indexOfType(events, core.EventActionStreaming), indexOfType(events, core.EventAction))
	assert.Equal(t, []core.EventType{
		core.EventActionStreaming,
		core.EventActionArgsChunk,
		core.EventActionArgsChunk,
		core.EventAction,
		core.EventObservation,
	}, rec.Types())

	obs := rec.OfType(core.EventObservation)[0]
	assert.Equal(t, "tool_a executed", obs.Content)
	assert.True(t, obs.Success)
	assert.True(t, res.LimitReached)
	assert.Equal(t, 1, res.Iterations)
}

func TestRun_MultipleToolCallsExecutesLowestIndexOnly(t *testing.T) {
	toolA := newMockTool("tool_a")
	toolA.On("Execute", map[string]any{}).Return(tool.Success("a", nil)).Once()
	toolB := newMockTool("tool_b")

	src := model.NewScriptedSource(
		testutil.NewStreamBuilder().
			Call(0, "tool_a").Args(0, "{}").
			Call(1, "tool_b").Args(1, "{}").
			Turn(),
	)
	rec := testutil.NewEventRecorder()

	_, err := newAgent(t, src, []tool.Tool{toolA, toolB}, maxIterations(1)).Run(context.Background(), "go", nil, rec.Emit)
	require.NoError(t, err)

	streaming := rec.OfType(core.EventActionStreaming)
	require.Len(t, streaming, 2)
	assert.Equal(t, "tool_a", streaming[0].Tool)
	assert.Equal(t, "tool_b", streaming[1].Tool)

	actions := rec.OfType(core.EventAction)
	require.Len(t, actions, 1)
	assert.Equal(t, "tool_a", actions[0].Tool)
	assert.Len(t, rec.OfType(core.EventObservation), 1)

	toolA.AssertExpectations(t)
	toolB.AssertNotCalled(t, "Execute", mock.Anything)
}

func TestRun_NoDuplicateActionStreaming(t *testing.T) {
	toolA := newMockTool("tool_a")
	toolA.On("Execute", mock.Anything).Return(tool.Success("ok", nil))

	src := model.NewScriptedSource(
		testutil.NewStreamBuilder().
			Call(0, "tool_a").
			Delta(core.ToolCallDelta{Index: 0, Name: "tool_a", Arguments: `{"a":`}).
			Delta(core.ToolCallDelta{Index: 0, Name: "tool_a", Arguments: `1}`}).
			Turn(),
	)
	rec := testutil.NewEventRecorder()

	_, err := newAgent(t, src, []tool.Tool{toolA}, maxIterations(1)).Run(context.Background(), "go", nil, rec.Emit)
	require.NoError(t, err)
	assert.Len(t, rec.OfType(core.EventActionStreaming), 1)
}

func TestRun_TextResponseHasNoActionEvents(t *testing.T) {
	src := model.NewScriptedSource(model.Text("Hello", ", ", "world"))
	rec := testutil.NewEventRecorder()

	res, err := newAgent(t, src, nil).Run(context.Background(), "hi", nil, rec.Emit)
	require.NoError(t, err)

	assert.Equal(t, []core.EventType{core.EventChunk, core.EventChunk, core.EventChunk}, rec.Types())
	assert.Equal(t, "Hello, world", res.Answer)
	assert.Equal(t, 1, res.Iterations)
	assert.False(t, res.LimitReached)
	assert.False(t, res.Cancelled)

	last := res.History[len(res.History)-1]
	assert.Equal(t, core.AssistantMessage("Hello, world"), last)
}

func TestRun_ChunkThenStreamingThenAction(t *testing.T) {
	toolA := newMockTool("tool_a")
	toolA.On("Execute", mock.Anything).Return(tool.Success("ok", nil))

	src := model.NewScriptedSource(
		testutil.NewStreamBuilder().Text("Let me ", "check").Call(0, "tool_a").Args(0, "{}").Turn(),
		model.Text("Done."),
	)
	rec := testutil.NewEventRecorder()

	res, err := newAgent(t, src, []tool.Tool{toolA}).Run(context.Background(), "go", nil, rec.Emit)
	require.NoError(t, err)

	assert.Equal(t, []core.EventType{
		core.EventChunk, core.EventChunk,
		core.EventActionStreaming, core.EventActionArgsChunk,
		core.EventAction, core.EventObservation,
		core.EventChunk,
	}, rec.Types())

	events := rec.Events()
	assert.Equal(t, 1, events[4].Step)
	assert.Equal(t, "Done.", res.Answer)
	assert.Equal(t, 2, res.Iterations)
}

// -------------------- Argument Streaming Tests --------------------

func TestRun_ActionArgsChunksAreCumulative(t *testing.T) {
	toolA := newMockTool("tool_a")
	toolA.On("Execute", map[string]any{"path": "/workspace/a"}).Return(tool.Success("ok", nil))

	src := model.NewScriptedSource(
		testutil.NewStreamBuilder().Call(0, "tool_a").Args(0, `{"pa`).Args(0, `th": "/work`).Args(0, `space/a"}`).Turn(),
	)
	rec := testutil.NewEventRecorder()

	_, err := newAgent(t, src, []tool.Tool{toolA}, maxIterations(1)).Run(context.Background(), "go", nil, rec.Emit)
	require.NoError(t, err)

	chunks := rec.OfType(core.EventActionArgsChunk)
	require.Len(t, chunks, 3)
	assert.Equal(t, `{"pa`, chunks[0].PartialArgs)
	assert.Equal(t, `{"path": "/work`, chunks[1].PartialArgs)
	assert.Equal(t, `{"path": "/workspace/a"}`, chunks[2].PartialArgs)
	for _, c := range chunks {
		assert.Equal(t, "tool_a", c.Tool)
		assert.Equal(t, 1, c.Step)
	}

	action := rec.OfType(core.EventAction)[0]
	assert.Equal(t, map[string]any{"path": "/workspace/a"}, action.Args)
	toolA.AssertExpectations(t)
}

func TestRun_NoArgsChunkForEmptyArguments(t *testing.T) {
	toolA := newMockTool("tool_a")
	toolA.On("Execute", map[string]any{}).Return(tool.Success("ok", nil))

	src := model.NewScriptedSource(
		testutil.NewStreamBuilder().Call(0, "tool_a").Args(0, "").Args(0, "").Turn(),
	)
	rec := testutil.NewEventRecorder()

	_, err := newAgent(t, src, []tool.Tool{toolA}, maxIterations(1)).Run(context.Background(), "go", nil, rec.Emit)
	require.NoError(t, err)

	assert.Empty(t, rec.OfType(core.EventActionArgsChunk))
	action := rec.OfType(core.EventAction)[0]
	assert.Equal(t, map[string]any{}, action.Args)
}

func TestRun_ArgsChunksForMultipleTools(t *testing.T) {
	toolA := newMockTool("tool_a")
	toolA.On("Execute", mock.Anything).Return(tool.Success("ok", nil))

	src := model.NewScriptedSource(
		testutil.NewStreamBuilder().
			Call(0, "tool_a").Args(0, `{"a":1}`).
			Call(1, "tool_b").Args(1, `{"b":2}`).
			Turn(),
	)
	rec := testutil.NewEventRecorder()

	_, err := newAgent(t, src, []tool.Tool{toolA}, maxIterations(1)).Run(context.Background(), "go", nil, rec.Emit)
	require.NoError(t, err)

	chunks := rec.OfType(core.EventActionArgsChunk)
	require.Len(t, chunks, 2)
	assert.Equal(t, "tool_a", chunks[0].Tool)
	assert.Equal(t, `{"a":1}`, chunks[0].PartialArgs)
	assert.Equal(t, "tool_b", chunks[1].Tool)
	assert.Equal(t, `{"b":2}`, chunks[1].PartialArgs)
}

// -------------------- Failure Handling Tests --------------------

func TestRun_MalformedArgumentsBecomeFailedObservation(t *testing.T) {
	toolA := newMockTool("tool_a")

	src := model.NewScriptedSource(testutil.ToolTurn("tool_a", `{"x": `))
	rec := testutil.NewEventRecorder()

	_, err := newAgent(t, src, []tool.Tool{toolA}, maxIterations(1)).Run(context.Background(), "go", nil, rec.Emit)
	require.NoError(t, err)

	action := rec.OfType(core.EventAction)
	require.Len(t, action, 1)
	assert.Equal(t, map[string]any{}, action[0].Args)

	obs := rec.OfType(core.EventObservation)
	require.Len(t, obs, 1)
	assert.False(t, obs[0].Success)
	assert.Contains(t, obs[0].Content, "Invalid tool arguments for tool_a")
	toolA.AssertNotCalled(t, "Execute", mock.Anything)
}

func TestRun_UnknownToolBecomesFailedObservation(t *testing.T) {
	src := model.NewScriptedSource(testutil.ToolTurn("nonexistent_tool", "{}"), model.Text("sorry"))
	rec := testutil.NewEventRecorder()

	res, err := newAgent(t, src, nil).Run(context.Background(), "go", nil, rec.Emit)
	require.NoError(t, err)

	obs := rec.OfType(core.EventObservation)
	require.Len(t, obs, 1)
	assert.False(t, obs[0].Success)
	assert.Equal(t, "Unknown tool: nonexistent_tool", obs[0].Content)
	assert.Equal(t, "sorry", res.Answer)
}

func TestRun_StreamErrorKeepsPartialContent(t *testing.T) {
	boom := errors.New("connection reset")
	src := model.NewScriptedSource(testutil.NewStreamBuilder().Text("Hello", " wor").Fail(boom).Turn())
	rec := testutil.NewEventRecorder()

	_, err := newAgent(t, src, nil).Run(context.Background(), "go", nil, rec.Emit)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "Hello wor", rec.Content())
	assert.Len(t, rec.Events(), 2)
}

func TestRun_EmitErrorAbortsRun(t *testing.T) {
	persistErr := errors.New("database is locked")
	toolA := newMockTool("tool_a")

	src := model.NewScriptedSource(
		testutil.NewStreamBuilder().Text("a", "b", "c").Call(0, "tool_a").Turn(),
	)
	calls := 0
	rec := testutil.NewEventRecorder().FailWhen(func(core.Event) error {
		calls++
		if calls == 2 {
			return persistErr
		}
		return nil
	})

	_, err := newAgent(t, src, []tool.Tool{toolA}).Run(context.Background(), "go", nil, rec.Emit)
	require.Error(t, err)
	assert.ErrorIs(t, err, persistErr)
	assert.Len(t, rec.Events(), 1)
	toolA.AssertNotCalled(t, "Execute", mock.Anything)
}

func TestRun_NoModel(t *testing.T) {
	_, err := NewReActAgent(nil, nil).Run(context.Background(), "hi", nil, testutil.NewEventRecorder().Emit)
	assert.ErrorIs(t, err, ErrNoModel)
}

// -------------------- Iteration & Cancellation Tests --------------------

func TestRun_FeedsObservationBackIntoHistory(t *testing.T) {
	think := tool.NewThinkTool()
	src := model.NewScriptedSource(
		testutil.NewStreamBuilder().Text("Thinking.").Call(0, "think").Args(0, `{"thought":"plan"}`).Turn(),
		model.Text("All done"),
	)
	rec := testutil.NewEventRecorder()
	prior := testutil.NewHistoryBuilder().User("earlier").Assistant("ok").Build()

	res, err := newAgent(t, src, []tool.Tool{think}, func(o *Options) {
		o.Instruction = NewInstructionFromText("system for {{join \",\" .tools}}")
	}).Run(context.Background(), "now", prior, rec.Emit)
	require.NoError(t, err)

	reqs := src.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, []core.Message{
		core.SystemMessage("system for think"),
		core.UserMessage("earlier"),
		core.AssistantMessage("ok"),
		core.UserMessage("now"),
	}, reqs[0].Messages)
	require.Len(t, reqs[0].Tools, 1)

	second := reqs[1].Messages
	require.Len(t, second, 6)
	assert.Equal(t, core.RoleAssistant, second[4].Role)
	require.NotNil(t, second[4].ToolCall)
	assert.Equal(t, "think", second[4].ToolCall.Name)
	assert.Equal(t, "call_a", second[4].ToolCall.ID)
	assert.Equal(t, "Thinking.", second[4].Content)
	assert.Equal(t, core.ToolMessage("call_a", "think", "plan"), second[5])

	assert.Len(t, res.History, 7)
	obs := rec.OfType(core.EventObservation)
	require.Len(t, obs, 1)
	assert.Equal(t, 1, obs[0].Step)
}

func TestRun_StepIncrementsPerIteration(t *testing.T) {
	think := tool.NewThinkTool()
	src := model.NewScriptedSource(
		testutil.ToolTurn("think", `{"thought":"1"}`),
		testutil.ToolTurn("think", `{"thought":"2"}`),
		model.Text("done"),
	)
	rec := testutil.NewEventRecorder()

	res, err := newAgent(t, src, []tool.Tool{think}).Run(context.Background(), "go", nil, rec.Emit)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Iterations)

	actions := rec.OfType(core.EventAction)
	require.Len(t, actions, 2)
	assert.Equal(t, 1, actions[0].Step)
	assert.Equal(t, 2, actions[1].Step)
}

func TestRun_MaxIterationsReached(t *testing.T) {
	think := tool.NewThinkTool()
	src := model.NewScriptedSource(
		testutil.ToolTurn("think", `{}`),
		testutil.ToolTurn("think", `{}`),
		testutil.ToolTurn("think", `{}`),
	)
	rec := testutil.NewEventRecorder()

	res, err := newAgent(t, src, []tool.Tool{think}, maxIterations(2)).Run(context.Background(), "go", nil, rec.Emit)
	require.NoError(t, err)
	assert.True(t, res.LimitReached)
	assert.Equal(t, 2, res.Iterations)
	assert.Len(t, rec.OfType(core.EventObservation), 2)
	assert.Len(t, src.Requests(), 2)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := model.NewScriptedSource(model.Text("never"))
	rec := testutil.NewEventRecorder()

	res, err := newAgent(t, src, nil).Run(ctx, "go", nil, rec.Emit)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Empty(t, rec.Events())
	assert.Empty(t, src.Requests())
}

func TestRun_CancelledDuringStreamSkipsAction(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	toolA := newMockTool("tool_a")
	src := model.NewScriptedSource(
		testutil.NewStreamBuilder().Text("working").Call(0, "tool_a").Before(cancel).Args(0, "{}").Turn(),
		model.Text("never"),
	)
	rec := testutil.NewEventRecorder()

	res, err := newAgent(t, src, []tool.Tool{toolA}).Run(ctx, "go", nil, rec.Emit)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Empty(t, rec.OfType(core.EventAction))
	assert.Empty(t, rec.OfType(core.EventObservation))
	assert.Equal(t, "working", rec.Content())
	assert.Len(t, src.Requests(), 1)
	toolA.AssertNotCalled(t, "Execute", mock.Anything)
}

func TestRun_CancelledDuringFinalAnswer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := model.NewScriptedSource(model.Text("partial ", "answer"))
	rec := testutil.NewEventRecorder()
	emit := func(ev core.Event) error {
		if ev.Content == "answer" {
			cancel()
		}
		return rec.Emit(ev)
	}

	res, err := newAgent(t, src, nil).Run(ctx, "go", nil, emit)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Equal(t, "partial answer", res.Answer)
	assert.Equal(t, 1, res.Iterations)
}

func TestRun_CancelledDuringToolStopsNextIteration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slow := tool.NewFunctionTool("slow", "cancels the run", nil, func(context.Context, map[string]any) (string, error) {
		cancel()
		return "finished anyway", nil
	})
	src := model.NewScriptedSource(testutil.ToolTurn("slow", "{}"), model.Text("never"))
	rec := testutil.NewEventRecorder()

	res, err := newAgent(t, src, []tool.Tool{slow}).Run(ctx, "go", nil, rec.Emit)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Len(t, rec.OfType(core.EventObservation), 1)
	assert.Len(t, src.Requests(), 1)
}

// -------------------- Configuration & Tracing Tests --------------------

func TestNewFromConfig(t *testing.T) {
	reg := tool.NewRegistry().MustRegister(tool.NewThinkTool(), newMockTool("tool_a"))
	a := NewFromConfig(model.NewScriptedSource(), reg, Config{
		SystemInstructions: "custom",
		EnabledTools:       []string{"think"},
		MaxIterations:      3,
	})

	assert.Equal(t, []string{"think"}, a.Tools().Names())
	assert.Equal(t, 3, a.MaxIterations())

	_, err := a.Run(context.Background(), "hi", nil, testutil.NewEventRecorder().Emit)
	require.NoError(t, err)

	defaults := NewFromConfig(model.NewScriptedSource(), reg, Config{})
	assert.Equal(t, DefaultMaxIterations, defaults.MaxIterations())
	assert.Len(t, defaults.Tools().Names(), 2)
}

func TestRun_Traced(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	reg := tool.NewRegistry(func(o *tool.RegistryOptions) { o.TracerProvider = tp }).MustRegister(tool.NewThinkTool())
	src := model.NewScriptedSource(testutil.ToolTurn("think", `{"thought":"x"}`), model.Text("ok"))

	_, err := NewReActAgent(src, reg, func(o *Options) { o.TracerProvider = tp }).
		Run(context.Background(), "go", nil, testutil.NewEventRecorder().Emit)
	require.NoError(t, err)

	names := map[string]int{}
	for _, s := range sr.Ended() {
		names[s.Name()]++
	}
	assert.Equal(t, map[string]int{"agent.run": 1, "agent.iteration": 2, "tool.execute": 1}, names)
}
