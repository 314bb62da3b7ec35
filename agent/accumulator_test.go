package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zysilm-ai/open-claude-pilot/core"
)

func addAll(acc *Accumulator, items ...core.StreamItem) []core.Event {
	var out []core.Event
	for _, it := range items {
		out = append(out, acc.Add(it)...)
	}
	return out
}

func delta(index int, name, args string) core.StreamItem {
	return core.ToolCallItem(core.ToolCallDelta{Index: index, Name: name, Arguments: args})
}

// -------------------- Accumulator Tests --------------------

func TestAccumulator_TextChunks(t *testing.T) {
	acc := NewAccumulator(1)
	events := addAll(acc, core.TextItem("Hel"), core.TextItem(""), core.TextItem("lo"))

	require.Len(t, events, 2)
	assert.Equal(t, core.NewChunkEvent("Hel"), events[0])
	assert.Equal(t, core.NewChunkEvent("lo"), events[1])
	assert.Equal(t, "Hello", acc.Text())

	_, ok := acc.Selected()
	assert.False(t, ok)
}

func TestAccumulator_StreamingOncePerIndex(t *testing.T) {
	acc := NewAccumulator(3)
	events := addAll(acc,
		delta(0, "tool_a", ""),
		delta(0, "tool_a", ""),
		delta(0, "", `{"x"`),
	)

	require.Len(t, events, 2)
	assert.Equal(t, core.NewActionStreamingEvent("tool_a", 3), events[0])
	assert.Equal(t, core.StatusStreaming, events[0].Status)
	assert.Equal(t, core.NewActionArgsChunkEvent("tool_a", `{"x"`, 3), events[1])
}

func TestAccumulator_CumulativePartialArgs(t *testing.T) {
	acc := NewAccumulator(1)
	events := addAll(acc,
		delta(0, "tool_a", ""),
		delta(0, "", `{"a"`),
		delta(0, "", ""),
		delta(0, "", `: 1, "b"`),
		delta(0, "", `: 2}`),
	)

	var partials []string
	for _, ev := range events {
		if ev.Type == core.EventActionArgsChunk {
			partials = append(partials, ev.PartialArgs)
		}
	}
	assert.Equal(t, []string{`{"a"`, `{"a": 1, "b"`, `{"a": 1, "b": 2}`}, partials)
}

func TestAccumulator_NameAndArgsInOneItem(t *testing.T) {
	acc := NewAccumulator(1)
	events := acc.Add(delta(0, "tool_a", `{}`))

	require.Len(t, events, 2)
	assert.Equal(t, core.EventActionStreaming, events[0].Type)
	assert.Equal(t, core.EventActionArgsChunk, events[1].Type)
	assert.Equal(t, "{}", events[1].PartialArgs)
}

func TestAccumulator_ArgsBeforeNameAreBuffered(t *testing.T) {
	acc := NewAccumulator(1)
	assert.Empty(t, acc.Add(delta(0, "", `{"x":`)))

	events := acc.Add(delta(0, "tool_a", ` 1}`))
	require.Len(t, events, 2)
	assert.Equal(t, `{"x": 1}`, events[1].PartialArgs)

	call, ok := acc.Selected()
	require.True(t, ok)
	args, err := call.Parse()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": 1.0}, args)
}

func TestAccumulator_SelectsLowestIndex(t *testing.T) {
	acc := NewAccumulator(1)
	events := addAll(acc,
		delta(2, "tool_c", `{}`),
		core.ToolCallItem(core.ToolCallDelta{Index: 1, ID: "id_b", Name: "tool_b"}),
		delta(1, "", `{"k":"v"}`),
		delta(0, "", `{"orphan":true}`),
	)

	streaming := 0
	for _, ev := range events {
		if ev.Type == core.EventActionStreaming {
			streaming++
		}
	}
	assert.Equal(t, 2, streaming)
	assert.Equal(t, 2, acc.StreamingCalls())

	call, ok := acc.Selected()
	require.True(t, ok)
	assert.Equal(t, PendingCall{Index: 1, ID: "id_b", Name: "tool_b", Arguments: `{"k":"v"}`}, call)
}

func TestPendingCall_Parse(t *testing.T) {
	args, err := PendingCall{}.Parse()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, args)

	_, err = PendingCall{Arguments: `{"x"`}.Parse()
	assert.Error(t, err)

	_, err = PendingCall{Arguments: `[1,2]`}.Parse()
	assert.Error(t, err)

	_, err = PendingCall{Arguments: `null`}.Parse()
	assert.Error(t, err)
}
