package agent

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/zysilm-ai/open-claude-pilot/core"
)

// callState is the streaming state of one tool-call index.
type callState struct {
	id               string
	name             string
	args             strings.Builder
	streamingEmitted bool
}

// PendingCall is the tool call selected for execution at the end of a
// model turn.
type PendingCall struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// Parse decodes the accumulated argument text. An empty buffer decodes to an
// empty map; anything other than a JSON object is an error.
func (c PendingCall) Parse() (map[string]any, error) {
	if strings.TrimSpace(c.Arguments) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(c.Arguments), &args); err != nil {
		return nil, err
	}
	if args == nil {
		return nil, fmt.Errorf("arguments are not a JSON object")
	}
	return args, nil
}

// Accumulator converts the raw items of one model turn into domain events.
// It is not safe for concurrent use; the loop creates one per iteration
// because providers restart call indices on every turn.
type Accumulator struct {
	step  int
	calls map[int]*callState
	text  strings.Builder
}

// NewAccumulator creates an accumulator whose events carry step.
func NewAccumulator(step int) *Accumulator {
	return &Accumulator{step: step, calls: make(map[int]*callState)}
}

// Add processes one stream item and returns the events it produces, in
// emission order.
func (a *Accumulator) Add(item core.StreamItem) []core.Event {
	if item.ToolCall == nil {
		if item.Text == "" {
			return nil
		}
		a.text.WriteString(item.Text)
		return []core.Event{core.NewChunkEvent(item.Text)}
	}

	d := item.ToolCall
	st, ok := a.calls[d.Index]
	if !ok {
		st = &callState{}
		a.calls[d.Index] = st
	}
	if d.ID != "" && st.id == "" {
		st.id = d.ID
	}

	var events []core.Event
	if d.Name != "" && st.name == "" {
		st.name = d.Name
	}
	if st.name != "" && !st.streamingEmitted {
		st.streamingEmitted = true
		events = append(events, core.NewActionStreamingEvent(st.name, a.step))
	}

	if d.Arguments != "" {
		st.args.WriteString(d.Arguments)
		// Fragments that arrive before the name are kept but not surfaced.
		if st.name != "" {
			events = append(events, core.NewActionArgsChunkEvent(st.name, st.args.String(), a.step))
		}
	}
	return events
}

// Text returns the concatenated text fragments seen so far.
func (a *Accumulator) Text() string { return a.text.String() }

// StreamingCalls returns the number of indices that produced an
// action_streaming event.
func (a *Accumulator) StreamingCalls() int {
	n := 0
	for _, st := range a.calls {
		if st.streamingEmitted {
			n++
		}
	}
	return n
}

// Selected returns the lowest named call index of the turn, the only one
// eligible for execution.
func (a *Accumulator) Selected() (PendingCall, bool) {
	indices := make([]int, 0, len(a.calls))
	for idx, st := range a.calls {
		if st.name != "" {
			indices = append(indices, idx)
		}
	}
	if len(indices) == 0 {
		return PendingCall{}, false
	}
	sort.Ints(indices)

	st := a.calls[indices[0]]
	return PendingCall{
		Index:     indices[0],
		ID:        st.id,
		Name:      st.name,
		Arguments: st.args.String(),
	}, true
}
