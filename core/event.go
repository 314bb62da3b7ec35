package core

import (
	"encoding/json"
	"fmt"
)

// EventType discriminates the variants of Event.
type EventType string

const (
	// EventChunk carries a fragment of assistant text.
	EventChunk EventType = "chunk"
	// EventActionStreaming announces a tool call as soon as its name is known.
	EventActionStreaming EventType = "action_streaming"
	// EventActionArgsChunk carries the cumulative argument text of a tool call.
	EventActionArgsChunk EventType = "action_args_chunk"
	// EventAction marks the tool call selected for execution.
	EventAction EventType = "action"
	// EventObservation carries the result of the executed tool call.
	EventObservation EventType = "observation"
)

// StatusStreaming is the only status value carried by action_streaming events.
const StatusStreaming = "streaming"

// Event is a single step of the sequence produced by one agent run. Only the
// fields belonging to Type are meaningful; MarshalJSON emits exactly that
// field set so the wire shape of every variant stays closed.
type Event struct {
	Type        EventType
	Content     string
	Tool        string
	Status      string
	PartialArgs string
	Args        map[string]any
	Success     bool
	Step        int
}

// NewChunkEvent creates a chunk event for a text fragment.
func NewChunkEvent(content string) Event {
	return Event{Type: EventChunk, Content: content}
}

// NewActionStreamingEvent creates the early notification for a named tool call.
func NewActionStreamingEvent(tool string, step int) Event {
	return Event{Type: EventActionStreaming, Tool: tool, Status: StatusStreaming, Step: step}
}

// NewActionArgsChunkEvent creates an argument progress event. partial must be
// the cumulative argument text received so far for the call.
func NewActionArgsChunkEvent(tool, partial string, step int) Event {
	return Event{Type: EventActionArgsChunk, Tool: tool, PartialArgs: partial, Step: step}
}

// NewActionEvent creates the event announcing tool execution.
func NewActionEvent(tool string, args map[string]any, step int) Event {
	if args == nil {
		args = map[string]any{}
	}
	return Event{Type: EventAction, Tool: tool, Args: args, Step: step}
}

// NewObservationEvent creates the event carrying a tool outcome.
func NewObservationEvent(content string, success bool, step int) Event {
	return Event{Type: EventObservation, Content: content, Success: success, Step: step}
}

// MarshalJSON encodes the event using the field set of its variant.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventChunk:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Content string    `json:"content"`
		}{e.Type, e.Content})
	case EventActionStreaming:
		return json.Marshal(struct {
			Type   EventType `json:"type"`
			Tool   string    `json:"tool"`
			Status string    `json:"status"`
			Step   int       `json:"step"`
		}{e.Type, e.Tool, e.Status, e.Step})
	case EventActionArgsChunk:
		return json.Marshal(struct {
			Type        EventType `json:"type"`
			Tool        string    `json:"tool"`
			PartialArgs string    `json:"partial_args"`
			Step        int       `json:"step"`
		}{e.Type, e.Tool, e.PartialArgs, e.Step})
	case EventAction:
		args := e.Args
		if args == nil {
			args = map[string]any{}
		}
		return json.Marshal(struct {
			Type EventType      `json:"type"`
			Tool string         `json:"tool"`
			Args map[string]any `json:"args"`
			Step int            `json:"step"`
		}{e.Type, e.Tool, args, e.Step})
	case EventObservation:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Content string    `json:"content"`
			Success bool      `json:"success"`
			Step    int       `json:"step"`
		}{e.Type, e.Content, e.Success, e.Step})
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
}

// UnmarshalJSON decodes any of the event variants.
func (e *Event) UnmarshalJSON(data []byte) error {
	var wire struct {
		Type        EventType      `json:"type"`
		Content     string         `json:"content"`
		Tool        string         `json:"tool"`
		Status      string         `json:"status"`
		PartialArgs string         `json:"partial_args"`
		Args        map[string]any `json:"args"`
		Success     bool           `json:"success"`
		Step        int            `json:"step"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch wire.Type {
	case EventChunk, EventActionStreaming, EventActionArgsChunk, EventAction, EventObservation:
	default:
		return fmt.Errorf("unknown event type %q", wire.Type)
	}
	*e = Event{
		Type:        wire.Type,
		Content:     wire.Content,
		Tool:        wire.Tool,
		Status:      wire.Status,
		PartialArgs: wire.PartialArgs,
		Args:        wire.Args,
		Success:     wire.Success,
		Step:        wire.Step,
	}
	return nil
}
