package model

import (
	"context"

	"github.com/zysilm-ai/open-claude-pilot/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the model input for one reasoning step.
type Request struct {
	Messages []core.Message  `json:"messages"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
}

// Info contains metadata about a source implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "gollm", "scripted"
	SupportsTools bool   `json:"supports_tools"`
}

// StreamSource is the minimal interface the agent loop drives.
//
// Stream starts a generation and returns an item channel and an error
// channel. Implementations close the item channel when the generation ends
// and send at most one error; every item sent before the error is valid.
// Tool-call deltas are forwarded raw (not aggregated) with their call index.
type StreamSource interface {
	Stream(ctx context.Context, req Request) (<-chan core.StreamItem, <-chan error)

	// Info returns information about the source implementation.
	Info() Info
}

// Send delivers item unless ctx is done first. Providers use it so a
// generation goroutine never outlives an abandoned consumer.
func Send(ctx context.Context, out chan<- core.StreamItem, item core.StreamItem) bool {
	select {
	case out <- item:
		return true
	case <-ctx.Done():
		return false
	}
}
