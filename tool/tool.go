// Package tool implements the tool contract the agent loop invokes: a
// closed capability interface, a uniform result value that encodes every
// failure, a name keyed registry that validates arguments against each
// tool's JSON schema, and the built-in sandbox tools (file_read, file_write,
// file_edit, think, bash, search).
package tool

import (
	"context"
	"fmt"
	"sort"

	"github.com/zysilm-ai/open-claude-pilot/model"
)

// Tool defines the capability surface every tool exposes.
//
// Execute must never panic and never signal failure through a Go error: all
// failures are encoded in the returned Result. The registry still recovers
// panics as a last line of protection.
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case).
	Name() string

	// Description is shown to the model to decide when to use the tool.
	Description() string

	// Parameters declares the accepted arguments.
	Parameters() []Parameter

	// Execute runs the tool with decoded JSON arguments.
	Execute(ctx context.Context, args map[string]any) Result
}

// Parameter declares one named argument of a tool. Type is a JSON Schema
// type name: string, number, integer, boolean, object or array.
type Parameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
}

// Schema renders a parameter list as a JSON Schema object.
func Schema(params []Parameter) map[string]any {
	properties := make(map[string]any, len(params))
	var required []string
	for _, p := range params {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sort.Strings(required)
		schema["required"] = required
	}
	return schema
}

// FormatForLLM emits the provider-neutral function calling schema
// {type:"function", function:{name, description, parameters}}.
func FormatForLLM(t Tool) model.ToolDefinition {
	return model.ToolDefinition{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  Schema(t.Parameters()),
		},
	}
}

// ToolError is a typed failure a tool helper can return internally before
// it is folded into a Result through AsResult.
type ToolError struct {
	Tool    string         `json:"tool"`
	Message string         `json:"message"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}

// AsResult converts the error into a failed Result.
func (e *ToolError) AsResult() Result {
	return Failure(e.Code, e.Message, e.Details)
}
