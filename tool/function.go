package tool

import (
	"context"
	"fmt"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a
// Tool.
//
// A FunctionTool has no internal mutable state after construction and is
// safe for concurrent use by multiple goroutines. The wrapped function may
// return an error instead of a Result: a *ToolError keeps its code, any other
// error becomes EXECUTION_ERROR.
//
// Example:
//
//	echo := NewFunctionTool(
//	  "echo",
//	  "Echo the given text back",
//	  []Parameter{{Name: "text", Type: "string", Required: true}},
//	  func(ctx context.Context, args map[string]any) (string, error) {
//	    text, _ := StringArg(args, "text")
//	    return text, nil
//	  },
//	)
type FunctionTool struct {
	name        string
	description string
	parameters  []Parameter
	fn          func(ctx context.Context, args map[string]any) (string, error)
}

// NewFunctionTool constructs a FunctionTool from an explicit parameter list
// and function.
func NewFunctionTool(
	name, description string,
	parameters []Parameter,
	fn func(ctx context.Context, args map[string]any) (string, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// Name returns the unique tool name.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the declared arguments.
func (t *FunctionTool) Parameters() []Parameter { return t.parameters }

// Execute invokes the wrapped function and folds its outcome into a Result.
func (t *FunctionTool) Execute(ctx context.Context, args map[string]any) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Failure(CodeExecutionError, fmt.Sprintf("Tool %s panicked: %v", t.name, r), nil)
		}
	}()

	out, err := t.fn(ctx, args)
	if err != nil {
		return FromError(err)
	}
	return Success(out, nil)
}
