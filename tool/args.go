package tool

import (
	"fmt"
	"math"
)

// StringArg returns args[key] when it is a string.
func StringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// RequireString returns args[key] or an INVALID_ARGUMENTS ToolError.
func RequireString(tool string, args map[string]any, key string) (string, *ToolError) {
	s, ok := StringArg(args, key)
	if !ok {
		return "", NewToolError(tool, fmt.Sprintf("Missing required string argument: %s", key), CodeInvalidArguments)
	}
	return s, nil
}

// IntArg returns args[key] as an int. JSON numbers arrive as float64; only
// integral values are accepted.
func IntArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}

// BoolArg returns args[key] when it is a bool.
func BoolArg(args map[string]any, key string) (bool, bool) {
	b, ok := args[key].(bool)
	return b, ok
}
