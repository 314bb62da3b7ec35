package tool

import (
	"errors"
	"fmt"
)

// Error codes stored under Result.Metadata["error_code"].
const (
	CodeInvalidPath      = "INVALID_PATH"
	CodeNotFound         = "NOT_FOUND"
	CodeInvalidFilename  = "INVALID_FILENAME"
	CodeNotFoundInFile   = "NOT_FOUND_IN_FILE"
	CodeAmbiguousMatch   = "AMBIGUOUS_MATCH"
	CodeInvalidArguments = "INVALID_ARGUMENTS"
	CodeUnknownTool      = "UNKNOWN_TOOL"
	CodeExecutionError   = "EXECUTION_ERROR"
	CodeCommandRejected  = "COMMAND_REJECTED"
)

// MetadataErrorCode is the metadata key carrying the failure code.
const MetadataErrorCode = "error_code"

// Result is the outcome of every tool invocation. Error is empty on success.
type Result struct {
	Success  bool           `json:"success"`
	Output   string         `json:"output"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Success builds a successful result.
func Success(output string, metadata map[string]any) Result {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Result{Success: true, Output: output, Metadata: metadata}
}

// Failure builds a failed result tagged with code.
func Failure(code, message string, metadata map[string]any) Result {
	md := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		md[k] = v
	}
	if code != "" {
		md[MetadataErrorCode] = code
	}
	return Result{Success: false, Error: message, Metadata: md}
}

// FromError folds an arbitrary error into a failed result, keeping the code
// of a *ToolError.
func FromError(err error) Result {
	var te *ToolError
	if errors.As(err, &te) {
		return te.AsResult()
	}
	return Failure(CodeExecutionError, err.Error(), nil)
}

// Code returns the failure code, or "" for successful results.
func (r Result) Code() string {
	if r.Success {
		return ""
	}
	code, _ := r.Metadata[MetadataErrorCode].(string)
	return code
}

// Content is the text fed back to the model: the output on success and the
// error message on failure.
func (r Result) Content() string {
	if r.Success {
		return r.Output
	}
	return r.Error
}

// String implements fmt.Stringer.
func (r Result) String() string {
	if r.Success {
		return fmt.Sprintf("ok: %s", r.Output)
	}
	return fmt.Sprintf("failed [%s]: %s", r.Code(), r.Error)
}
