package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/zysilm-ai/open-claude-pilot/sandbox"
)

// BashTool runs shell commands through a sandbox Executor.
type BashTool struct {
	exec sandbox.Executor
}

// NewBashTool creates a bash tool backed by exec.
func NewBashTool(exec sandbox.Executor) *BashTool {
	return &BashTool{exec: exec}
}

func (t *BashTool) Name() string { return "bash" }

func (t *BashTool) Description() string {
	return "Execute a bash command in the sandbox environment. The working directory defaults to " +
		"/workspace. Use this to run programs, install dependencies, list directories or inspect " +
		"files. Returns stdout and stderr; a non-zero exit code is reported as a failure."
}

func (t *BashTool) Parameters() []Parameter {
	return []Parameter{
		{Name: "command", Type: "string", Description: "The shell command to execute", Required: true},
		{Name: "workdir", Type: "string", Description: "Working directory (default /workspace)"},
	}
}

func (t *BashTool) Execute(ctx context.Context, args map[string]any) Result {
	command, terr := RequireString(t.Name(), args, "command")
	if terr != nil {
		return terr.AsResult()
	}
	workdir, _ := StringArg(args, "workdir")
	if workdir == "" {
		workdir = sandbox.WorkspaceRoot
	}
	md := map[string]any{"command": command, "workdir": workdir}

	if !sandbox.ValidateFilePath(workdir) {
		return Failure(CodeInvalidPath, fmt.Sprintf("Invalid working directory: %s", workdir), md)
	}

	sanitized := sandbox.SanitizeCommand(command)
	if sanitized == "" {
		return Failure(CodeCommandRejected, fmt.Sprintf("Command rejected: %s", command), md)
	}

	res, err := t.exec.Exec(ctx, sanitized, workdir)
	if err != nil {
		return Failure(CodeExecutionError, fmt.Sprintf("Failed to execute command: %v", err), md)
	}

	output := combineOutput(res.Stdout, res.Stderr)
	md["exit_code"] = res.ExitCode
	if res.ExitCode != 0 {
		md[MetadataErrorCode] = CodeExecutionError
		return Result{
			Success:  false,
			Output:   output,
			Error:    fmt.Sprintf("Command exited with code %d\n%s", res.ExitCode, output),
			Metadata: md,
		}
	}
	return Success(output, md)
}

func combineOutput(stdout, stderr string) string {
	switch {
	case stderr == "":
		return stdout
	case stdout == "":
		return stderr
	default:
		return strings.TrimRight(stdout, "\n") + "\n" + stderr
	}
}
