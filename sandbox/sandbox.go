// Package sandbox defines the collaborator through which tools touch files
// and processes, the pure validators guarding those operations, and two
// implementations: an in-memory filesystem for tests and a local directory
// rooted workspace.
package sandbox

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a file does not exist in the sandbox.
	ErrNotFound = errors.New("sandbox: file not found")
	// ErrInvalidPath is returned when a path escapes the sandbox.
	ErrInvalidPath = errors.New("sandbox: invalid path")
)

// Sandbox is the minimal file capability every tool relies on. Paths are
// absolute sandbox paths such as /workspace/out/main.go.
type Sandbox interface {
	// ReadFile returns the full content, or ErrNotFound.
	ReadFile(ctx context.Context, path string) (string, error)
	// WriteFile fully overwrites path, creating parent directories.
	WriteFile(ctx context.Context, path, content string) error
}

// ExecResult is the outcome of a command run inside the sandbox.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor is an optional capability for running shell commands.
type Executor interface {
	Exec(ctx context.Context, command, workdir string) (ExecResult, error)
}

// Lister is an optional capability for enumerating files below a directory.
type Lister interface {
	ListFiles(ctx context.Context, root string) ([]string, error)
}
