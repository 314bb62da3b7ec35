package tool

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/zysilm-ai/open-claude-pilot/sandbox"
)

// DefaultSearchLimit caps the number of matching lines returned.
const DefaultSearchLimit = 100

// FileSystem is a sandbox that can also enumerate files.
type FileSystem interface {
	sandbox.Sandbox
	sandbox.Lister
}

// SearchTool greps file contents below a sandbox directory.
type SearchTool struct {
	fs    FileSystem
	limit int
}

// NewSearchTool creates a search tool. A non-positive limit selects
// DefaultSearchLimit.
func NewSearchTool(fs FileSystem, limit int) *SearchTool {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return &SearchTool{fs: fs, limit: limit}
}

func (t *SearchTool) Name() string { return "search" }

func (t *SearchTool) Description() string {
	return "Search file contents below a directory of the sandbox. The pattern is a regular " +
		"expression; invalid expressions are matched literally. Returns matching lines as " +
		"'path:line: text'."
}

func (t *SearchTool) Parameters() []Parameter {
	return []Parameter{
		{Name: "pattern", Type: "string", Description: "Regular expression or literal text to search for", Required: true},
		{Name: "path", Type: "string", Description: "Directory to search (default /workspace)"},
	}
}

func (t *SearchTool) Execute(ctx context.Context, args map[string]any) Result {
	pattern, terr := RequireString(t.Name(), args, "pattern")
	if terr != nil {
		return terr.AsResult()
	}
	root, _ := StringArg(args, "path")
	if root == "" {
		root = sandbox.WorkspaceRoot
	}
	md := map[string]any{"pattern": pattern, "path": root}

	if !sandbox.ValidateFilePath(root) {
		return Failure(CodeInvalidPath, fmt.Sprintf("Invalid file path: %s", root), md)
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		re = regexp.MustCompile(regexp.QuoteMeta(pattern))
	}

	files, err := t.fs.ListFiles(ctx, root)
	if err != nil {
		if errors.Is(err, sandbox.ErrNotFound) {
			return Failure(CodeNotFound, fmt.Sprintf("Directory not found: %s", root), md)
		}
		return Failure(CodeExecutionError, fmt.Sprintf("Failed to list files: %v", err), md)
	}

	var (
		lines     []string
		truncated bool
	)
scan:
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return Failure(CodeExecutionError, fmt.Sprintf("Search interrupted: %v", err), md)
		}
		if !sandbox.IsAllowedFile(f) {
			continue
		}
		content, err := t.fs.ReadFile(ctx, f)
		if err != nil {
			continue
		}
		for i, line := range strings.Split(content, "\n") {
			if !re.MatchString(line) {
				continue
			}
			if len(lines) == t.limit {
				truncated = true
				break scan
			}
			lines = append(lines, fmt.Sprintf("%s:%d: %s", f, i+1, line))
		}
	}

	md["matches"] = len(lines)
	md["truncated"] = truncated
	if len(lines) == 0 {
		return Success("No matches found.", md)
	}
	out := strings.Join(lines, "\n")
	if truncated {
		out += fmt.Sprintf("\n... results truncated at %d matches", t.limit)
	}
	return Success(out, md)
}
