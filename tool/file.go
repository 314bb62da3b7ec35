package tool

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/zysilm-ai/open-claude-pilot/sandbox"
)

// FileReadTool returns the full content of a sandbox file.
type FileReadTool struct {
	sb sandbox.Sandbox
}

// NewFileReadTool creates a file_read tool backed by sb.
func NewFileReadTool(sb sandbox.Sandbox) *FileReadTool {
	return &FileReadTool{sb: sb}
}

func (t *FileReadTool) Name() string { return "file_read" }

func (t *FileReadTool) Description() string {
	return "Read the complete contents of a file from the sandbox environment. " +
		"Can read from: /workspace/project_files (user uploaded files) or " +
		"/workspace/out (files created by you). Use this to inspect code before editing " +
		"or to view configuration files and logs. Returns the entire file content as a string. " +
		"For large files, consider using bash with 'head' or 'tail'."
}

func (t *FileReadTool) Parameters() []Parameter {
	return []Parameter{
		{
			Name:        "path",
			Type:        "string",
			Description: "Full path to the file (e.g. '/workspace/project_files/data.csv' or '/workspace/out/script.py')",
			Required:    true,
		},
	}
}

func (t *FileReadTool) Execute(ctx context.Context, args map[string]any) Result {
	p, terr := RequireString(t.Name(), args, "path")
	if terr != nil {
		return terr.AsResult()
	}
	md := map[string]any{"path": p}

	if !sandbox.ValidateFilePath(p) {
		return Failure(CodeInvalidPath, fmt.Sprintf("Invalid file path: %s", p), md)
	}

	content, err := t.sb.ReadFile(ctx, p)
	if err != nil {
		return readFailure(p, "read", err, md)
	}

	return Success(content, map[string]any{"path": p, "size": len(content)})
}

// FileWriteTool writes files into a fixed output directory. Only bare
// filenames are accepted.
type FileWriteTool struct {
	sb     sandbox.Sandbox
	outDir string
}

// NewFileWriteTool creates the output directory variant of file_write.
// An empty outDir defaults to sandbox.OutputDir.
func NewFileWriteTool(sb sandbox.Sandbox, outDir string) *FileWriteTool {
	if outDir == "" {
		outDir = sandbox.OutputDir
	}
	return &FileWriteTool{sb: sb, outDir: outDir}
}

func (t *FileWriteTool) Name() string { return "file_write" }

func (t *FileWriteTool) Description() string {
	return fmt.Sprintf("Write or create a file in the output directory (%s). "+
		"Creates new files or completely overwrites existing files. "+
		"You can ONLY specify the filename, not the full path. "+
		"WARNING: This overwrites existing files completely. "+
		"For targeted changes to existing files, use file_edit instead.", t.outDir)
}

func (t *FileWriteTool) Parameters() []Parameter {
	return []Parameter{
		{
			Name:        "filename",
			Type:        "string",
			Description: "Filename to write (e.g. 'script.py'). Must be a simple filename without path separators.",
			Required:    true,
		},
		{Name: "content", Type: "string", Description: "Content to write to the file", Required: true},
	}
}

func (t *FileWriteTool) Execute(ctx context.Context, args map[string]any) Result {
	filename, terr := RequireString(t.Name(), args, "filename")
	if terr != nil {
		return terr.AsResult()
	}
	content, terr := RequireString(t.Name(), args, "content")
	if terr != nil {
		return terr.AsResult()
	}
	md := map[string]any{"filename": filename}

	if !IsBareFilename(filename) {
		return Failure(CodeInvalidFilename, fmt.Sprintf(
			"Invalid filename: %s. Only simple filenames are allowed (no path separators or leading dots).", filename), md)
	}

	outputPath := path.Join(t.outDir, filename)
	if err := t.sb.WriteFile(ctx, outputPath, content); err != nil {
		return Failure(CodeExecutionError, fmt.Sprintf("Failed to write file: %v", err), md)
	}

	return Success(fmt.Sprintf("Successfully wrote %d bytes to %s in %s", len(content), filename, t.outDir), map[string]any{
		"filename":    filename,
		"output_path": outputPath,
		"size":        len(content),
	})
}

// IsBareFilename reports whether name is a plain file name: non-empty, no
// path separators and no leading dot.
func IsBareFilename(name string) bool {
	return name != "" && !strings.ContainsAny(name, `/\`) && !strings.HasPrefix(name, ".")
}

// WorkspaceFileWriteTool is the file_write variant that accepts any
// validated workspace path. Parent directories are created by the sandbox.
type WorkspaceFileWriteTool struct {
	sb sandbox.Sandbox
}

// NewWorkspaceFileWriteTool creates the workspace variant of file_write.
func NewWorkspaceFileWriteTool(sb sandbox.Sandbox) *WorkspaceFileWriteTool {
	return &WorkspaceFileWriteTool{sb: sb}
}

func (t *WorkspaceFileWriteTool) Name() string { return "file_write" }

func (t *WorkspaceFileWriteTool) Description() string {
	return "Write or create a file anywhere under /workspace. Parent directories are created " +
		"automatically and existing files are overwritten completely. " +
		"For targeted changes to existing files, use file_edit instead."
}

func (t *WorkspaceFileWriteTool) Parameters() []Parameter {
	return []Parameter{
		{Name: "path", Type: "string", Description: "Absolute path under /workspace", Required: true},
		{Name: "content", Type: "string", Description: "Content to write to the file", Required: true},
	}
}

func (t *WorkspaceFileWriteTool) Execute(ctx context.Context, args map[string]any) Result {
	p, terr := RequireString(t.Name(), args, "path")
	if terr != nil {
		return terr.AsResult()
	}
	content, terr := RequireString(t.Name(), args, "content")
	if terr != nil {
		return terr.AsResult()
	}
	md := map[string]any{"path": p}

	if !sandbox.ValidateFilePath(p) {
		return Failure(CodeInvalidPath, fmt.Sprintf("Invalid file path: %s", p), md)
	}

	if err := t.sb.WriteFile(ctx, p, content); err != nil {
		return Failure(CodeExecutionError, fmt.Sprintf("Failed to write file: %v", err), md)
	}

	return Success(fmt.Sprintf("Successfully wrote %d bytes to %s", len(content), p), map[string]any{
		"path": p,
		"size": len(content),
	})
}

// FileEditTool replaces exactly one occurrence of a snippet in a file.
type FileEditTool struct {
	sb sandbox.Sandbox
}

// NewFileEditTool creates a file_edit tool backed by sb.
func NewFileEditTool(sb sandbox.Sandbox) *FileEditTool {
	return &FileEditTool{sb: sb}
}

func (t *FileEditTool) Name() string { return "file_edit" }

func (t *FileEditTool) Description() string {
	return "Make precise edits to existing files by replacing specific content. " +
		"Searches for 'old_content' and replaces it with 'new_content' exactly once. " +
		"This is the preferred way to modify existing files. The old_content must match " +
		"exactly, including whitespace. Fails if the file is missing, old_content is not found, " +
		"or old_content appears more than once."
}

func (t *FileEditTool) Parameters() []Parameter {
	return []Parameter{
		{Name: "path", Type: "string", Description: "Path to the file to edit", Required: true},
		{Name: "old_content", Type: "string", Description: "Content to search for and replace (must match exactly)", Required: true},
		{Name: "new_content", Type: "string", Description: "New content to replace the old content with", Required: true},
	}
}

func (t *FileEditTool) Execute(ctx context.Context, args map[string]any) Result {
	p, terr := RequireString(t.Name(), args, "path")
	if terr != nil {
		return terr.AsResult()
	}
	oldContent, terr := RequireString(t.Name(), args, "old_content")
	if terr != nil {
		return terr.AsResult()
	}
	newContent, terr := RequireString(t.Name(), args, "new_content")
	if terr != nil {
		return terr.AsResult()
	}
	md := map[string]any{"path": p}

	if !sandbox.ValidateFilePath(p) {
		return Failure(CodeInvalidPath, fmt.Sprintf("Invalid file path: %s", p), md)
	}

	current, err := t.sb.ReadFile(ctx, p)
	if err != nil {
		return readFailure(p, "edit", err, md)
	}

	// An empty snippet matches everywhere and is never a unique edit.
	count := strings.Count(current, oldContent)
	if oldContent == "" || count == 0 {
		return Failure(CodeNotFoundInFile, fmt.Sprintf("Content to replace not found in file: %s", p), md)
	}
	if count > 1 {
		return Failure(CodeAmbiguousMatch, fmt.Sprintf(
			"Content appears %d times in file. Please make old_content more specific.", count),
			map[string]any{"path": p, "occurrences": count})
	}

	updated := strings.Replace(current, oldContent, newContent, 1)
	if err := t.sb.WriteFile(ctx, p, updated); err != nil {
		return Failure(CodeExecutionError, fmt.Sprintf("Failed to edit file: %v", err), md)
	}

	return Success(fmt.Sprintf("Successfully edited %s", p), map[string]any{
		"path":     p,
		"old_size": len(current),
		"new_size": len(updated),
	})
}

func readFailure(p, verb string, err error, md map[string]any) Result {
	switch {
	case errors.Is(err, sandbox.ErrNotFound):
		return Failure(CodeNotFound, fmt.Sprintf("File not found: %s", p), md)
	case errors.Is(err, sandbox.ErrInvalidPath):
		return Failure(CodeInvalidPath, fmt.Sprintf("Invalid file path: %s", p), md)
	default:
		return Failure(CodeExecutionError, fmt.Sprintf("Failed to %s file: %v", verb, err), md)
	}
}
