package tool

import "github.com/zysilm-ai/open-claude-pilot/sandbox"

// ToolsetOptions selects the file_write variant and output directory of the
// default toolset.
type ToolsetOptions struct {
	// WorkspaceWrites registers the workspace file_write variant instead of
	// the output directory one.
	WorkspaceWrites bool
	OutputDir       string
	SearchLimit     int
}

// DefaultToolset returns the built-in tools for sb. bash is included when
// sb implements sandbox.Executor and search when it implements
// sandbox.Lister.
func DefaultToolset(sb sandbox.Sandbox, optFns ...func(o *ToolsetOptions)) []Tool {
	opts := ToolsetOptions{OutputDir: sandbox.OutputDir}
	for _, fn := range optFns {
		fn(&opts)
	}

	tools := []Tool{NewFileReadTool(sb), NewFileEditTool(sb), NewThinkTool()}
	if opts.WorkspaceWrites {
		tools = append(tools, NewWorkspaceFileWriteTool(sb))
	} else {
		tools = append(tools, NewFileWriteTool(sb, opts.OutputDir))
	}
	if exec, ok := sb.(sandbox.Executor); ok {
		tools = append(tools, NewBashTool(exec))
	}
	if fs, ok := sb.(FileSystem); ok {
		tools = append(tools, NewSearchTool(fs, opts.SearchLimit))
	}
	return tools
}
