package agent

import (
	"context"

	"github.com/zysilm-ai/open-claude-pilot/internal/util"
)

// PromptData is the data available to system instruction templates as
// {{.tools}}, {{.workspace}} and {{.session_id}}.
type PromptData struct {
	Tools     []string
	Workspace string
	SessionID string
}

func (d PromptData) vars() map[string]any {
	return map[string]any{
		"tools":      d.Tools,
		"workspace":  d.Workspace,
		"session_id": d.SessionID,
	}
}

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(ctx context.Context, data PromptData) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(ctx context.Context, data PromptData) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(ctx context.Context, data PromptData) (string, error) { return f(ctx, data) }

// Instruction represents either a static instruction template or a dynamic provider.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static template.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(ctx context.Context, data PromptData) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a static template.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// IsZero reports whether no instruction was configured.
func (i Instruction) IsZero() bool { return i.provider == nil && i.text == "" }

// Resolve returns the instruction text, invoking the provider or rendering
// the template as needed.
func (i Instruction) Resolve(ctx context.Context, data PromptData) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(ctx, data)
	}
	return util.RenderTemplate(i.text, data.vars())
}

// DefaultInstruction is the system prompt used when none is configured.
const DefaultInstruction = `You are an autonomous coding assistant working inside a sandboxed workspace at {{.workspace}}.
User uploaded files live in {{.workspace}}/project_files and your outputs belong in {{.workspace}}/out.

Work step by step. In each step either call exactly one tool or give your final answer.
Available tools: {{join ", " .tools}}.
Read files before editing them, prefer file_edit over rewriting whole files, and explain what you did when you are done.`
