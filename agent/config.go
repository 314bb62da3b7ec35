package agent

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/zysilm-ai/open-claude-pilot/logging"
	"github.com/zysilm-ai/open-claude-pilot/sandbox"
)

// DefaultMaxIterations bounds the reasoning/acting rounds of one run.
const DefaultMaxIterations = 10

// Config is the per-session agent configuration.
type Config struct {
	// SystemInstructions is a text/template; empty selects DefaultInstruction.
	SystemInstructions string `json:"system_instructions,omitempty"`
	// EnabledTools filters the registry; empty enables every tool.
	EnabledTools  []string `json:"enabled_tools,omitempty"`
	MaxIterations int      `json:"max_iterations,omitempty"`
}

// Options configures a ReActAgent.
type Options struct {
	Instruction    Instruction
	MaxIterations  int
	Workspace      string
	Logger         logging.Logger
	TracerProvider trace.TracerProvider
}

func defaultOptions() Options {
	return Options{
		Instruction:   NewInstructionFromText(DefaultInstruction),
		MaxIterations: DefaultMaxIterations,
		Workspace:     sandbox.WorkspaceRoot,
		Logger:        logging.NoOpLogger{},
	}
}

// WithConfig applies a Config on top of the defaults. EnabledTools is
// applied by NewFromConfig since it needs the registry.
func WithConfig(cfg Config) func(o *Options) {
	return func(o *Options) {
		if cfg.SystemInstructions != "" {
			o.Instruction = NewInstructionFromText(cfg.SystemInstructions)
		}
		if cfg.MaxIterations > 0 {
			o.MaxIterations = cfg.MaxIterations
		}
	}
}
