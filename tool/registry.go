package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zysilm-ai/open-claude-pilot/logging"
	"github.com/zysilm-ai/open-claude-pilot/model"
)

const tracerName = "github.com/zysilm-ai/open-claude-pilot/tool"

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Logger         logging.Logger
	TracerProvider trace.TracerProvider
	// ValidateArguments checks decoded arguments against each tool's
	// parameter schema before Execute. Enabled by default.
	ValidateArguments bool
}

type entry struct {
	tool   Tool
	schema *jsonschema.Schema
}

// Registry is a name keyed lookup table of tools. It is safe for concurrent
// use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	opts    RegistryOptions
	tracer  trace.Tracer
}

// NewRegistry creates an empty registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{
		Logger:            logging.NoOpLogger{},
		TracerProvider:    otel.GetTracerProvider(),
		ValidateArguments: true,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}

	return &Registry{
		entries: make(map[string]entry),
		opts:    opts,
		tracer:  opts.TracerProvider.Tracer(tracerName),
	}
}

// Register inserts tools keyed by name. The last registration for a name
// wins. Register fails only when a tool's parameter schema does not compile.
func (r *Registry) Register(tools ...Tool) error {
	for _, t := range tools {
		sch, err := compileSchema(t)
		if err != nil {
			return fmt.Errorf("tool %s: compile schema: %w", t.Name(), err)
		}

		r.mu.Lock()
		if _, exists := r.entries[t.Name()]; exists {
			r.opts.Logger.Debug("tool.registry.replace", "tool", t.Name())
		}
		r.entries[t.Name()] = entry{tool: t, schema: sch}
		r.mu.Unlock()
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(tools ...Tool) *Registry {
	if err := r.Register(tools...); err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.tool, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns the registered tools ordered by name.
func (r *Registry) List() []Tool {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		if e, ok := r.entries[name]; ok {
			tools = append(tools, e.tool)
		}
	}
	return tools
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Definitions returns the function calling schema of every tool, ordered by
// name so that prompts are stable across runs.
func (r *Registry) Definitions() []model.ToolDefinition {
	tools := r.List()
	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, FormatForLLM(t))
	}
	return defs
}

// Subset returns a new registry holding only the named tools. Unknown names
// are skipped.
func (r *Registry) Subset(names []string) *Registry {
	sub := &Registry{
		entries: make(map[string]entry, len(names)),
		opts:    r.opts,
		tracer:  r.tracer,
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range names {
		e, ok := r.entries[name]
		if !ok {
			r.opts.Logger.Warn("tool.registry.subset_unknown", "tool", name)
			continue
		}
		sub.entries[name] = e
	}
	return sub
}

// Execute runs the named tool. Every failure, including an unknown name,
// invalid arguments and a panicking tool, comes back as a failed Result.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (result Result) {
	ctx, span := r.tracer.Start(ctx, "tool.execute", trace.WithAttributes(attribute.String("tool.name", name)))
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			result = Failure(CodeExecutionError, fmt.Sprintf("Tool %s failed: %v", name, rec), nil)
		}

		span.SetAttributes(attribute.Bool("tool.success", result.Success))
		if !result.Success {
			span.SetStatus(codes.Error, result.Error)
			span.SetAttributes(attribute.String("tool.error_code", result.Code()))
		}
		span.End()

		if result.Success {
			r.opts.Logger.Debug("tool.call.success", "tool", name, "duration_ms", time.Since(start).Milliseconds())
		} else {
			r.opts.Logger.Warn("tool.call.failed", "tool", name, "code", result.Code(), "error", result.Error,
				"duration_ms", time.Since(start).Milliseconds())
		}
	}()

	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return Failure(CodeUnknownTool, fmt.Sprintf("Unknown tool: %s", name), map[string]any{"tool": name})
	}

	if args == nil {
		args = map[string]any{}
	}

	r.opts.Logger.Debug("tool.call.start", "tool", name)

	if r.opts.ValidateArguments && e.schema != nil {
		if err := validateArgs(e.schema, args); err != nil {
			return Failure(CodeInvalidArguments, fmt.Sprintf("Invalid arguments for %s: %v", name, err), map[string]any{"tool": name})
		}
	}

	return e.tool.Execute(ctx, args)
}

func compileSchema(t Tool) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(Schema(t.Parameters()))
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	url := "mem://tools/" + t.Name() + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

// validateArgs round-trips args through JSON so numbers take the
// representation the validator expects.
func validateArgs(sch *jsonschema.Schema, args map[string]any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	return sch.Validate(inst)
}
