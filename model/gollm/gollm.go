// Package gollm provides a text-only model.StreamSource backed by
// teilomillet/gollm, giving access to every provider gollm supports
// (ollama, groq, mistral, ...). Tool definitions are not forwarded, so
// turns produced by this source are always plain answers.
package gollm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/teilomillet/gollm"

	"github.com/zysilm-ai/open-claude-pilot/core"
	"github.com/zysilm-ai/open-claude-pilot/model"
)

// Options configures the gollm source.
type Options struct {
	Provider    string
	Model       string
	APIKey      string
	MaxTokens   int
	Temperature float64
	// Extra is appended to the generated gollm configuration.
	Extra []gollm.ConfigOption
}

// Model adapts a gollm.LLM to model.StreamSource.
type Model struct {
	llm  gollm.LLM
	opts Options
}

// NewModel creates a gollm backed source. If APIKey is empty gollm reads it
// from the provider's environment variable.
func NewModel(optFns ...func(o *Options)) (*Model, error) {
	opts := Options{
		Provider:    "ollama",
		Model:       "llama3.1",
		MaxTokens:   4096,
		Temperature: 0.7,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := []gollm.ConfigOption{
		gollm.SetProvider(opts.Provider),
		gollm.SetModel(opts.Model),
		gollm.SetMaxTokens(opts.MaxTokens),
		gollm.SetTemperature(opts.Temperature),
		gollm.SetMaxRetries(0),
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if opts.APIKey != "" {
		cfg = append(cfg, gollm.SetAPIKey(opts.APIKey))
	}
	cfg = append(cfg, opts.Extra...)

	llm, err := gollm.NewLLM(cfg...)
	if err != nil {
		return nil, fmt.Errorf("create gollm LLM for provider %s: %w", opts.Provider, err)
	}
	return &Model{llm: llm, opts: opts}, nil
}

// NewModelFromLLM wraps an existing gollm.LLM instance.
func NewModelFromLLM(llm gollm.LLM, optFns ...func(o *Options)) *Model {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{llm: llm, opts: opts}
}

// Stream implements model.StreamSource.
func (m *Model) Stream(ctx context.Context, req model.Request) (<-chan core.StreamItem, <-chan error) {
	out := make(chan core.StreamItem, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		defer close(out)
		if err := m.stream(ctx, buildPrompt(req.Messages), out); err != nil {
			errCh <- err
		}
	}()

	return out, errCh
}

func (m *Model) stream(ctx context.Context, prompt *gollm.Prompt, out chan<- core.StreamItem) error {
	if !m.llm.SupportsStreaming() {
		text, err := m.llm.Generate(ctx, prompt)
		if err != nil {
			return fmt.Errorf("gollm generate: %w", err)
		}
		if text != "" && !model.Send(ctx, out, core.TextItem(text)) {
			return ctx.Err()
		}
		return nil
	}

	stream, err := m.llm.Stream(ctx, prompt)
	if err != nil {
		return fmt.Errorf("gollm stream: %w", err)
	}
	defer stream.Close()

	for {
		token, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("gollm stream: %w", err)
		}
		if token == nil || token.Text == "" {
			continue
		}
		if !model.Send(ctx, out, core.TextItem(token.Text)) {
			return ctx.Err()
		}
	}
}

// buildPrompt flattens history into a single gollm prompt. System messages
// become the system prompt; earlier turns are replayed as tagged context.
func buildPrompt(history []core.Message) *gollm.Prompt {
	var (
		system []string
		parts  []string
	)
	for _, msg := range history {
		switch msg.Role {
		case core.RoleSystem:
			system = append(system, msg.Content)
		case core.RoleUser:
			parts = append(parts, msg.Content)
		case core.RoleAssistant:
			if msg.Content != "" {
				parts = append(parts, "[Assistant]: "+msg.Content)
			}
			if msg.ToolCall != nil {
				parts = append(parts, fmt.Sprintf("[Tool Call %s]: %s", msg.ToolCall.Name, msg.ToolCall.Arguments))
			}
		case core.RoleTool:
			parts = append(parts, "[Tool Result]: "+msg.Content)
		}
	}

	text := strings.Join(parts, "\n")
	if text == "" {
		text = "Hello"
	}

	var opts []gollm.PromptOption
	if len(system) > 0 {
		opts = append(opts, gollm.WithSystemPrompt(strings.TrimSpace(strings.Join(system, "\n")), gollm.CacheTypeEphemeral))
	}
	return gollm.NewPrompt(text, opts...)
}

// Info returns metadata describing this source.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "gollm/" + m.opts.Provider,
		SupportsTools: false,
	}
}
