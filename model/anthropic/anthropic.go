// Package anthropic provides a model.StreamSource for the Anthropic Claude
// Messages API. Streaming content block events are translated into text
// items and raw tool-call deltas.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/zysilm-ai/open-claude-pilot/core"
	"github.com/zysilm-ai/open-claude-pilot/model"
)

// Options configures the Anthropic source (temperature, model id,
// max tokens, API key).
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	BaseURL     string
}

// Model wraps the Anthropic Messages API behind model.StreamSource.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a new Anthropic source using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{
		client: &client,
		opts:   opts,
	}
}

// NewModelFromClient creates a new Anthropic source from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{
		client: client,
		opts:   opts,
	}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Stream implements model.StreamSource.
func (m *Model) Stream(ctx context.Context, req model.Request) (<-chan core.StreamItem, <-chan error) {
	out := make(chan core.StreamItem, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		defer close(out)

		params := anthropic.MessageNewParams{
			Model:       m.opts.Model,
			Messages:    buildMessages(req.Messages),
			MaxTokens:   m.opts.MaxTokens,
			Temperature: anthropic.Float(m.opts.Temperature),
		}
		if systemBlocks := extractSystemMessage(req.Messages); len(systemBlocks) > 0 {
			params.System = systemBlocks
		}
		if len(req.Tools) > 0 {
			params.Tools = buildTools(req.Tools)
		}

		if err := m.handleStreaming(ctx, params, out); err != nil {
			errCh <- err
		}
	}()

	return out, errCh
}

// handleStreaming maps content block indices of tool_use blocks onto dense
// call indices (0, 1, ...) so text blocks do not leave gaps.
func (m *Model) handleStreaming(ctx context.Context, params anthropic.MessageNewParams, out chan<- core.StreamItem) error {
	stream := m.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	callIndex := map[int64]int{}

	for stream.Next() {
		event := stream.Current()

		var item *core.StreamItem
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockStartEvent:
			if ev.ContentBlock.Type != "tool_use" {
				continue
			}
			idx := len(callIndex)
			callIndex[ev.Index] = idx
			it := core.ToolCallItem(core.ToolCallDelta{
				Index: idx,
				ID:    ev.ContentBlock.ID,
				Name:  ev.ContentBlock.Name,
			})
			item = &it
		case anthropic.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if delta.Text == "" {
					continue
				}
				it := core.TextItem(delta.Text)
				item = &it
			case anthropic.InputJSONDelta:
				idx, ok := callIndex[ev.Index]
				if !ok || delta.PartialJSON == "" {
					continue
				}
				it := core.ToolCallItem(core.ToolCallDelta{Index: idx, Arguments: delta.PartialJSON})
				item = &it
			}
		}

		if item != nil && !model.Send(ctx, out, *item) {
			return ctx.Err()
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("anthropic streaming error: %w", err)
	}
	return nil
}

// buildMessages converts history into Anthropic messages. Tool observations
// travel as tool_result blocks inside a user message.
func buildMessages(history []core.Message) []anthropic.MessageParam {
	var messages []anthropic.MessageParam

	for _, msg := range history {
		switch msg.Role {
		case core.RoleSystem:
			continue
		case core.RoleAssistant:
			var content []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				content = append(content, anthropic.NewTextBlock(msg.Content))
			}
			if msg.ToolCall != nil {
				content = append(content, anthropic.NewToolUseBlock(
					msg.ToolCall.ID,
					toolInput(msg.ToolCall.Arguments),
					msg.ToolCall.Name,
				))
			}
			if len(content) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(content...))
			}
		case core.RoleTool:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		default:
			if msg.Content != "" {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
			}
		}
	}

	return messages
}

// toolInput decodes recorded arguments; tool_use input must be an object.
func toolInput(args string) map[string]any {
	input := map[string]any{}
	if args == "" {
		return input
	}
	if err := json.Unmarshal([]byte(args), &input); err != nil || input == nil {
		return map[string]any{}
	}
	return input
}

func extractSystemMessage(history []core.Message) []anthropic.TextBlockParam {
	var systemBlocks []anthropic.TextBlockParam

	for _, msg := range history {
		if msg.Role == core.RoleSystem && msg.Content != "" {
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: msg.Content})
		}
	}

	return systemBlocks
}

// buildTools converts tool definitions to Anthropic tool format.
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))

	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if params := tool.Function.Parameters; params != nil {
			if properties, exists := params["properties"]; exists {
				inputSchema.Properties = properties
			}
			switch req := params["required"].(type) {
			case []string:
				inputSchema.Required = req
			case []any:
				for _, r := range req {
					if s, ok := r.(string); ok {
						inputSchema.Required = append(inputSchema.Required, s)
					}
				}
			}
		}

		anthropicTools[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Function.Name)
		if tool.Function.Description != "" && anthropicTools[i].OfTool != nil {
			anthropicTools[i].OfTool.Description = anthropic.String(tool.Function.Description)
		}
	}

	return anthropicTools
}

// Info returns metadata describing this Anthropic source.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
