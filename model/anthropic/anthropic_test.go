package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zysilm-ai/open-claude-pilot/core"
	"github.com/zysilm-ai/open-claude-pilot/model"
)

func TestBuildMessages(t *testing.T) {
	history := []core.Message{
		core.SystemMessage("be brief"),
		core.UserMessage("edit it"),
		core.AssistantToolCallMessage("Looking.", core.ToolCall{ID: "toolu_1", Name: "file_read", Arguments: `{"path":"/workspace/a"}`}),
		core.ToolMessage("toolu_1", "file_read", "contents"),
		core.AssistantMessage("done"),
	}

	msgs := buildMessages(history)
	require.Len(t, msgs, 4, "system prompt travels separately")
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
	require.Len(t, msgs[1].Content, 2)
	require.NotNil(t, msgs[1].Content[1].OfToolUse)
	assert.Equal(t, "toolu_1", msgs[1].Content[1].OfToolUse.ID)
	assert.Equal(t, "user", string(msgs[2].Role))
	require.NotNil(t, msgs[2].Content[0].OfToolResult)
	assert.Equal(t, "toolu_1", msgs[2].Content[0].OfToolResult.ToolUseID)

	system := extractSystemMessage(history)
	require.Len(t, system, 1)
	assert.Equal(t, "be brief", system[0].Text)
}

func TestToolInput(t *testing.T) {
	assert.Equal(t, map[string]any{}, toolInput(""))
	assert.Equal(t, map[string]any{}, toolInput("{not json"))
	assert.Equal(t, map[string]any{}, toolInput("null"))
	assert.Equal(t, map[string]any{"a": 1.0}, toolInput(`{"a":1}`))
}

func TestBuildTools(t *testing.T) {
	tools := buildTools([]model.ToolDefinition{{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        "file_read",
			Description: "Read a file",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"path": map[string]any{"type": "string"}},
				"required":   []any{"path"},
			},
		},
	}})

	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "file_read", tools[0].OfTool.Name)
	assert.Equal(t, "Read a file", tools[0].OfTool.Description.Value)
	assert.Equal(t, []string{"path"}, tools[0].OfTool.InputSchema.Required)
}

func TestInfo(t *testing.T) {
	info := NewModelFromClient(nil).Info()
	assert.Equal(t, "anthropic", info.Provider)
	assert.True(t, info.SupportsTools)
}

func TestStream_MapsBlocksToCallIndices(t *testing.T) {
	events := []struct{ name, data string }{
		{"message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-test","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":1,"output_tokens":1}}}`},
		{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Checking."}}`},
		{"content_block_stop", `{"type":"content_block_stop","index":0}`},
		{"content_block_start", `{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"file_read","input":{}}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"path\":"}}`},
		{"ping", `{"type":"ping"}`},
		{"content_block_start", `{"type":"content_block_start","index":2,"content_block":{"type":"tool_use","id":"toolu_2","name":"think","input":{}}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":2,"delta":{"type":"input_json_delta","partial_json":"{}"}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"\"/workspace/a\"}"}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":""}}`},
		{"content_block_stop", `{"type":"content_block_stop","index":1}`},
		{"content_block_stop", `{"type":"content_block_stop","index":2}`},
		{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"tool_use","stop_sequence":null},"usage":{"output_tokens":10}}`},
		{"message_stop", `{"type":"message_stop"}`},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range events {
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, ev.data)
		}
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL + "/"
		o.Model = "claude-test"
	})

	items, errs := m.Stream(context.Background(), model.Request{Messages: []core.Message{core.UserMessage("hi")}})
	var got []core.StreamItem
	for it := range items {
		got = append(got, it)
	}
	require.NoError(t, <-errs)

	require.Len(t, got, 6)
	assert.Equal(t, "Checking.", got[0].Text)
	require.True(t, got[1].IsToolCall())
	assert.Equal(t, core.ToolCallDelta{Index: 0, ID: "toolu_1", Name: "file_read"}, *got[1].ToolCall)
	assert.Equal(t, core.ToolCallDelta{Index: 0, Arguments: `{"path":`}, *got[2].ToolCall)
	assert.Equal(t, core.ToolCallDelta{Index: 1, ID: "toolu_2", Name: "think"}, *got[3].ToolCall)
	assert.Equal(t, core.ToolCallDelta{Index: 1, Arguments: `{}`}, *got[4].ToolCall)
	assert.Equal(t, core.ToolCallDelta{Index: 0, Arguments: `"/workspace/a"}`}, *got[5].ToolCall)
}

func TestStream_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n")
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL + "/"
	})

	items, errs := m.Stream(context.Background(), model.Request{Messages: []core.Message{core.UserMessage("hi")}})
	for range items {
	}
	err := <-errs
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Overloaded")
}
