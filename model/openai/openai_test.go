package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zysilm-ai/open-claude-pilot/core"
	"github.com/zysilm-ai/open-claude-pilot/model"
)

func TestBuildMessages(t *testing.T) {
	history := []core.Message{
		core.SystemMessage("be brief"),
		core.UserMessage("read a file"),
		core.AssistantToolCallMessage("", core.ToolCall{ID: "call_1", Name: "file_read", Arguments: `{"path":"/workspace/a"}`}),
		core.ToolMessage("call_1", "file_read", "contents"),
		core.AssistantMessage("done"),
	}

	msgs := buildMessages(history)
	require.Len(t, msgs, 5)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)

	require.NotNil(t, msgs[2].OfAssistant)
	require.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	assert.Equal(t, "call_1", msgs[2].OfAssistant.ToolCalls[0].ID)
	assert.Equal(t, "file_read", msgs[2].OfAssistant.ToolCalls[0].Function.Name)

	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "call_1", msgs[3].OfTool.ToolCallID)
	assert.NotNil(t, msgs[4].OfAssistant)
}

func TestArgumentsOrEmpty(t *testing.T) {
	assert.Equal(t, "{}", argumentsOrEmpty(""))
	assert.Equal(t, `{"a":1}`, argumentsOrEmpty(`{"a":1}`))
}

func TestBuildParams_Tools(t *testing.T) {
	m := NewModelFromClient(nil, func(o *Options) { o.Model = "gpt-test" })
	params := m.buildParams(model.Request{Tools: []model.ToolDefinition{{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:       "think",
			Parameters: map[string]any{"type": "object"},
		},
	}}}, nil)

	assert.Equal(t, "gpt-test", string(params.Model))
	require.Len(t, params.Tools, 1)
	assert.Equal(t, "think", params.Tools[0].Function.Name)
}

const chunkTmpl = `{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-test","choices":[{"index":0,"delta":%s,"finish_reason":null}]}`

func TestStream_ForwardsRawDeltas(t *testing.T) {
	deltas := []string{
		`{"role":"assistant","content":"Let me"}`,
		`{"content":" check."}`,
		`{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"file_read","arguments":""}}]}`,
		`{"tool_calls":[{"index":0,"function":{"arguments":"{\"path\":"}}]}`,
		`{"tool_calls":[{"index":0,"function":{"arguments":"\"/workspace/a\"}"}}]}`,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range deltas {
			fmt.Fprintf(w, "data: "+chunkTmpl+"\n\n", d)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL + "/"
		o.Model = "gpt-test"
	})

	items, errs := m.Stream(context.Background(), model.Request{Messages: []core.Message{core.UserMessage("hi")}})
	var got []core.StreamItem
	for it := range items {
		got = append(got, it)
	}
	require.NoError(t, <-errs)

	require.Len(t, got, 5)
	assert.Equal(t, "Let me", got[0].Text)
	assert.Equal(t, " check.", got[1].Text)
	require.True(t, got[2].IsToolCall())
	assert.Equal(t, core.ToolCallDelta{Index: 0, ID: "call_1", Name: "file_read"}, *got[2].ToolCall)
	assert.Equal(t, `{"path":`, got[3].ToolCall.Arguments)
	assert.Equal(t, `"/workspace/a"}`, got[4].ToolCall.Arguments)
}

func TestStream_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad request","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	client := openai.NewClient(option.WithAPIKey("test"), option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	m := NewModelFromClient(&client)

	items, errs := m.Stream(context.Background(), model.Request{})
	for range items {
	}
	err := <-errs
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai streaming error")
}

func TestInfo(t *testing.T) {
	info := NewModelFromClient(nil).Info()
	assert.Equal(t, "openai", info.Provider)
	assert.True(t, info.SupportsTools)
}
