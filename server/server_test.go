package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zysilm-ai/open-claude-pilot/agent"
	"github.com/zysilm-ai/open-claude-pilot/internal/testutil"
	"github.com/zysilm-ai/open-claude-pilot/model"
	"github.com/zysilm-ai/open-claude-pilot/runner"
	"github.com/zysilm-ai/open-claude-pilot/session"
	"github.com/zysilm-ai/open-claude-pilot/task"
	"github.com/zysilm-ai/open-claude-pilot/tool"
)

type fixture struct {
	srv    *httptest.Server
	store  *session.InMemoryStore
	tasks  *task.Registry
	runner *runner.Runner
}

func newFixture(t *testing.T, turns ...model.Turn) *fixture {
	t.Helper()

	f := &fixture{
		store: session.NewInMemoryStore(),
		tasks: task.NewRegistry(),
	}
	tools := tool.NewRegistry().MustRegister(tool.NewThinkTool())
	f.runner = runner.New(agent.NewReActAgent(model.NewScriptedSource(turns...), tools), func(o *runner.Options) {
		o.Store = f.store
		o.Tasks = f.tasks
	})
	f.srv = httptest.NewServer(New(f.runner).Handler())
	t.Cleanup(f.srv.Close)

	return f
}

func readLines(t *testing.T, resp *http.Response) []map[string]any {
	t.Helper()

	var out []map[string]any
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func typesOf(lines []map[string]any) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l["type"].(string))
	}
	return out
}

// -------------------- Health Tests --------------------

func TestServer_Healthz(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

// -------------------- Send Message Tests --------------------

func TestServer_SendMessageStreamsNDJSON(t *testing.T) {
	f := newFixture(t,
		testutil.ToolTurn("think", `{"thought":"plan"}`),
		model.Text("All ", "done"),
	)

	resp, err := http.Post(f.srv.URL+"/sessions/s1/messages", "application/json", strings.NewReader(`{"content":"hello"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	lines := readLines(t, resp)
	assert.Equal(t, []string{
		"user_message_saved", "start",
		"action_streaming", "action_args_chunk", "action", "observation",
		"chunk", "chunk",
		"end",
	}, typesOf(lines))

	assert.Equal(t, map[string]any{"type": "action", "tool": "think", "args": map[string]any{"thought": "plan"}, "step": float64(1)}, lines[4])
	assert.Equal(t, map[string]any{"type": "observation", "content": "plan", "success": true, "step": float64(1)}, lines[5])

	got, ok := f.tasks.Get("s1")
	require.True(t, ok)
	assert.Equal(t, task.StatusCompleted, got.Status)
	assert.Equal(t, lines[1]["message_id"], got.MessageID)
}

func TestServer_SendMessageValidation(t *testing.T) {
	f := newFixture(t)

	for name, body := range map[string]string{
		"malformed": `{"content":`,
		"empty":     `{"content":"  "}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := http.Post(f.srv.URL+"/sessions/s1/messages", "application/json", strings.NewReader(body))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var er errorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&er))
			assert.NotEmpty(t, er.Error)
		})
	}
}

// -------------------- Query Tests --------------------

func TestServer_ListMessages(t *testing.T) {
	f := newFixture(t, testutil.ToolTurn("think", `{"thought":"x"}`), model.Text("answer"))

	resp, err := http.Post(f.srv.URL+"/sessions/s1/messages", "application/json", strings.NewReader(`{"content":"q"}`))
	require.NoError(t, err)
	readLines(t, resp)
	resp.Body.Close()

	resp, err = http.Get(f.srv.URL + "/sessions/s1/messages")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Messages []struct {
			Role      string           `json:"role"`
			Content   string           `json:"content"`
			Streaming bool             `json:"streaming"`
			Actions   []map[string]any `json:"actions"`
		} `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Messages, 2)

	assert.Equal(t, "user", body.Messages[0].Role)
	assert.Empty(t, body.Messages[0].Actions)

	assert.Equal(t, "assistant", body.Messages[1].Role)
	assert.Equal(t, "answer", body.Messages[1].Content)
	assert.False(t, body.Messages[1].Streaming)
	require.Len(t, body.Messages[1].Actions, 1)
	assert.Equal(t, "think", body.Messages[1].Actions[0]["action_type"])
	assert.Equal(t, "success", body.Messages[1].Actions[0]["status"])
}

func TestServer_GetTask(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/sessions/s1/task")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	f.tasks.Register("s1", "msg-1", nil, nil)

	resp, err = http.Get(f.srv.URL + "/sessions/s1/task")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "s1", body["session_id"])
	assert.Equal(t, "msg-1", body["message_id"])
	assert.Equal(t, "running", body["status"])
}

// -------------------- Cancel Tests --------------------

func TestServer_Cancel(t *testing.T) {
	f := newFixture(t)

	post := func() bool {
		resp, err := http.Post(f.srv.URL+"/sessions/s1/cancel", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		var body cancelResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body.Cancelled
	}

	assert.False(t, post())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.tasks.Register("s1", "msg-1", nil, cancel)

	assert.True(t, post())
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.False(t, post())
}

func TestServer_ClientDisconnectKeepsRunning(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, testutil.NewStreamBuilder().
		Text("one ").
		Before(func() { <-release }).
		Text("two").
		Turn())

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.srv.URL+"/sessions/s1/messages", strings.NewReader(`{"content":"q"}`))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	// Read the first line, then drop the connection.
	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "user_message_saved")
	cancel()
	resp.Body.Close()
	close(release)

	require.Eventually(t, func() bool {
		got, ok := f.tasks.Get("s1")
		return ok && got.Status == task.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	msgs, err := f.store.ListMessages(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "one two", msgs[1].Content)
	assert.False(t, msgs[1].Streaming)
}
