// Package sessiontest provides a conformance suite for session.Store
// implementations.
package sessiontest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zysilm-ai/open-claude-pilot/core"
	"github.com/zysilm-ai/open-claude-pilot/session"
)

// RunStoreTests runs the conformance suite. newStore must return an empty
// store for every call.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) session.Store) {
	t.Helper()

	t.Run("CreateAndGetMessage", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		m, err := s.CreateMessage(ctx, session.Message{SessionID: "s1", Role: core.RoleUser, Content: "hi"})
		require.NoError(t, err)
		assert.NotEmpty(t, m.ID)
		assert.False(t, m.CreatedAt.IsZero())

		got, err := s.GetMessage(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, "s1", got.SessionID)
		assert.Equal(t, core.RoleUser, got.Role)
		assert.Equal(t, "hi", got.Content)
		assert.False(t, got.Streaming)
	})

	t.Run("GetMissingMessage", func(t *testing.T) {
		_, err := newStore(t).GetMessage(context.Background(), "nope")
		require.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("AppendContentIncrementally", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		m, err := s.CreateMessage(ctx, session.Message{SessionID: "s1", Role: core.RoleAssistant, Streaming: true})
		require.NoError(t, err)

		var snapshots []string
		for _, chunk := range []string{"First ", "second ", "third"} {
			require.NoError(t, s.AppendMessageContent(ctx, m.ID, chunk))
			got, err := s.GetMessage(ctx, m.ID)
			require.NoError(t, err)
			snapshots = append(snapshots, got.Content)
			assert.True(t, got.Streaming)
		}

		assert.Equal(t, []string{"First ", "First second ", "First second third"}, snapshots)

		require.NoError(t, s.SetStreaming(ctx, m.ID, false))
		got, err := s.GetMessage(ctx, m.ID)
		require.NoError(t, err)
		assert.False(t, got.Streaming)
		assert.Equal(t, "First second third", got.Content)
	})

	t.Run("UpdateMissingMessage", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.ErrorIs(t, s.AppendMessageContent(ctx, "nope", "x"), session.ErrNotFound)
		require.ErrorIs(t, s.SetStreaming(ctx, "nope", false), session.ErrNotFound)
	})

	t.Run("ListMessagesInOrder", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		for _, content := range []string{"one", "two", "three"} {
			_, err := s.CreateMessage(ctx, session.Message{SessionID: "s1", Role: core.RoleUser, Content: content})
			require.NoError(t, err)
		}
		_, err := s.CreateMessage(ctx, session.Message{SessionID: "other", Role: core.RoleUser, Content: "x"})
		require.NoError(t, err)

		msgs, err := s.ListMessages(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, "one", msgs[0].Content)
		assert.Equal(t, "two", msgs[1].Content)
		assert.Equal(t, "three", msgs[2].Content)

		empty, err := s.ListMessages(ctx, "missing")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("ActionLifecycle", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		m, err := s.CreateMessage(ctx, session.Message{SessionID: "s1", Role: core.RoleAssistant})
		require.NoError(t, err)

		a, err := s.CreateAction(ctx, session.Action{
			MessageID: m.ID,
			Tool:      "bash",
			Input:     map[string]any{"command": "ls"},
			Step:      1,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, a.ID)
		assert.Equal(t, session.ActionPending, a.Status)

		actions, err := s.ListActions(ctx, m.ID)
		require.NoError(t, err)
		require.Len(t, actions, 1)
		assert.Equal(t, session.ActionPending, actions[0].Status)
		assert.Equal(t, map[string]any{"command": "ls"}, actions[0].Input)
		assert.Equal(t, 1, actions[0].Step)

		require.NoError(t, s.CompleteAction(ctx, a.ID, "file1.txt\nfile2.txt", true))

		actions, err = s.ListActions(ctx, m.ID)
		require.NoError(t, err)
		require.Len(t, actions, 1)
		assert.Equal(t, session.ActionSuccess, actions[0].Status)
		assert.Equal(t, map[string]any{"result": "file1.txt\nfile2.txt", "success": true}, actions[0].Output)
	})

	t.Run("FailedAction", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		m, err := s.CreateMessage(ctx, session.Message{SessionID: "s1", Role: core.RoleAssistant})
		require.NoError(t, err)
		a, err := s.CreateAction(ctx, session.Action{MessageID: m.ID, Tool: "file_read"})
		require.NoError(t, err)

		require.NoError(t, s.CompleteAction(ctx, a.ID, "File not found: x", false))

		actions, err := s.ListActions(ctx, m.ID)
		require.NoError(t, err)
		require.Len(t, actions, 1)
		assert.Equal(t, session.ActionError, actions[0].Status)
		assert.Equal(t, false, actions[0].Output["success"])
		assert.Equal(t, map[string]any{}, actions[0].Input)
	})

	t.Run("ActionErrors", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		_, err := s.CreateAction(ctx, session.Action{MessageID: "nope", Tool: "bash"})
		require.ErrorIs(t, err, session.ErrNotFound)

		require.ErrorIs(t, s.CompleteAction(ctx, "nope", "x", true), session.ErrNotFound)
	})
}
