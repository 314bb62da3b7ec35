package session

import (
	"context"
	"fmt"
	"slices"

	"github.com/zysilm-ai/open-claude-pilot/core"
)

// LoadHistory converts the stored messages of a session into conversation
// history for a model, oldest first. Messages whose ID is listed in exclude
// and messages without content are skipped, as are roles other than user and
// assistant. Assistant messages still marked streaming belong to a run that
// has not finished and are left out.
func LoadHistory(ctx context.Context, store Store, sessionID string, exclude ...string) ([]core.Message, error) {
	msgs, err := store.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session: load history for %s: %w", sessionID, err)
	}

	history := make([]core.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Content == "" || m.Streaming || slices.Contains(exclude, m.ID) {
			continue
		}

		switch m.Role {
		case core.RoleUser:
			history = append(history, core.UserMessage(m.Content))
		case core.RoleAssistant:
			history = append(history, core.AssistantMessage(m.Content))
		}
	}

	return history, nil
}
