package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zysilm-ai/open-claude-pilot/core"
)

// InMemoryOptions configures an InMemoryStore.
type InMemoryOptions struct {
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// InMemoryStore is a volatile Store keeping everything in process local
// maps. It is safe for concurrent access and best suited for tests or
// ephemeral demo servers. Returned values are copies, so callers cannot
// mutate internal state.
type InMemoryStore struct {
	clock func() time.Time

	mu       sync.RWMutex
	messages map[string]*Message
	bySess   map[string][]string // session id -> message ids, insertion order
	actions  map[string]*Action
	byMsg    map[string][]string // message id -> action ids, insertion order
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in‑memory store.
func NewInMemoryStore(optFns ...func(o *InMemoryOptions)) *InMemoryStore {
	opts := InMemoryOptions{Clock: time.Now}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &InMemoryStore{
		clock:    opts.Clock,
		messages: make(map[string]*Message),
		bySess:   make(map[string][]string),
		actions:  make(map[string]*Action),
		byMsg:    make(map[string][]string),
	}
}

// CreateMessage inserts a message.
func (s *InMemoryStore) CreateMessage(_ context.Context, m Message) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = core.NewID()
	}
	if _, exists := s.messages[m.ID]; exists {
		return Message{}, fmt.Errorf("session: message %s already exists", m.ID)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.clock()
	}
	m.UpdatedAt = m.CreatedAt

	stored := m
	s.messages[m.ID] = &stored
	s.bySess[m.SessionID] = append(s.bySess[m.SessionID], m.ID)

	return m, nil
}

// AppendMessageContent appends delta and marks the message streaming.
func (s *InMemoryStore) AppendMessageContent(_ context.Context, messageID, delta string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[messageID]
	if !ok {
		return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	m.Content += delta
	m.Streaming = true
	m.UpdatedAt = s.clock()
	return nil
}

// SetStreaming updates the streaming flag.
func (s *InMemoryStore) SetStreaming(_ context.Context, messageID string, streaming bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[messageID]
	if !ok {
		return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	m.Streaming = streaming
	m.UpdatedAt = s.clock()
	return nil
}

// GetMessage returns a copy of the message.
func (s *InMemoryStore) GetMessage(_ context.Context, messageID string) (Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.messages[messageID]
	if !ok {
		return Message{}, fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	return *m, nil
}

// ListMessages returns the session's messages in insertion order.
func (s *InMemoryStore) ListMessages(_ context.Context, sessionID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.bySess[sessionID]
	out := make([]Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.messages[id])
	}
	return out, nil
}

// CreateAction inserts an action for an existing message.
func (s *InMemoryStore) CreateAction(_ context.Context, a Action) (Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[a.MessageID]; !ok {
		return Action{}, fmt.Errorf("message %s: %w", a.MessageID, ErrNotFound)
	}
	if a.ID == "" {
		a.ID = core.NewID()
	}
	if a.Status == "" {
		a.Status = ActionPending
	}
	if a.Input == nil {
		a.Input = map[string]any{}
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.clock()
	}

	stored := a.clone()
	s.actions[a.ID] = &stored
	s.byMsg[a.MessageID] = append(s.byMsg[a.MessageID], a.ID)

	return a.clone(), nil
}

// CompleteAction records the outcome of an action.
func (s *InMemoryStore) CompleteAction(_ context.Context, actionID, result string, success bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actions[actionID]
	if !ok {
		return fmt.Errorf("action %s: %w", actionID, ErrNotFound)
	}
	a.Status = ActionStatusFor(success)
	a.Output = ActionOutput(result, success)
	return nil
}

// ListActions returns the message's actions in insertion order.
func (s *InMemoryStore) ListActions(_ context.Context, messageID string) ([]Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byMsg[messageID]
	out := make([]Action, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.actions[id].clone())
	}
	return out, nil
}
