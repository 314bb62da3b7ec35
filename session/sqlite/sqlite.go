// Package sqlite provides a durable session.Store backed by SQLite through
// the ncruces/go-sqlite3 driver. Every write runs as its own statement, so
// each applied event is committed before the call returns.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/zysilm-ai/open-claude-pilot/core"
	"github.com/zysilm-ai/open-claude-pilot/session"
)

//go:embed schema.sql
var schema string

const driverName = "sqlite3"

// Options configures a Store.
type Options struct {
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
	// Migrate creates the schema on Open. Defaults to true.
	Migrate bool
}

// Store implements session.Store on SQLite.
type Store struct {
	db    *sql.DB
	clock func() time.Time
}

var _ session.Store = (*Store)(nil)

// DSN turns a file path into a driver DSN with a busy timeout and foreign
// keys enabled. Values that already look like DSNs are returned unchanged.
func DSN(path string) string {
	if strings.HasPrefix(path, "file:") || path == ":memory:" {
		return path
	}
	return "file:" + path + "?_pragma=busy_timeout(10000)&_pragma=foreign_keys(ON)"
}

// Open opens (and by default migrates) the database at dsn. A plain file
// path is accepted and converted with DSN.
func Open(ctx context.Context, dsn string, optFns ...func(o *Options)) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("sqlite: dsn is empty")
	}

	opts := Options{Clock: time.Now, Migrate: true}
	for _, fn := range optFns {
		fn(&opts)
	}

	db, err := sql.Open(driverName, DSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under concurrent runs.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping db: %w", err)
	}

	s := &Store{db: db, clock: opts.Clock}

	if opts.Migrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return s, nil
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// CreateMessage inserts a message.
func (s *Store) CreateMessage(ctx context.Context, m session.Message) (session.Message, error) {
	if m.ID == "" {
		m.ID = core.NewID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.clock()
	}
	m.UpdatedAt = m.CreatedAt

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, content, streaming, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, string(m.Role), m.Content, m.Streaming,
		m.CreatedAt.UnixNano(), m.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return session.Message{}, fmt.Errorf("sqlite: insert message: %w", err)
	}

	return m, nil
}

// AppendMessageContent appends delta and marks the message streaming.
func (s *Store) AppendMessageContent(ctx context.Context, messageID, delta string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET content = content || ?, streaming = 1, updated_at = ? WHERE id = ?`,
		delta, s.clock().UnixNano(), messageID,
	)
	return checkUpdated(res, err, "message", messageID)
}

// SetStreaming updates the streaming flag.
func (s *Store) SetStreaming(ctx context.Context, messageID string, streaming bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET streaming = ?, updated_at = ? WHERE id = ?`,
		streaming, s.clock().UnixNano(), messageID,
	)
	return checkUpdated(res, err, "message", messageID)
}

const messageColumns = `id, session_id, role, content, streaming, created_at, updated_at`

// GetMessage returns a message by ID.
func (s *Store) GetMessage(ctx context.Context, messageID string) (session.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = ?`, messageID)

	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Message{}, fmt.Errorf("message %s: %w", messageID, session.ErrNotFound)
	}
	if err != nil {
		return session.Message{}, fmt.Errorf("sqlite: get message: %w", err)
	}
	return m, nil
}

// ListMessages returns the session's messages in insertion order.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]session.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list messages: %w", err)
	}
	defer rows.Close()

	out := []session.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateAction inserts an action for an existing message.
func (s *Store) CreateAction(ctx context.Context, a session.Action) (session.Action, error) {
	if _, err := s.GetMessage(ctx, a.MessageID); err != nil {
		return session.Action{}, err
	}

	if a.ID == "" {
		a.ID = core.NewID()
	}
	if a.Status == "" {
		a.Status = session.ActionPending
	}
	if a.Input == nil {
		a.Input = map[string]any{}
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.clock()
	}

	input, err := json.Marshal(a.Input)
	if err != nil {
		return session.Action{}, fmt.Errorf("sqlite: encode action input: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO actions (id, message_id, action_type, action_input, status, step, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.MessageID, a.Tool, string(input), string(a.Status), a.Step, a.CreatedAt.UnixNano(),
	)
	if err != nil {
		return session.Action{}, fmt.Errorf("sqlite: insert action: %w", err)
	}

	return a, nil
}

// CompleteAction records the outcome of an action.
func (s *Store) CompleteAction(ctx context.Context, actionID, result string, success bool) error {
	output, err := json.Marshal(session.ActionOutput(result, success))
	if err != nil {
		return fmt.Errorf("sqlite: encode action output: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE actions SET status = ?, action_output = ? WHERE id = ?`,
		string(session.ActionStatusFor(success)), string(output), actionID,
	)
	return checkUpdated(res, err, "action", actionID)
}

// ListActions returns the message's actions in insertion order.
func (s *Store) ListActions(ctx context.Context, messageID string) ([]session.Action, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message_id, action_type, action_input, action_output, status, step, created_at
		 FROM actions WHERE message_id = ? ORDER BY seq`, messageID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list actions: %w", err)
	}
	defer rows.Close()

	out := []session.Action{}
	for rows.Next() {
		var (
			a       session.Action
			input   string
			output  sql.NullString
			status  string
			created int64
		)
		if err := rows.Scan(&a.ID, &a.MessageID, &a.Tool, &input, &output, &status, &a.Step, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scan action: %w", err)
		}
		if err := json.Unmarshal([]byte(input), &a.Input); err != nil {
			return nil, fmt.Errorf("sqlite: decode action input: %w", err)
		}
		if output.Valid {
			if err := json.Unmarshal([]byte(output.String), &a.Output); err != nil {
				return nil, fmt.Errorf("sqlite: decode action output: %w", err)
			}
		}
		a.Status = session.ActionStatus(status)
		a.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(sc scanner) (session.Message, error) {
	var (
		m                session.Message
		role             string
		created, updated int64
	)
	if err := sc.Scan(&m.ID, &m.SessionID, &role, &m.Content, &m.Streaming, &created, &updated); err != nil {
		return session.Message{}, err
	}
	m.Role = core.Role(role)
	m.CreatedAt = time.Unix(0, created).UTC()
	m.UpdatedAt = time.Unix(0, updated).UTC()
	return m, nil
}

func checkUpdated(res sql.Result, err error, kind, id string) error {
	if err != nil {
		return fmt.Errorf("sqlite: update %s: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: update %s: %w", kind, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, session.ErrNotFound)
	}
	return nil
}
