package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
)

var errStreamClosed = errors.New("server: stream closed")

// ndjsonSender writes one JSON document per line to an HTTP response and
// flushes after each. Once the handler returns the sender is closed and
// every later Send fails, which the runner treats as a dropped client.
type ndjsonSender struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	enc     *json.Encoder
	flusher http.Flusher
	done    <-chan struct{}
	closed  bool
	wrote   bool
}

func newNDJSONSender(w http.ResponseWriter, done <-chan struct{}) *ndjsonSender {
	f, _ := w.(http.Flusher)
	return &ndjsonSender{w: w, enc: json.NewEncoder(w), flusher: f, done: done}
}

// Send implements runner.Sender.
func (s *ndjsonSender) Send(_ context.Context, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errStreamClosed
	}
	select {
	case <-s.done:
		return errStreamClosed
	default:
	}

	if !s.wrote {
		s.w.Header().Set("Content-Type", "application/x-ndjson")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.WriteHeader(http.StatusOK)
		s.wrote = true
	}

	if err := s.enc.Encode(v); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// Started reports whether the response has been committed.
func (s *ndjsonSender) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wrote
}

func (s *ndjsonSender) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
