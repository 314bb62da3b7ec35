package model

import (
	"context"
	"sync"

	"github.com/zysilm-ai/open-claude-pilot/core"
)

// Turn is one scripted model response: items emitted in order, optionally
// followed by Err. BeforeItem, when set, runs before the item at the same
// position is sent, letting tests interleave side effects (cancellation,
// persistence checks) with the stream.
type Turn struct {
	Items      []core.StreamItem
	Err        error
	BeforeItem map[int]func()
}

// Text builds a turn streaming each fragment as a text item.
func Text(fragments ...string) Turn {
	t := Turn{}
	for _, f := range fragments {
		t.Items = append(t.Items, core.TextItem(f))
	}
	return t
}

// ScriptedSource is a deterministic in-memory StreamSource useful for tests
// and examples. Each call to Stream consumes the next Turn; once the script
// is exhausted an empty turn is returned.
type ScriptedSource struct {
	mu       sync.Mutex
	info     Info
	turns    []Turn
	requests []Request
}

// NewScriptedSource constructs a ScriptedSource from turns.
func NewScriptedSource(turns ...Turn) *ScriptedSource {
	return &ScriptedSource{
		info:  Info{Name: "scripted", Provider: "scripted", SupportsTools: true},
		turns: turns,
	}
}

// Stream implements StreamSource.
func (s *ScriptedSource) Stream(ctx context.Context, req Request) (<-chan core.StreamItem, <-chan error) {
	s.mu.Lock()
	s.requests = append(s.requests, cloneRequest(req))
	var turn Turn
	if len(s.turns) > 0 {
		turn = s.turns[0]
		s.turns = s.turns[1:]
	}
	s.mu.Unlock()

	out := make(chan core.StreamItem)
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		defer close(out)
		for i, item := range turn.Items {
			if hook := turn.BeforeItem[i]; hook != nil {
				hook()
			}
			if !Send(ctx, out, item) {
				errCh <- ctx.Err()
				return
			}
		}
		if turn.Err != nil {
			errCh <- turn.Err
		}
	}()
	return out, errCh
}

// Requests returns the requests received so far.
func (s *ScriptedSource) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Info implements StreamSource.
func (s *ScriptedSource) Info() Info { return s.info }

func cloneRequest(req Request) Request {
	return Request{
		Messages: append([]core.Message(nil), req.Messages...),
		Tools:    append([]ToolDefinition(nil), req.Tools...),
	}
}
