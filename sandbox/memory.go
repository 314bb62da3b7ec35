package sandbox

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Sandbox backed by a map. It is safe for concurrent
// use and implements Lister. Useful for tests and dry runs.
type Memory struct {
	mu       sync.RWMutex
	files    map[string]string
	writeErr error
	writes   int
}

// NewMemory constructs a Memory sandbox pre-populated with files.
func NewMemory(files map[string]string) *Memory {
	m := &Memory{files: make(map[string]string, len(files))}
	for p, c := range files {
		m.files[path.Clean(p)] = c
	}
	return m
}

// FailWrites makes every subsequent WriteFile return err (nil restores writes).
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// ReadFile implements Sandbox.
func (m *Memory) ReadFile(ctx context.Context, p string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.files[path.Clean(p)]
	if !ok {
		return "", ErrNotFound
	}
	return c, nil
}

// WriteFile implements Sandbox. Directories are implicit.
func (m *Memory) WriteFile(ctx context.Context, p, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.files[path.Clean(p)] = content
	m.writes++
	return nil
}

// ListFiles implements Lister returning sorted paths below root.
func (m *Memory) ListFiles(ctx context.Context, root string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root = path.Clean(root)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for p := range m.files {
		if p == root || strings.HasPrefix(p, root+"/") {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Files returns a snapshot copy of all files.
func (m *Memory) Files() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.files))
	for k, v := range m.files {
		out[k] = v
	}
	return out
}

// Writes returns the number of successful writes.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}
