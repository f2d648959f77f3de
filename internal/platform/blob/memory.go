package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/DFE-Digital/teaching-record-system-sub012/pkg/platform/sentinel"
)

// InMemory keeps streams in process memory; the development and unit-test
// double for the filesystem store.
type InMemory struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewInMemory() *InMemory {
	return &InMemory{files: make(map[string][]byte)}
}

// Put seeds a named stream.
func (m *InMemory) Put(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = append([]byte(nil), data...)
}

// Get returns a stored stream's bytes.
func (m *InMemory) Get(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[name]
	return data, ok
}

func (m *InMemory) Open(_ context.Context, name string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.files[name]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", name, sentinel.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *InMemory) Create(_ context.Context, name string) (io.WriteCloser, error) {
	return &memWriter{store: m, name: name}, nil
}

type memWriter struct {
	store *InMemory
	name  string
	buf   bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *memWriter) Close() error {
	w.store.Put(w.name, w.buf.Bytes())
	return nil
}

var _ Store = (*InMemory)(nil)
