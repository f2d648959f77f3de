// Package watermark persists the last-successful-run cursor each incremental
// export job reads at start and advances only after completing cleanly. A
// failed run must never move its watermark past its own start time.
package watermark

import (
	"context"
	"sync"
	"time"
)

// Job names keyed in the watermark store.
const (
	JobNewExport   = "gtc-new-export"
	JobAmendExport = "gtc-amend-export"
)

type Store interface {
	// LastRun returns the job's cursor; ok is false when the job has
	// never completed.
	LastRun(ctx context.Context, job string) (t time.Time, ok bool, err error)

	// SetLastRun advances the job's cursor.
	SetLastRun(ctx context.Context, job string, t time.Time) error
}

// InMemory is the development and unit-test watermark store.
type InMemory struct {
	mu   sync.RWMutex
	runs map[string]time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{runs: make(map[string]time.Time)}
}

func (s *InMemory) LastRun(_ context.Context, job string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.runs[job]
	return t, ok, nil
}

func (s *InMemory) SetLastRun(_ context.Context, job string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[job] = t
	return nil
}

var _ Store = (*InMemory)(nil)
