package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/DFE-Digital/teaching-record-system-sub012/internal/tasks"
	id "github.com/DFE-Digital/teaching-record-system-sub012/pkg/domain"
	"github.com/DFE-Digital/teaching-record-system-sub012/pkg/platform/sentinel"
)

type InMemory struct {
	mu    sync.RWMutex
	byID  map[id.TaskID]*tasks.DuplicateReview
	order []id.TaskID
}

func New() *InMemory {
	return &InMemory{byID: make(map[id.TaskID]*tasks.DuplicateReview)}
}

func clone(t *tasks.DuplicateReview) *tasks.DuplicateReview {
	cp := *t
	cp.CandidateIDs = append([]id.PersonID(nil), t.CandidateIDs...)
	return &cp
}

func (s *InMemory) Create(_ context.Context, t *tasks.DuplicateReview) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[t.ID]; exists {
		return sentinel.ErrConflict
	}
	s.byID[t.ID] = clone(t)
	s.order = append(s.order, t.ID)
	return nil
}

func (s *InMemory) ListOpen(_ context.Context) ([]*tasks.DuplicateReview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*tasks.DuplicateReview
	for _, taskID := range s.order {
		if t := s.byID[taskID]; t.Status == tasks.StatusOpen {
			out = append(out, clone(t))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

var _ tasks.Store = (*InMemory)(nil)
