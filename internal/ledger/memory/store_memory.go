package memory

import (
	"context"
	"sync"

	"github.com/DFE-Digital/teaching-record-system-sub012/internal/ledger"
	id "github.com/DFE-Digital/teaching-record-system-sub012/pkg/domain"
	"github.com/DFE-Digital/teaching-record-system-sub012/pkg/platform/sentinel"
)

type InMemory struct {
	mu           sync.RWMutex
	transactions map[id.TransactionID]*ledger.Transaction
	records      map[id.TransactionID][]*ledger.Record
}

func New() *InMemory {
	return &InMemory{
		transactions: make(map[id.TransactionID]*ledger.Transaction),
		records:      make(map[id.TransactionID][]*ledger.Record),
	}
}

func clone(t *ledger.Transaction) *ledger.Transaction {
	cp := *t
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}

func (s *InMemory) CreateTransaction(_ context.Context, t *ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[t.ID]; exists {
		return sentinel.ErrConflict
	}
	s.transactions[t.ID] = clone(t)
	return nil
}

func (s *InMemory) AddRecord(_ context.Context, r *ledger.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[r.TransactionID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *r
	s.records[r.TransactionID] = append(s.records[r.TransactionID], &cp)
	return nil
}

func (s *InMemory) CompleteTransaction(_ context.Context, t *ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.transactions[t.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.CompletedAt != nil {
		return sentinel.ErrInvalidState
	}
	s.transactions[t.ID] = clone(t)
	return nil
}

func (s *InMemory) GetTransaction(_ context.Context, txID id.TransactionID) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transactions[txID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(t), nil
}

func (s *InMemory) ListRecords(_ context.Context, txID id.TransactionID) ([]*ledger.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.records[txID]
	out := make([]*ledger.Record, 0, len(src))
	for _, r := range src {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

var _ ledger.Store = (*InMemory)(nil)
