// Package memory holds the in-memory person register used in development and
// as the unit-test double for the postgres store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/DFE-Digital/teaching-record-system-sub012/internal/person/models"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/person/store"
	id "github.com/DFE-Digital/teaching-record-system-sub012/pkg/domain"
	"github.com/DFE-Digital/teaching-record-system-sub012/pkg/platform/sentinel"
)

type InMemory struct {
	mu      sync.RWMutex
	byID    map[id.PersonID]*models.Person
	byTRN   map[id.TRN]id.PersonID
	changes []models.FieldChange
}

func New() *InMemory {
	return &InMemory{
		byID:  make(map[id.PersonID]*models.Person),
		byTRN: make(map[id.TRN]id.PersonID),
	}
}

func (s *InMemory) GetByID(_ context.Context, personID id.PersonID) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[personID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *InMemory) GetByTRN(_ context.Context, trn id.TRN) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	personID, ok := s.byTRN[trn]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.byID[personID].Clone(), nil
}

func (s *InMemory) FindBy(_ context.Context, q store.Query) ([]*models.Person, error) {
	if q.IsEmpty() {
		return nil, sentinel.ErrInvalidState
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Person
	for _, p := range s.byID {
		if p.Deactivated() || !matches(p, q) {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func matches(p *models.Person, q store.Query) bool {
	if q.NationalInsuranceNumber != nil && p.NationalInsuranceNumber != *q.NationalInsuranceNumber {
		return false
	}
	if q.Gender != nil && p.Gender != *q.Gender {
		return false
	}
	if q.LastName != nil && !strings.EqualFold(p.LastName, *q.LastName) {
		return false
	}
	if q.FirstName != nil && !strings.EqualFold(p.FirstName, *q.FirstName) {
		return false
	}
	if q.DateOfBirth != nil {
		if p.DateOfBirth == nil || !p.DateOfBirth.Equal(*q.DateOfBirth) {
			return false
		}
	}
	return true
}

func (s *InMemory) Create(_ context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[p.ID]; exists {
		return sentinel.ErrConflict
	}
	if !p.TRN.IsZero() {
		if _, taken := s.byTRN[p.TRN]; taken {
			return sentinel.ErrConflict
		}
	}

	cp := p.Clone()
	if cp.Version == 0 {
		cp.Version = 1
	}
	s.byID[cp.ID] = cp
	if !cp.TRN.IsZero() {
		s.byTRN[cp.TRN] = cp.ID
	}
	p.Version = cp.Version
	return nil
}

func (s *InMemory) Update(_ context.Context, p *models.Person, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[p.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != expectedVersion {
		return sentinel.ErrConflict
	}

	at := p.UpdatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	s.logChanges(current, p, at)

	cp := p.Clone()
	cp.Version = current.Version + 1
	cp.UpdatedAt = at
	s.byID[cp.ID] = cp

	if current.TRN != cp.TRN {
		delete(s.byTRN, current.TRN)
		if !cp.TRN.IsZero() {
			s.byTRN[cp.TRN] = cp.ID
		}
	}
	p.Version = cp.Version
	return nil
}

func (s *InMemory) logChanges(old, new *models.Person, at time.Time) {
	if old.LastName != new.LastName {
		s.changes = append(s.changes, models.FieldChange{
			PersonID:   old.ID,
			Field:      models.FieldLastName,
			OldValue:   old.LastName,
			NewValue:   new.LastName,
			OccurredAt: at,
		})
	}
	if models.DateValue(old.DateOfBirth) != models.DateValue(new.DateOfBirth) {
		s.changes = append(s.changes, models.FieldChange{
			PersonID:   old.ID,
			Field:      models.FieldDateOfBirth,
			OldValue:   models.DateValue(old.DateOfBirth),
			NewValue:   models.DateValue(new.DateOfBirth),
			OccurredAt: at,
		})
	}
	if old.NationalInsuranceNumber != new.NationalInsuranceNumber {
		s.changes = append(s.changes, models.FieldChange{
			PersonID:   old.ID,
			Field:      models.FieldNationalInsuranceNumber,
			OldValue:   string(old.NationalInsuranceNumber),
			NewValue:   string(new.NationalInsuranceNumber),
			OccurredAt: at,
		})
	}
}

func (s *InMemory) ListCreatedBetween(_ context.Context, from, to time.Time) ([]*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Person
	for _, p := range s.byID {
		if p.CreatedAt.After(from) && !p.CreatedAt.After(to) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) ListChangesBetween(_ context.Context, from, to time.Time) ([]models.FieldChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.FieldChange
	for _, c := range s.changes {
		if c.OccurredAt.After(from) && !c.OccurredAt.After(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *InMemory) NameHistory(_ context.Context, personID id.PersonID) ([]models.FieldChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.FieldChange
	for _, c := range s.changes {
		if c.PersonID == personID && c.Field == models.FieldLastName {
			out = append(out, c)
		}
	}
	return out, nil
}

var _ store.Store = (*InMemory)(nil)
