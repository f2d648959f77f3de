package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DFE-Digital/teaching-record-system-sub012/internal/person/models"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/person/store"
	id "github.com/DFE-Digital/teaching-record-system-sub012/pkg/domain"
	"github.com/DFE-Digital/teaching-record-system-sub012/pkg/platform/sentinel"
)

func ptr[T any](v T) *T { return &v }

func newPerson(trn id.TRN) *models.Person {
	return &models.Person{
		ID:        id.NewPersonID(),
		TRN:       trn,
		Gender:    id.GenderFemale,
		FirstName: "Rosa",
		LastName:  "Kovacs",
		Status:    models.StatusActive,
		CreatedAt: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestCreateAndLookup(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := newPerson("1234567")

	require.NoError(t, s.Create(ctx, p))
	assert.Equal(t, 1, p.Version)

	t.Run("by id", func(t *testing.T) {
		got, err := s.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
	})

	t.Run("by trn", func(t *testing.T) {
		got, err := s.GetByTRN(ctx, "1234567")
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
	})

	t.Run("unknown trn is not found", func(t *testing.T) {
		_, err := s.GetByTRN(ctx, "0000000")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("trn already taken is conflict", func(t *testing.T) {
		err := s.Create(ctx, newPerson("1234567"))
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("lookup returns a copy", func(t *testing.T) {
		got, err := s.GetByID(ctx, p.ID)
		require.NoError(t, err)
		got.LastName = "Mutated"

		again, err := s.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Kovacs", again.LastName)
	})
}

func TestGetByTRNIncludesDeactivated(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := newPerson("1234567")
	p.Status = models.StatusDeactivated
	require.NoError(t, s.Create(ctx, p))

	got, err := s.GetByTRN(ctx, "1234567")
	require.NoError(t, err)
	assert.True(t, got.Deactivated())
}

func TestFindBy(t *testing.T) {
	ctx := context.Background()
	s := New()
	dob := time.Date(1985, 3, 14, 0, 0, 0, 0, time.UTC)

	p := newPerson("1234567")
	p.DateOfBirth = &dob
	require.NoError(t, s.Create(ctx, p))

	hidden := newPerson("7654321")
	hidden.DateOfBirth = &dob
	hidden.Status = models.StatusDeactivated
	require.NoError(t, s.Create(ctx, hidden))

	t.Run("empty query is rejected", func(t *testing.T) {
		_, err := s.FindBy(ctx, store.Query{})
		assert.ErrorIs(t, err, sentinel.ErrInvalidState)
	})

	t.Run("surname matching is case-insensitive", func(t *testing.T) {
		got, err := s.FindBy(ctx, store.Query{LastName: ptr("KOVACS"), DateOfBirth: &dob})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, p.ID, got[0].ID)
	})

	t.Run("deactivated persons are invisible", func(t *testing.T) {
		got, err := s.FindBy(ctx, store.Query{DateOfBirth: &dob})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, p.ID, got[0].ID)
	})

	t.Run("no match is empty, not error", func(t *testing.T) {
		got, err := s.FindBy(ctx, store.Query{LastName: ptr("Nobody")})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestUpdateOptimisticConcurrency(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := newPerson("1234567")
	require.NoError(t, s.Create(ctx, p))

	first := p.Clone()
	first.FirstName = "Rose"
	require.NoError(t, s.Update(ctx, first, 1))
	assert.Equal(t, 2, first.Version)

	t.Run("stale version conflicts", func(t *testing.T) {
		stale := p.Clone()
		stale.FirstName = "Rosalind"
		assert.ErrorIs(t, s.Update(ctx, stale, 1), sentinel.ErrConflict)
	})

	t.Run("unknown person is not found", func(t *testing.T) {
		ghost := newPerson("9999999")
		assert.ErrorIs(t, s.Update(ctx, ghost, 1), sentinel.ErrNotFound)
	})

	t.Run("trn index follows update", func(t *testing.T) {
		moved := first.Clone()
		moved.TRN = "7654321"
		require.NoError(t, s.Update(ctx, moved, 2))

		_, err := s.GetByTRN(ctx, "1234567")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		got, err := s.GetByTRN(ctx, "7654321")
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
	})
}

func TestChangeLogAndNameHistory(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	p := newPerson("1234567")
	p.LastName = "Archer"
	require.NoError(t, s.Create(ctx, p))

	rename := func(to string, at time.Time, version int) {
		cp, err := s.GetByID(ctx, p.ID)
		require.NoError(t, err)
		cp.LastName = to
		cp.UpdatedAt = at
		require.NoError(t, s.Update(ctx, cp, version))
	}
	rename("Blake", base.Add(time.Hour), 1)
	rename("Cole", base.Add(2*time.Hour), 2)

	t.Run("name history is oldest first", func(t *testing.T) {
		hist, err := s.NameHistory(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, hist, 2)
		assert.Equal(t, "Archer", hist[0].OldValue)
		assert.Equal(t, "Blake", hist[0].NewValue)
		assert.Equal(t, "Blake", hist[1].OldValue)
		assert.Equal(t, "Cole", hist[1].NewValue)
	})

	t.Run("changes window is half-open", func(t *testing.T) {
		changes, err := s.ListChangesBetween(ctx, base.Add(time.Hour), base.Add(2*time.Hour))
		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.Equal(t, "Cole", changes[0].NewValue)
	})

	t.Run("nino change is tracked", func(t *testing.T) {
		cp, err := s.GetByID(ctx, p.ID)
		require.NoError(t, err)
		cp.NationalInsuranceNumber = "QQ123456C"
		cp.UpdatedAt = base.Add(3 * time.Hour)
		require.NoError(t, s.Update(ctx, cp, 3))

		changes, err := s.ListChangesBetween(ctx, base.Add(2*time.Hour), base.Add(4*time.Hour))
		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.Equal(t, models.FieldNationalInsuranceNumber, changes[0].Field)
		assert.Equal(t, "QQ123456C", changes[0].NewValue)
	})
}

func TestListCreatedBetween(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mk := func(trn id.TRN, at time.Time) *models.Person {
		p := newPerson(trn)
		p.CreatedAt = at
		require.NoError(t, s.Create(ctx, p))
		return p
	}
	before := mk("1111111", base.Add(-time.Hour))
	inside := mk("2222222", base.Add(time.Hour))
	atEnd := mk("3333333", base.Add(2*time.Hour))

	got, err := s.ListCreatedBetween(ctx, base, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, inside.ID, got[0].ID)
	assert.Equal(t, atEnd.ID, got[1].ID)
	for _, p := range got {
		assert.NotEqual(t, before.ID, p.ID)
	}
}
