//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/DFE-Digital/teaching-record-system-sub012/internal/person/models"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/person/store"
	id "github.com/DFE-Digital/teaching-record-system-sub012/pkg/domain"
	"github.com/DFE-Digital/teaching-record-system-sub012/pkg/platform/sentinel"
	"github.com/DFE-Digital/teaching-record-system-sub012/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = New(s.pg.Pool)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.pg != nil {
		s.pg.Pool.Close()
		_ = s.pg.Container.Terminate(context.Background())
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateAll(context.Background(), "person_field_changes", "persons"))
}

func (s *PostgresStoreSuite) newPerson(trn id.TRN) *models.Person {
	dob := time.Date(1985, 3, 14, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Person{
		ID:          id.NewPersonID(),
		TRN:         trn,
		Gender:      id.GenderFemale,
		FirstName:   "Rosa",
		LastName:    "Kovacs",
		DateOfBirth: &dob,
		Status:      models.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *PostgresStoreSuite) TestCreateAndGet() {
	ctx := context.Background()
	p := s.newPerson("1234567")
	s.Require().NoError(s.store.Create(ctx, p))

	s.Run("by id", func() {
		got, err := s.store.GetByID(ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(p.TRN, got.TRN)
		s.Equal(1, got.Version)
	})

	s.Run("by trn", func() {
		got, err := s.store.GetByTRN(ctx, "1234567")
		s.Require().NoError(err)
		s.Equal(p.ID, got.ID)
	})

	s.Run("duplicate trn conflicts", func() {
		err := s.store.Create(ctx, s.newPerson("1234567"))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("null trn rows do not collide", func() {
		s.NoError(s.store.Create(ctx, s.newPerson("")))
		s.NoError(s.store.Create(ctx, s.newPerson("")))
	})
}

func (s *PostgresStoreSuite) TestFindByExcludesDeactivated() {
	ctx := context.Background()
	p := s.newPerson("1234567")
	s.Require().NoError(s.store.Create(ctx, p))

	gone := s.newPerson("7654321")
	gone.Status = models.StatusDeactivated
	s.Require().NoError(s.store.Create(ctx, gone))

	surname := "kovacs"
	got, err := s.store.FindBy(ctx, store.Query{LastName: &surname, DateOfBirth: p.DateOfBirth})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(p.ID, got[0].ID)
}

func (s *PostgresStoreSuite) TestUpdateVersioningAndChangeLog() {
	ctx := context.Background()
	p := s.newPerson("1234567")
	s.Require().NoError(s.store.Create(ctx, p))

	cp, err := s.store.GetByID(ctx, p.ID)
	s.Require().NoError(err)
	cp.LastName = "Nagy"
	cp.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(s.store.Update(ctx, cp, 1))
	s.Equal(2, cp.Version)

	s.Run("stale version conflicts", func() {
		stale, err := s.store.GetByID(ctx, p.ID)
		s.Require().NoError(err)
		stale.FirstName = "Ria"
		s.ErrorIs(s.store.Update(ctx, stale, 1), sentinel.ErrConflict)
	})

	s.Run("surname change is logged", func() {
		hist, err := s.store.NameHistory(ctx, p.ID)
		s.Require().NoError(err)
		s.Require().Len(hist, 1)
		s.Equal("Kovacs", hist[0].OldValue)
		s.Equal("Nagy", hist[0].NewValue)
	})

	s.Run("changes window", func() {
		changes, err := s.store.ListChangesBetween(ctx, cp.UpdatedAt.Add(-time.Second), cp.UpdatedAt)
		s.Require().NoError(err)
		s.Require().Len(changes, 1)
		s.Equal(models.FieldLastName, changes[0].Field)
	})
}

func (s *PostgresStoreSuite) TestListCreatedBetween() {
	ctx := context.Background()
	p := s.newPerson("1234567")
	s.Require().NoError(s.store.Create(ctx, p))

	got, err := s.store.ListCreatedBetween(ctx, p.CreatedAt.Add(-time.Minute), p.CreatedAt)
	s.Require().NoError(err)
	s.Require().Len(got, 1)

	none, err := s.store.ListCreatedBetween(ctx, p.CreatedAt, p.CreatedAt.Add(time.Minute))
	s.Require().NoError(err)
	s.Empty(none)
}
