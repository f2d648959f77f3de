// Package store defines the person register port the reconciliation engine
// programs against. The register itself is shared with interactive journeys
// and support-task resolution, so every lookup-then-mutate sequence must
// assume concurrent modification; Update takes the version the caller read.
package store

import (
	"context"
	"time"

	"github.com/DFE-Digital/teaching-record-system-sub012/internal/person/models"
	id "github.com/DFE-Digital/teaching-record-system-sub012/pkg/domain"
)

// Query describes an attribute match over active persons. Nil fields are not
// constrained. Name comparisons are case-insensitive; everything else is
// exact.
type Query struct {
	NationalInsuranceNumber *id.NationalInsuranceNumber
	Gender                  *id.Gender
	LastName                *string
	FirstName               *string
	DateOfBirth             *time.Time
}

// IsEmpty reports whether the query constrains nothing. Stores reject empty
// queries rather than returning the whole register.
func (q Query) IsEmpty() bool {
	return q.NationalInsuranceNumber == nil && q.Gender == nil &&
		q.LastName == nil && q.FirstName == nil && q.DateOfBirth == nil
}

type Store interface {
	// GetByID returns the person or sentinel.ErrNotFound.
	GetByID(ctx context.Context, personID id.PersonID) (*models.Person, error)

	// GetByTRN returns the person holding the TRN, deactivated or not, or
	// sentinel.ErrNotFound.
	GetByTRN(ctx context.Context, trn id.TRN) (*models.Person, error)

	// FindBy returns every active person matching the query.
	FindBy(ctx context.Context, q Query) ([]*models.Person, error)

	// Create inserts a new person; sentinel.ErrConflict if the TRN is taken.
	Create(ctx context.Context, p *models.Person) error

	// Update replaces the person's attributes if the stored version equals
	// expectedVersion, bumping the version and recording tracked field
	// changes; sentinel.ErrConflict on a version mismatch.
	Update(ctx context.Context, p *models.Person, expectedVersion int) error

	// ListCreatedBetween returns persons created in (from, to], ordered by
	// creation time, for the incremental new-record export.
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]*models.Person, error)

	// ListChangesBetween returns tracked field changes in (from, to] in
	// occurrence order, for the incremental amend export.
	ListChangesBetween(ctx context.Context, from, to time.Time) ([]models.FieldChange, error)

	// NameHistory returns the person's surname changes oldest-first.
	NameHistory(ctx context.Context, personID id.PersonID) ([]models.FieldChange, error)
}
