// Package tasks holds the support tasks the engine raises for humans. The
// engine never resolves an ambiguous correlation itself; it records the
// choice set and a person picks.
package tasks

import (
	"context"
	"time"

	id "github.com/DFE-Digital/teaching-record-system-sub012/pkg/domain"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// DuplicateReview asks a human to choose between the newly created person
// and the candidate existing persons an ambiguous row matched.
type DuplicateReview struct {
	ID           id.TaskID
	PersonID     id.PersonID
	CandidateIDs []id.PersonID
	Status       Status
	CreatedAt    time.Time
}

type Store interface {
	// Create persists a new open duplicate-review task.
	Create(ctx context.Context, t *DuplicateReview) error

	// ListOpen returns open tasks oldest-first for the support UI.
	ListOpen(ctx context.Context) ([]*DuplicateReview, error)
}
