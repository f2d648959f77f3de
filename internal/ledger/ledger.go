// Package ledger records one parent transaction per batch run plus one child
// record per input row, for audit and support. Rows move Pending -> terminal
// exactly once; a completed transaction is never mutated again.
package ledger

import (
	"context"
	"time"

	id "github.com/DFE-Digital/teaching-record-system-sub012/pkg/domain"
)

// TransactionStatus is the parent batch outcome.
type TransactionStatus string

const (
	StatusInProgress TransactionStatus = "in_progress"
	StatusSuccess    TransactionStatus = "success"
	StatusFailed     TransactionStatus = "failed"
)

// RowStatus is the terminal state of one input row. Duplicates are a
// sub-classification of Success carried on the record's flag, not a fourth
// state.
type RowStatus string

const (
	RowSuccess RowStatus = "success"
	RowWarning RowStatus = "warning"
	RowFailure RowStatus = "failure"
)

// Transaction aggregates one batch run. Counts are finalized exactly once;
// if the driver itself fails, rows already written are preserved as-is for
// diagnosis.
type Transaction struct {
	ID          id.TransactionID
	FileName    string
	Total       int
	Successes   int
	Failures    int
	Duplicates  int
	Warnings    int
	Status      TransactionStatus
	StartedAt   time.Time
	CompletedAt *time.Time
}

// Count folds one row outcome into the running totals.
func (t *Transaction) Count(status RowStatus, duplicate bool) {
	t.Total++
	switch status {
	case RowSuccess:
		t.Successes++
	case RowWarning:
		t.Warnings++
	case RowFailure:
		t.Failures++
	}
	if duplicate {
		t.Duplicates++
	}
}

// Record is the immutable per-row ledger entry.
type Record struct {
	ID            id.RecordID
	TransactionID id.TransactionID
	PersonID      *id.PersonID
	Status        RowStatus
	Duplicate     bool
	Message       string
	RowData       string
	CreatedAt     time.Time
}

type Store interface {
	// CreateTransaction persists a new in-progress transaction.
	CreateTransaction(ctx context.Context, t *Transaction) error

	// AddRecord appends one row record to its transaction.
	AddRecord(ctx context.Context, r *Record) error

	// CompleteTransaction writes the final counts and status;
	// sentinel.ErrInvalidState if the transaction was already completed.
	CompleteTransaction(ctx context.Context, t *Transaction) error

	// GetTransaction returns the transaction or sentinel.ErrNotFound.
	GetTransaction(ctx context.Context, txID id.TransactionID) (*Transaction, error)

	// ListRecords returns a transaction's row records in insertion order.
	ListRecords(ctx context.Context, txID id.TransactionID) ([]*Record, error)
}
