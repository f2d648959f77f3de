package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DFE-Digital/teaching-record-system-sub012/internal/ledger"
	id "github.com/DFE-Digital/teaching-record-system-sub012/pkg/domain"
	"github.com/DFE-Digital/teaching-record-system-sub012/pkg/platform/sentinel"
)

const schema = `
CREATE TABLE IF NOT EXISTS integration_transactions (
    id           UUID PRIMARY KEY,
    file_name    TEXT NOT NULL,
    total        INT NOT NULL DEFAULT 0,
    successes    INT NOT NULL DEFAULT 0,
    failures     INT NOT NULL DEFAULT 0,
    duplicates   INT NOT NULL DEFAULT 0,
    warnings     INT NOT NULL DEFAULT 0,
    status       TEXT NOT NULL,
    started_at   TIMESTAMPTZ NOT NULL,
    completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS integration_transaction_records (
    id             UUID PRIMARY KEY,
    transaction_id UUID NOT NULL REFERENCES integration_transactions (id),
    person_id      UUID,
    status         TEXT NOT NULL,
    duplicate      BOOLEAN NOT NULL DEFAULT FALSE,
    message        TEXT NOT NULL DEFAULT '',
    row_data       TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL,
    seq            BIGSERIAL
);
CREATE INDEX IF NOT EXISTS idx_itr_transaction_id
    ON integration_transaction_records (transaction_id, seq);
`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies the store's schema. Idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateTransaction(ctx context.Context, t *ledger.Transaction) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO integration_transactions
            (id, file_name, total, successes, failures, duplicates, warnings, status, started_at, completed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.FileName, t.Total, t.Successes, t.Failures, t.Duplicates, t.Warnings,
		t.Status, t.StartedAt, t.CompletedAt)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) AddRecord(ctx context.Context, r *ledger.Record) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO integration_transaction_records
            (id, transaction_id, person_id, status, duplicate, message, row_data, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.TransactionID, r.PersonID, r.Status, r.Duplicate, r.Message, r.RowData, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("add transaction record: %w", err)
	}
	return nil
}

func (s *PostgresStore) CompleteTransaction(ctx context.Context, t *ledger.Transaction) error {
	tag, err := s.pool.Exec(ctx, `
        UPDATE integration_transactions
        SET total = $2, successes = $3, failures = $4, duplicates = $5, warnings = $6,
            status = $7, completed_at = $8
        WHERE id = $1 AND completed_at IS NULL`,
		t.ID, t.Total, t.Successes, t.Failures, t.Duplicates, t.Warnings, t.Status, t.CompletedAt)
	if err != nil {
		return fmt.Errorf("complete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either missing or already completed; disambiguate for the caller.
		if _, gErr := s.GetTransaction(ctx, t.ID); gErr != nil {
			return gErr
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) GetTransaction(ctx context.Context, txID id.TransactionID) (*ledger.Transaction, error) {
	var t ledger.Transaction
	err := s.pool.QueryRow(ctx, `
        SELECT id, file_name, total, successes, failures, duplicates, warnings, status, started_at, completed_at
        FROM integration_transactions WHERE id = $1`, txID).
		Scan(&t.ID, &t.FileName, &t.Total, &t.Successes, &t.Failures, &t.Duplicates,
			&t.Warnings, &t.Status, &t.StartedAt, &t.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, txID id.TransactionID) ([]*ledger.Record, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT id, transaction_id, person_id, status, duplicate, message, row_data, created_at
        FROM integration_transaction_records
        WHERE transaction_id = $1 ORDER BY seq`, txID)
	if err != nil {
		return nil, fmt.Errorf("list transaction records: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Record
	for rows.Next() {
		var r ledger.Record
		if err := rows.Scan(&r.ID, &r.TransactionID, &r.PersonID, &r.Status, &r.Duplicate,
			&r.Message, &r.RowData, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction record: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

var _ ledger.Store = (*PostgresStore)(nil)
