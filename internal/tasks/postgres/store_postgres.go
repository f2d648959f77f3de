package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DFE-Digital/teaching-record-system-sub012/internal/tasks"
	id "github.com/DFE-Digital/teaching-record-system-sub012/pkg/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS duplicate_review_tasks (
    id         UUID PRIMARY KEY,
    person_id  UUID NOT NULL,
    status     TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS duplicate_review_candidates (
    task_id      UUID NOT NULL REFERENCES duplicate_review_tasks (id),
    candidate_id UUID NOT NULL,
    PRIMARY KEY (task_id, candidate_id)
);
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
		return fmt.Errorf("migrate tasks schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, t *tasks.DuplicateReview) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create task: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
        INSERT INTO duplicate_review_tasks (id, person_id, status, created_at)
        VALUES ($1, $2, $3, $4)`,
		t.ID, t.PersonID, t.Status, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	for _, candidateID := range t.CandidateIDs {
		_, err = tx.Exec(ctx, `
            INSERT INTO duplicate_review_candidates (task_id, candidate_id)
            VALUES ($1, $2)`, t.ID, candidateID)
		if err != nil {
			return fmt.Errorf("create task candidate: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) ListOpen(ctx context.Context) ([]*tasks.DuplicateReview, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT t.id, t.person_id, t.status, t.created_at, c.candidate_id
        FROM duplicate_review_tasks t
        JOIN duplicate_review_candidates c ON c.task_id = t.id
        WHERE t.status = $1
        ORDER BY t.created_at, t.id`, tasks.StatusOpen)
	if err != nil {
		return nil, fmt.Errorf("list open tasks: %w", err)
	}
	defer rows.Close()

	byID := make(map[id.TaskID]*tasks.DuplicateReview)
	var out []*tasks.DuplicateReview
	for rows.Next() {
		var t tasks.DuplicateReview
		var candidateID id.PersonID
		if err := rows.Scan(&t.ID, &t.PersonID, &t.Status, &t.CreatedAt, &candidateID); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		existing, ok := byID[t.ID]
		if !ok {
			existing = &t
			byID[t.ID] = existing
			out = append(out, existing)
		}
		existing.CandidateIDs = append(existing.CandidateIDs, candidateID)
	}
	return out, rows.Err()
}

var _ tasks.Store = (*PostgresStore)(nil)
