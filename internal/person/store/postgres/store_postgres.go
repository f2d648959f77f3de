// Package postgres implements the person register over pgx. Updates run in a
// transaction so the version check, the attribute write, and the change-log
// append land atomically.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DFE-Digital/teaching-record-system-sub012/internal/person/models"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/person/store"
	id "github.com/DFE-Digital/teaching-record-system-sub012/pkg/domain"
	"github.com/DFE-Digital/teaching-record-system-sub012/pkg/platform/sentinel"
)

const schema = `
CREATE TABLE IF NOT EXISTS persons (
    id              UUID PRIMARY KEY,
    trn             TEXT UNIQUE,
    gender          TEXT NOT NULL,
    first_name      TEXT NOT NULL DEFAULT '',
    middle_name     TEXT NOT NULL DEFAULT '',
    last_name       TEXT NOT NULL DEFAULT '',
    date_of_birth   DATE,
    nino            TEXT NOT NULL DEFAULT '',
    date_of_death   DATE,
    status          TEXT NOT NULL,
    created_by_feed BOOLEAN NOT NULL DEFAULT FALSE,
    created_at      TIMESTAMPTZ NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL,
    version         INT NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_persons_nino ON persons (nino) WHERE nino <> '';
CREATE INDEX IF NOT EXISTS idx_persons_created_at ON persons (created_at);

CREATE TABLE IF NOT EXISTS person_field_changes (
    person_id   UUID NOT NULL REFERENCES persons (id),
    field       TEXT NOT NULL,
    old_value   TEXT NOT NULL DEFAULT '',
    new_value   TEXT NOT NULL DEFAULT '',
    occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_person_field_changes_occurred_at
    ON person_field_changes (occurred_at);
`

const personColumns = `id, COALESCE(trn, ''), gender, first_name, middle_name, last_name,
    date_of_birth, nino, date_of_death, status, created_by_feed, created_at, updated_at, version`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies the store's schema. Idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate persons schema: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*models.Person, error) {
	var p models.Person
	var trn, nino string
	err := row.Scan(&p.ID, &trn, &p.Gender, &p.FirstName, &p.MiddleName, &p.LastName,
		&p.DateOfBirth, &nino, &p.DateOfDeath, &p.Status, &p.CreatedByFeed,
		&p.CreatedAt, &p.UpdatedAt, &p.Version)
	if err != nil {
		return nil, err
	}
	p.TRN = id.TRN(trn)
	p.NationalInsuranceNumber = id.NationalInsuranceNumber(nino)
	return &p, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+personColumns+` FROM persons WHERE id = $1`, personID)
	p, err := scanPerson(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get person by id: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetByTRN(ctx context.Context, trn id.TRN) (*models.Person, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+personColumns+` FROM persons WHERE trn = $1`, string(trn))
	p, err := scanPerson(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get person by trn: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) FindBy(ctx context.Context, q store.Query) ([]*models.Person, error) {
	if q.IsEmpty() {
		return nil, sentinel.ErrInvalidState
	}

	query := `SELECT ` + personColumns + ` FROM persons WHERE status = $1`
	args := []any{models.StatusActive}
	next := 2

	add := func(clause string, arg any) {
		query += fmt.Sprintf(" AND "+clause, next)
		args = append(args, arg)
		next++
	}
	if q.NationalInsuranceNumber != nil {
		add("nino = $%d", string(*q.NationalInsuranceNumber))
	}
	if q.Gender != nil {
		add("gender = $%d", string(*q.Gender))
	}
	if q.LastName != nil {
		add("LOWER(last_name) = LOWER($%d)", *q.LastName)
	}
	if q.FirstName != nil {
		add("LOWER(first_name) = LOWER($%d)", *q.FirstName)
	}
	if q.DateOfBirth != nil {
		add("date_of_birth = $%d", *q.DateOfBirth)
	}
	query += " ORDER BY created_at"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find persons: %w", err)
	}
	defer rows.Close()

	var out []*models.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Create(ctx context.Context, p *models.Person) error {
	if p.Version == 0 {
		p.Version = 1
	}
	var trn *string
	if !p.TRN.IsZero() {
		v := string(p.TRN)
		trn = &v
	}
	_, err := s.pool.Exec(ctx, `
        INSERT INTO persons (id, trn, gender, first_name, middle_name, last_name,
            date_of_birth, nino, date_of_death, status, created_by_feed,
            created_at, updated_at, version)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		p.ID, trn, p.Gender, p.FirstName, p.MiddleName, p.LastName,
		p.DateOfBirth, string(p.NationalInsuranceNumber), p.DateOfDeath, p.Status,
		p.CreatedByFeed, p.CreatedAt, p.UpdatedAt, p.Version)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create person: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, p *models.Person, expectedVersion int) error {
	at := p.UpdatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+personColumns+` FROM persons WHERE id = $1 FOR UPDATE`, p.ID)
	current, err := scanPerson(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read person for update: %w", err)
	}
	if current.Version != expectedVersion {
		return sentinel.ErrConflict
	}

	var trn *string
	if !p.TRN.IsZero() {
		v := string(p.TRN)
		trn = &v
	}
	_, err = tx.Exec(ctx, `
        UPDATE persons SET trn = $2, gender = $3, first_name = $4, middle_name = $5,
            last_name = $6, date_of_birth = $7, nino = $8, date_of_death = $9,
            status = $10, updated_at = $11, version = version + 1
        WHERE id = $1`,
		p.ID, trn, p.Gender, p.FirstName, p.MiddleName, p.LastName,
		p.DateOfBirth, string(p.NationalInsuranceNumber), p.DateOfDeath, p.Status, at)
	if err != nil {
		return fmt.Errorf("update person: %w", err)
	}

	for _, c := range trackedChanges(current, p, at) {
		_, err = tx.Exec(ctx, `
            INSERT INTO person_field_changes (person_id, field, old_value, new_value, occurred_at)
            VALUES ($1, $2, $3, $4, $5)`,
			c.PersonID, c.Field, c.OldValue, c.NewValue, c.OccurredAt)
		if err != nil {
			return fmt.Errorf("log field change: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	p.Version = expectedVersion + 1
	return nil
}

func trackedChanges(old, new *models.Person, at time.Time) []models.FieldChange {
	var out []models.FieldChange
	if old.LastName != new.LastName {
		out = append(out, models.FieldChange{
			PersonID: old.ID, Field: models.FieldLastName,
			OldValue: old.LastName, NewValue: new.LastName, OccurredAt: at,
		})
	}
	if models.DateValue(old.DateOfBirth) != models.DateValue(new.DateOfBirth) {
		out = append(out, models.FieldChange{
			PersonID: old.ID, Field: models.FieldDateOfBirth,
			OldValue: models.DateValue(old.DateOfBirth), NewValue: models.DateValue(new.DateOfBirth), OccurredAt: at,
		})
	}
	if old.NationalInsuranceNumber != new.NationalInsuranceNumber {
		out = append(out, models.FieldChange{
			PersonID: old.ID, Field: models.FieldNationalInsuranceNumber,
			OldValue: string(old.NationalInsuranceNumber), NewValue: string(new.NationalInsuranceNumber), OccurredAt: at,
		})
	}
	return out
}

func (s *PostgresStore) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]*models.Person, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT `+personColumns+` FROM persons
        WHERE created_at > $1 AND created_at <= $2
        ORDER BY created_at`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list created persons: %w", err)
	}
	defer rows.Close()

	var out []*models.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListChangesBetween(ctx context.Context, from, to time.Time) ([]models.FieldChange, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT person_id, field, old_value, new_value, occurred_at
        FROM person_field_changes
        WHERE occurred_at > $1 AND occurred_at <= $2
        ORDER BY occurred_at`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list field changes: %w", err)
	}
	defer rows.Close()
	return scanChanges(rows)
}

func (s *PostgresStore) NameHistory(ctx context.Context, personID id.PersonID) ([]models.FieldChange, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT person_id, field, old_value, new_value, occurred_at
        FROM person_field_changes
        WHERE person_id = $1 AND field = $2
        ORDER BY occurred_at`, personID, models.FieldLastName)
	if err != nil {
		return nil, fmt.Errorf("name history: %w", err)
	}
	defer rows.Close()
	return scanChanges(rows)
}

func scanChanges(rows pgx.Rows) ([]models.FieldChange, error) {
	var out []models.FieldChange
	for rows.Next() {
		var c models.FieldChange
		if err := rows.Scan(&c.PersonID, &c.Field, &c.OldValue, &c.NewValue, &c.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan field change: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

var _ store.Store = (*PostgresStore)(nil)
