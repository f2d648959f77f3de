// Package exporter drives the incremental fixed-width exports: new person
// records and amended-field records changed since each job's watermark. The
// watermark advances to the run's own start time, and only when the run
// completes cleanly.
package exporter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/DFE-Digital/teaching-record-system-sub012/internal/export/encode"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/export/watermark"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/ledger"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/person/models"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/person/store"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/platform/blob"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/reconcile/metrics"
	id "github.com/DFE-Digital/teaching-record-system-sub012/pkg/domain"
)

type Exporter struct {
	persons    store.Store
	blobs      blob.Store
	ledger     ledger.Store
	watermarks watermark.Store
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
	tracer     trace.Tracer
}

type Option func(*Exporter)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) { e.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Exporter) { e.metrics = m }
}

func New(persons store.Store, blobs blob.Store, ledgerStore ledger.Store, watermarks watermark.Store, opts ...Option) (*Exporter, error) {
	if persons == nil {
		return nil, fmt.Errorf("person store is required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if ledgerStore == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	if watermarks == nil {
		return nil, fmt.Errorf("watermark store is required")
	}

	e := &Exporter{
		persons:    persons,
		blobs:      blobs,
		ledger:     ledgerStore,
		watermarks: watermarks,
		logger:     slog.Default(),
		now:        time.Now,
		tracer:     otel.Tracer("trs/batch"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// row is one encoded export line plus its ledger bookkeeping.
type row struct {
	personID id.PersonID
	line     string
	err      error
}

// ExecuteNew exports persons created since the new-export watermark.
func (e *Exporter) ExecuteNew(ctx context.Context) (*ledger.Transaction, error) {
	return e.run(ctx, watermark.JobNewExport, encode.KindNew, e.newRows)
}

// ExecuteAmend exports date-of-birth, national-insurance-number, and surname
// changes since the amend-export watermark.
func (e *Exporter) ExecuteAmend(ctx context.Context) (*ledger.Transaction, error) {
	return e.run(ctx, watermark.JobAmendExport, encode.KindAmend, e.amendRows)
}

func (e *Exporter) run(ctx context.Context, job string, kind encode.Kind, rowsFn func(ctx context.Context, since, until time.Time) ([]row, error)) (*ledger.Transaction, error) {
	ctx, span := e.tracer.Start(ctx, "batch.export",
		trace.WithAttributes(attribute.String("job", job)))
	defer span.End()

	start := e.now().UTC()
	since, _, err := e.watermarks.LastRun(ctx, job)
	if err != nil {
		return nil, err
	}

	fileName := encode.FileName(kind, start)
	txn := &ledger.Transaction{
		ID:        id.NewTransactionID(),
		FileName:  fileName,
		Status:    ledger.StatusInProgress,
		StartedAt: start,
	}
	if err := e.ledger.CreateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("create export transaction: %w", err)
	}

	rows, err := rowsFn(ctx, since, start)
	if err != nil {
		return txn, e.fail(ctx, txn, job, start, err)
	}

	w, err := e.blobs.Create(ctx, fileName)
	if err != nil {
		return txn, e.fail(ctx, txn, job, start, fmt.Errorf("create export file: %w", err))
	}

	for _, r := range rows {
		if ctx.Err() != nil {
			w.Close()
			return txn, e.fail(ctx, txn, job, start, ctx.Err())
		}

		record := &ledger.Record{
			ID:            id.NewRecordID(),
			TransactionID: txn.ID,
			Status:        ledger.RowSuccess,
			CreatedAt:     e.now().UTC(),
		}
		if !r.personID.IsNil() {
			pid := r.personID
			record.PersonID = &pid
		}

		if r.err != nil {
			record.Status = ledger.RowFailure
			record.Message = r.err.Error()
		} else {
			record.RowData = r.line
			if _, wErr := io.WriteString(w, r.line+"\n"); wErr != nil {
				w.Close()
				return txn, e.fail(ctx, txn, job, start, fmt.Errorf("write export row: %w", wErr))
			}
		}
		if err := e.ledger.AddRecord(ctx, record); err != nil {
			w.Close()
			return txn, e.fail(ctx, txn, job, start, fmt.Errorf("append transaction record: %w", err))
		}
		txn.Count(record.Status, false)
		e.metrics.ObserveRow(job, string(record.Status), false)
	}

	if err := w.Close(); err != nil {
		return txn, e.fail(ctx, txn, job, start, fmt.Errorf("close export file: %w", err))
	}

	completedAt := e.now().UTC()
	txn.Status = ledger.StatusSuccess
	txn.CompletedAt = &completedAt
	if err := e.ledger.CompleteTransaction(ctx, txn); err != nil {
		return txn, fmt.Errorf("complete export transaction: %w", err)
	}

	// The watermark moves last, to the run's own start, so rows written
	// while this batch ran are picked up next time.
	if err := e.watermarks.SetLastRun(ctx, job, start); err != nil {
		return txn, fmt.Errorf("advance watermark %s: %w", job, err)
	}

	span.SetAttributes(attribute.Int("rows.total", txn.Total))
	e.metrics.ObserveBatch(job, string(ledger.StatusSuccess), completedAt.Sub(start))
	e.logger.InfoContext(ctx, "export batch complete",
		"job", job,
		"file", fileName,
		"total", txn.Total,
		"failures", txn.Failures,
	)
	return txn, nil
}

func (e *Exporter) newRows(ctx context.Context, since, until time.Time) ([]row, error) {
	persons, err := e.persons.ListCreatedBetween(ctx, since, until)
	if err != nil {
		return nil, fmt.Errorf("select created persons: %w", err)
	}

	rows := make([]row, 0, len(persons))
	for _, p := range persons {
		history, err := e.persons.NameHistory(ctx, p.ID)
		if err != nil {
			rows = append(rows, row{personID: p.ID, err: fmt.Errorf("name history: %w", err)})
			continue
		}
		line, err := encode.NewPersonRow(p, len(history) > 0)
		if err != nil {
			rows = append(rows, row{personID: p.ID, err: err})
			continue
		}
		rows = append(rows, row{personID: p.ID, line: line})
	}
	return rows, nil
}

func (e *Exporter) amendRows(ctx context.Context, since, until time.Time) ([]row, error) {
	changes, err := e.persons.ListChangesBetween(ctx, since, until)
	if err != nil {
		return nil, fmt.Errorf("select field changes: %w", err)
	}

	// One row per person per changed field, however many times the field
	// moved inside the window; rows carry the current stored value.
	seen := make(map[id.PersonID]map[models.ChangedField]bool)
	var rows []row
	for _, c := range changes {
		if seen[c.PersonID][c.Field] {
			continue
		}
		if seen[c.PersonID] == nil {
			seen[c.PersonID] = make(map[models.ChangedField]bool)
		}
		seen[c.PersonID][c.Field] = true

		p, err := e.persons.GetByID(ctx, c.PersonID)
		if err != nil {
			rows = append(rows, row{personID: c.PersonID, err: fmt.Errorf("load person: %w", err)})
			continue
		}

		var line string
		switch c.Field {
		case models.FieldDateOfBirth:
			line, err = encode.AmendDOBRow(p)
		case models.FieldNationalInsuranceNumber:
			line, err = encode.AmendNinoRow(p)
		case models.FieldLastName:
			history, hErr := e.persons.NameHistory(ctx, p.ID)
			if hErr != nil {
				rows = append(rows, row{personID: p.ID, err: fmt.Errorf("name history: %w", hErr)})
				continue
			}
			previous, ok := encode.PreviousSurname(history)
			if !ok {
				rows = append(rows, row{personID: p.ID, err: fmt.Errorf("surname change without history for person %s", p.ID)})
				continue
			}
			line, err = encode.PreviousSurnameRow(p, previous)
		default:
			err = fmt.Errorf("unknown changed field %q", c.Field)
		}
		if err != nil {
			rows = append(rows, row{personID: p.ID, err: err})
			continue
		}
		rows = append(rows, row{personID: p.ID, line: line})
	}
	return rows, nil
}

func (e *Exporter) fail(ctx context.Context, txn *ledger.Transaction, job string, start time.Time, cause error) error {
	completedAt := e.now().UTC()
	txn.Status = ledger.StatusFailed
	txn.CompletedAt = &completedAt
	if err := e.ledger.CompleteTransaction(context.WithoutCancel(ctx), txn); err != nil {
		e.logger.ErrorContext(ctx, "failed to finalize export transaction", "error", err)
	}
	e.metrics.ObserveBatch(job, string(ledger.StatusFailed), completedAt.Sub(start))
	e.logger.ErrorContext(ctx, "export batch failed", "job", job, "error", cause)
	return cause
}
