// Package importer drives one end-to-end run of the interchange import: read
// the delimited feed file, reconcile each row against the person register,
// and ledger every outcome. Rows are processed strictly in input order; a
// row is an atomic unit and a single row's failure never aborts the batch.
package importer

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/DFE-Digital/teaching-record-system-sub012/internal/ledger"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/platform/blob"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/reconcile/metrics"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/reconcile/policy"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/reconcile/rowparser"
	id "github.com/DFE-Digital/teaching-record-system-sub012/pkg/domain"
)

// JobName labels this driver in metrics and logs.
const JobName = "gtc-import"

// Reconciler is the slice of the reconciliation policy the driver needs.
type Reconciler interface {
	Reconcile(ctx context.Context, out rowparser.Outcome) (policy.RowOutcome, error)
}

type Importer struct {
	blobs      blob.Store
	parser     *rowparser.Parser
	reconciler Reconciler
	ledger     ledger.Store
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
	tracer     trace.Tracer
}

type Option func(*Importer)

func WithLogger(logger *slog.Logger) Option {
	return func(i *Importer) { i.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(i *Importer) { i.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Importer) { i.metrics = m }
}

func New(blobs blob.Store, parser *rowparser.Parser, reconciler Reconciler, ledgerStore ledger.Store, opts ...Option) (*Importer, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if parser == nil {
		return nil, fmt.Errorf("row parser is required")
	}
	if reconciler == nil {
		return nil, fmt.Errorf("reconciler is required")
	}
	if ledgerStore == nil {
		return nil, fmt.Errorf("ledger store is required")
	}

	i := &Importer{
		blobs:      blobs,
		parser:     parser,
		reconciler: reconciler,
		ledger:     ledgerStore,
		logger:     slog.Default(),
		now:        time.Now,
		tracer:     otel.Tracer("trs/batch"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Execute runs one import batch over the named feed file. The returned error
// reports driver-level failure only; row-level outcomes live on the returned
// transaction and its records. An empty file is a valid run with zero counts.
func (i *Importer) Execute(ctx context.Context, fileName string) (*ledger.Transaction, error) {
	ctx, span := i.tracer.Start(ctx, "batch.import",
		trace.WithAttributes(attribute.String("file", fileName)))
	defer span.End()

	start := i.now().UTC()
	txn := &ledger.Transaction{
		ID:        id.NewTransactionID(),
		FileName:  fileName,
		Status:    ledger.StatusInProgress,
		StartedAt: start,
	}
	if err := i.ledger.CreateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("create import transaction: %w", err)
	}

	r, err := i.blobs.Open(ctx, fileName)
	if err != nil {
		return txn, i.fail(ctx, txn, start, fmt.Errorf("open import file: %w", err))
	}
	defer r.Close()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		// A batch honors cancellation between rows, never mid-row.
		if ctx.Err() != nil {
			return txn, i.fail(ctx, txn, start, ctx.Err())
		}

		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		outcome := i.parser.ParseRow(line)
		rowOut, rErr := i.reconciler.Reconcile(ctx, outcome)
		if rErr != nil {
			// Store write failures are caught per row; the batch moves on.
			rowOut = policy.RowOutcome{
				Status:  ledger.RowFailure,
				Message: rErr.Error(),
			}
		}

		record := &ledger.Record{
			ID:            id.NewRecordID(),
			TransactionID: txn.ID,
			PersonID:      rowOut.PersonID,
			Status:        rowOut.Status,
			Duplicate:     rowOut.Duplicate,
			Message:       rowOut.Message,
			RowData:       line,
			CreatedAt:     i.now().UTC(),
		}
		if err := i.ledger.AddRecord(ctx, record); err != nil {
			return txn, i.fail(ctx, txn, start, fmt.Errorf("append transaction record: %w", err))
		}

		txn.Count(rowOut.Status, rowOut.Duplicate)
		i.metrics.ObserveRow(JobName, string(rowOut.Status), rowOut.Duplicate)
	}
	if err := scanner.Err(); err != nil {
		return txn, i.fail(ctx, txn, start, fmt.Errorf("read import file: %w", err))
	}

	completedAt := i.now().UTC()
	txn.Status = ledger.StatusSuccess
	txn.CompletedAt = &completedAt
	if err := i.ledger.CompleteTransaction(ctx, txn); err != nil {
		return txn, fmt.Errorf("complete import transaction: %w", err)
	}

	span.SetAttributes(
		attribute.Int("rows.total", txn.Total),
		attribute.Int("rows.failures", txn.Failures),
	)
	i.metrics.ObserveBatch(JobName, string(ledger.StatusSuccess), completedAt.Sub(start))
	i.logger.InfoContext(ctx, "import batch complete",
		"file", fileName,
		"total", txn.Total,
		"successes", txn.Successes,
		"warnings", txn.Warnings,
		"failures", txn.Failures,
		"duplicates", txn.Duplicates,
	)
	return txn, nil
}

// fail finalizes the transaction as Failed, preserving rows already written
// for diagnosis. Nothing is rolled back.
func (i *Importer) fail(ctx context.Context, txn *ledger.Transaction, start time.Time, cause error) error {
	completedAt := i.now().UTC()
	txn.Status = ledger.StatusFailed
	txn.CompletedAt = &completedAt
	if err := i.ledger.CompleteTransaction(context.WithoutCancel(ctx), txn); err != nil {
		i.logger.ErrorContext(ctx, "failed to finalize import transaction", "error", err)
	}
	i.metrics.ObserveBatch(JobName, string(ledger.StatusFailed), completedAt.Sub(start))
	i.logger.ErrorContext(ctx, "import batch failed", "file", txn.FileName, "error", cause)
	return cause
}
