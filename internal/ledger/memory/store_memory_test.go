package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DFE-Digital/teaching-record-system-sub012/internal/ledger"
	id "github.com/DFE-Digital/teaching-record-system-sub012/pkg/domain"
)

func newTransaction() *ledger.Transaction {
	return &ledger.Transaction{
		ID:        id.NewTransactionID(),
		FileName:  "dtrf_20240601.txt",
		Status:    ledger.StatusInProgress,
		StartedAt: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestTransactionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := New()
	tx := newTransaction()

	require.NoError(t, store.CreateTransaction(ctx, tx))

	t.Run("create is conflict on duplicate id", func(t *testing.T) {
		assert.Error(t, store.CreateTransaction(ctx, tx))
	})

	t.Run("get returns a copy", func(t *testing.T) {
		got, err := store.GetTransaction(ctx, tx.ID)
		require.NoError(t, err)
		got.FileName = "mutated"

		again, err := store.GetTransaction(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, "dtrf_20240601.txt", again.FileName)
	})

	t.Run("complete finalizes counts", func(t *testing.T) {
		done := time.Date(2024, 6, 1, 9, 5, 0, 0, time.UTC)
		tx.Status = ledger.StatusSuccess
		tx.Total, tx.Successes, tx.Failures = 3, 2, 1
		tx.CompletedAt = &done
		require.NoError(t, store.CompleteTransaction(ctx, tx))

		got, err := store.GetTransaction(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusSuccess, got.Status)
		assert.Equal(t, 3, got.Total)
		require.NotNil(t, got.CompletedAt)
		assert.Equal(t, done, *got.CompletedAt)
	})

	t.Run("complete twice is invalid state", func(t *testing.T) {
		err := store.CompleteTransaction(ctx, tx)
		require.Error(t, err)
	})

	t.Run("unknown transaction is not found", func(t *testing.T) {
		_, err := store.GetTransaction(ctx, id.NewTransactionID())
		assert.Error(t, err)
	})
}

func TestRecordsKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := New()
	tx := newTransaction()
	require.NoError(t, store.CreateTransaction(ctx, tx))

	for i, msg := range []string{"first", "second", "third"} {
		require.NoError(t, store.AddRecord(ctx, &ledger.Record{
			ID:            id.NewRecordID(),
			TransactionID: tx.ID,
			Status:        ledger.RowSuccess,
			Message:       msg,
			CreatedAt:     tx.StartedAt.Add(time.Duration(i) * time.Second),
		}))
	}

	recs, err := store.ListRecords(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "first", recs[0].Message)
	assert.Equal(t, "second", recs[1].Message)
	assert.Equal(t, "third", recs[2].Message)
}

func TestAddRecordRequiresTransaction(t *testing.T) {
	store := New()
	err := store.AddRecord(context.Background(), &ledger.Record{
		ID:            id.NewRecordID(),
		TransactionID: id.NewTransactionID(),
	})
	require.Error(t, err)
}

func TestCountClassifiesRows(t *testing.T) {
	var tx ledger.Transaction
	tx.Count(ledger.RowSuccess, false)
	tx.Count(ledger.RowSuccess, true)
	tx.Count(ledger.RowWarning, false)
	tx.Count(ledger.RowFailure, false)

	assert.Equal(t, 4, tx.Total)
	assert.Equal(t, 2, tx.Successes)
	assert.Equal(t, 1, tx.Warnings)
	assert.Equal(t, 1, tx.Failures)
	assert.Equal(t, 1, tx.Duplicates)
}
