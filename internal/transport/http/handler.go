// Package httpapi is the trigger surface the external scheduler calls. It is
// a thin layer: each route invokes one batch driver and renders the
// resulting transaction summary; business logic stays in the drivers.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/DFE-Digital/teaching-record-system-sub012/internal/batch/exporter"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/batch/importer"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/ledger"
)

type Handler struct {
	importer *importer.Importer
	exporter *exporter.Exporter
	logger   *slog.Logger
}

func NewHandler(imp *importer.Importer, exp *exporter.Exporter, logger *slog.Logger) *Handler {
	return &Handler{importer: imp, exporter: exp, logger: logger}
}

type transactionResponse struct {
	TransactionID string     `json:"transaction_id"`
	FileName      string     `json:"file_name"`
	Status        string     `json:"status"`
	Total         int        `json:"total"`
	Successes     int        `json:"successes"`
	Warnings      int        `json:"warnings"`
	Failures      int        `json:"failures"`
	Duplicates    int        `json:"duplicates"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	fileName := r.URL.Query().Get("file")
	if fileName == "" {
		writeError(w, http.StatusBadRequest, "file query parameter is required")
		return
	}
	h.runJob(w, r, func(ctx context.Context) (*ledger.Transaction, error) {
		return h.importer.Execute(ctx, fileName)
	})
}

func (h *Handler) handleExportNew(w http.ResponseWriter, r *http.Request) {
	h.runJob(w, r, h.exporter.ExecuteNew)
}

func (h *Handler) handleExportAmend(w http.ResponseWriter, r *http.Request) {
	h.runJob(w, r, h.exporter.ExecuteAmend)
}

func (h *Handler) runJob(w http.ResponseWriter, r *http.Request, job func(ctx context.Context) (*ledger.Transaction, error)) {
	txn, err := job(r.Context())
	if err != nil && txn == nil {
		h.logger.ErrorContext(r.Context(), "batch job failed to start", "error", err)
		writeError(w, http.StatusInternalServerError, "job failed to start")
		return
	}

	status := http.StatusOK
	if err != nil {
		// The transaction exists and records what happened up to the
		// failure; surface it alongside the error status.
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, toResponse(txn))
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toResponse(t *ledger.Transaction) transactionResponse {
	return transactionResponse{
		TransactionID: t.ID.String(),
		FileName:      t.FileName,
		Status:        string(t.Status),
		Total:         t.Total,
		Successes:     t.Successes,
		Warnings:      t.Warnings,
		Failures:      t.Failures,
		Duplicates:    t.Duplicates,
		StartedAt:     t.StartedAt,
		CompletedAt:   t.CompletedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
