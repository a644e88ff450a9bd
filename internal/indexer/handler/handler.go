// Package handler exposes the indexer's admin HTTP API: synchronous index,
// deindex and lookup of single documents, bulk indexing, and the status
// recorded by the event consumer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer/status"
	apperrors "github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/middleware"
)

const maxBodyBytes = 8 << 20

// Engine is implemented by *indexer.Engine.
type Engine interface {
	Index(ctx context.Context, doc *indexer.Document) error
	Deindex(ctx context.Context, id string) error
	GetDocument(ctx context.Context, id string) (indexer.Record, error)
	IndexAll(ctx context.Context, docs []*indexer.Document, concurrency int) (indexer.BulkReport, error)
}

// StatusReader is implemented by *status.Tracker.
type StatusReader interface {
	Get(ctx context.Context, docID string) (*status.Entry, error)
}

// Handler serves the admin API.
type Handler struct {
	engine          Engine
	statuses        StatusReader
	bulkConcurrency int
	logger          *slog.Logger
}

// New creates a Handler. statuses may be nil when status tracking is off.
func New(engine Engine, statuses StatusReader, bulkConcurrency int) *Handler {
	if statuses == nil {
		statuses = (*status.Tracker)(nil)
	}
	return &Handler{
		engine:          engine,
		statuses:        statuses,
		bulkConcurrency: bulkConcurrency,
		logger:          slog.Default().With("component", "admin-handler"),
	}
}

// NewRouter builds the admin route table.
//
//	POST   /api/v1/documents             index one document
//	POST   /api/v1/documents/_bulk       index many documents
//	GET    /api/v1/documents/{id}        read the stored record
//	DELETE /api/v1/documents/{id}        deindex
//	GET    /api/v1/documents/{id}/status last consumer outcome
//	GET    /health/live, /health/ready
//
// Middleware chain (outermost first): RequestID → Metrics → Timeout → mux.
func NewRouter(h *Handler, checker *health.Checker, m *metrics.Metrics, timeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	mux.HandleFunc("POST /api/v1/documents", h.IndexDocument)
	mux.HandleFunc("POST /api/v1/documents/_bulk", h.BulkIndex)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.GetDocument)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.DeindexDocument)
	mux.HandleFunc("GET /api/v1/documents/{id}/status", h.GetStatus)

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.Metrics(m),
		middleware.Timeout(timeout),
	)
}

// IndexDocument indexes the JSON document in the request body.
func (h *Handler) IndexDocument(w http.ResponseWriter, r *http.Request) {
	var doc indexer.Document
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&doc); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.engine.Index(r.Context(), &doc); err != nil {
		h.fail(w, r, "index failed", err)
		return
	}
	state := status.Indexed
	if doc.Name == "" {
		state = status.Skipped
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"id": doc.ID, "status": state})
}

type bulkFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type bulkResponse struct {
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Failures  []bulkFailure `json:"failures,omitempty"`
}

// BulkIndex indexes a JSON array of documents. Per-document failures are
// reported in the body; the call itself only fails on a bad request or
// cancellation.
func (h *Handler) BulkIndex(w http.ResponseWriter, r *http.Request) {
	var docs []*indexer.Document
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&docs); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	report, err := h.engine.IndexAll(r.Context(), docs, h.bulkConcurrency)
	if err != nil {
		h.fail(w, r, "bulk index aborted", err)
		return
	}
	resp := bulkResponse{Processed: report.Processed, Failed: len(report.Failures)}
	for _, f := range report.Failures {
		resp.Failures = append(resp.Failures, bulkFailure{ID: f.ID, Error: f.Err.Error()})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetDocument returns the stored record rebuilt as a document.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	rec, err := h.engine.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "lookup failed", err)
		return
	}
	doc, err := rec.Document()
	if err != nil {
		h.fail(w, r, "stored record is corrupt", err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// DeindexDocument removes a document. Removing an unknown id succeeds.
func (h *Handler) DeindexDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.engine.Deindex(r.Context(), id); err != nil {
		h.fail(w, r, "deindex failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": status.Deindexed})
}

// GetStatus returns the outcome the consumer last recorded for a document.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	entry, err := h.statuses.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "status lookup failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	code := apperrors.HTTPStatusCode(err)
	if code >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error(msg, "error", err, "status_code", code)
		h.writeError(w, code, msg)
		return
	}
	var verr *indexer.ValidationError
	if errors.As(err, &verr) {
		h.writeJSON(w, code, map[string]any{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
		return
	}
	h.writeError(w, code, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
