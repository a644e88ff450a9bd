// Package handler serves the asynchronous document API: requests are
// validated, published to Kafka and acknowledged with 202 before the
// indexer applies them.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/logger"
)

const maxBodyBytes = 8 << 20

// Publisher is implemented by *publisher.Publisher.
type Publisher interface {
	PublishIndex(ctx context.Context, doc *indexer.Document) error
	PublishDeindex(ctx context.Context, id string) error
	PublishIndexBatch(ctx context.Context, docs []*indexer.Document) error
}

type Handler struct {
	publisher Publisher
	logger    *slog.Logger
}

func New(pub Publisher) *Handler {
	return &Handler{
		publisher: pub,
		logger:    slog.Default().With("component", "ingestion-handler"),
	}
}

// Routes registers the document endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/documents", h.Ingest)
	mux.HandleFunc("POST /api/v1/documents/_bulk", h.IngestBatch)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.Remove)
	mux.HandleFunc("GET /health", h.Health)
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var doc indexer.Document
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&doc); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.publisher.PublishIndex(r.Context(), &doc); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"id": doc.ID, "status": "accepted"})
}

func (h *Handler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	var docs []*indexer.Document
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&docs); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.publisher.PublishIndexBatch(r.Context(), docs); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]any{"accepted": len(docs)})
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.publisher.PublishDeindex(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "accepted"})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := apperrors.HTTPStatusCode(err)
	if statusCode < http.StatusInternalServerError {
		h.writeError(w, statusCode, err.Error())
		return
	}
	logger.FromContext(r.Context()).Error("publishing failed",
		"error", err,
		"status_code", statusCode,
	)
	h.writeError(w, statusCode, "publishing failed")
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
