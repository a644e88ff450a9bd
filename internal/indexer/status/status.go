// Package status records the outcome of every applied document event in
// PostgreSQL.
//
// It requires a `document_status` table, created with its status index by
// EnsureSchema:
//
//	CREATE TABLE document_status (
//	    doc_id     TEXT PRIMARY KEY,
//	    op         TEXT NOT NULL,
//	    status     TEXT NOT NULL,
//	    error      TEXT NOT NULL DEFAULT '',
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//	CREATE INDEX document_status_status_idx ON document_status (status, updated_at);
package status

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/postgres"
)

// Document states.
const (
	Indexed   = "INDEXED"
	Deindexed = "DEINDEXED"
	Failed    = "FAILED"
	Skipped   = "SKIPPED"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS document_status (
    doc_id     TEXT PRIMARY KEY,
    op         TEXT NOT NULL,
    status     TEXT NOT NULL,
    error      TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE INDEX IF NOT EXISTS document_status_status_idx ON document_status (status, updated_at)`,
}

// Entry is one row of document_status.
type Entry struct {
	DocID     string    `json:"doc_id"`
	Op        string    `json:"op"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tracker writes document_status rows. A nil *Tracker is valid and does
// nothing, which is how status tracking is disabled.
type Tracker struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewTracker returns nil when db is nil.
func NewTracker(db *postgres.Client) *Tracker {
	if db == nil {
		return nil
	}
	return &Tracker{
		db:     db,
		logger: slog.Default().With("component", "status-tracker"),
	}
}

// EnsureSchema creates the document_status table and its index in one
// transaction if they are missing.
func (t *Tracker) EnsureSchema(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("creating document_status: %w", err)
			}
		}
		return nil
	})
}

// Mark upserts the status of docID. Failures are logged, not returned:
// bookkeeping never blocks indexing.
func (t *Tracker) Mark(ctx context.Context, docID, op, status string, cause error) {
	if t == nil {
		return
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := t.db.DB.ExecContext(ctx,
		`INSERT INTO document_status (doc_id, op, status, error, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (doc_id) DO UPDATE
		 SET op = EXCLUDED.op, status = EXCLUDED.status, error = EXCLUDED.error, updated_at = EXCLUDED.updated_at`,
		docID, op, status, msg, time.Now().UTC(),
	)
	if err != nil {
		t.logger.Error("failed to update document status",
			"doc_id", docID,
			"status", status,
			"error", err,
		)
	}
}

// Get loads the status of docID.
func (t *Tracker) Get(ctx context.Context, docID string) (*Entry, error) {
	if t == nil {
		return nil, apperrors.ErrDocumentNotFound
	}
	var e Entry
	err := t.db.DB.QueryRowContext(ctx,
		`SELECT doc_id, op, status, error, updated_at FROM document_status WHERE doc_id = $1`,
		docID,
	).Scan(&e.DocID, &e.Op, &e.Status, &e.Error, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying document status: %w", err)
	}
	return &e, nil
}
