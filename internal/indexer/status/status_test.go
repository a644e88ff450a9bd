package status

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/postgres"
)

func TestNilTrackerIsNoop(t *testing.T) {
	var tr *Tracker
	ctx := context.Background()
	require.NoError(t, tr.EnsureSchema(ctx))
	tr.Mark(ctx, "1", "index", Indexed, nil)
	_, err := tr.Get(ctx, "1")
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
	assert.Nil(t, NewTracker(nil))
}

// Runs against GSI_TEST_POSTGRES_HOST when set.
func TestTrackerRoundTrip(t *testing.T) {
	host := os.Getenv("GSI_TEST_POSTGRES_HOST")
	if host == "" {
		t.Skip("GSI_TEST_POSTGRES_HOST not set")
	}
	cfg := config.Default().Postgres
	cfg.Host = host
	db, err := postgres.New(cfg)
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tr := NewTracker(db)
	require.NoError(t, tr.EnsureSchema(ctx))
	require.NoError(t, tr.EnsureSchema(ctx))
	var indexes int
	require.NoError(t, db.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM pg_indexes WHERE indexname = 'document_status_status_idx'`,
	).Scan(&indexes))
	assert.Equal(t, 1, indexes)
	_, err = db.DB.ExecContext(ctx, `DELETE FROM document_status WHERE doc_id = 'status-test'`)
	require.NoError(t, err)

	_, err = tr.Get(ctx, "status-test")
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)

	tr.Mark(ctx, "status-test", "index", Failed, apperrors.ErrStorageUnavailable)
	tr.Mark(ctx, "status-test", "index", Indexed, nil)

	e, err := tr.Get(ctx, "status-test")
	require.NoError(t, err)
	assert.Equal(t, Indexed, e.Status)
	assert.Empty(t, e.Error)
}
