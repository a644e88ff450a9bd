package indexer

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer/keys"
	apperrors "github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/errors"
)

func TestIndexAllAndDeindexAll(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx := context.Background()

	docs := make([]*Document, 0, 21)
	ids := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		lat, lon := coords(48.80+float64(i)*0.001, 2.30+float64(i)*0.001)
		id := fmt.Sprintf("street-%d", i)
		ids = append(ids, id)
		docs = append(docs, &Document{
			ID:       id,
			Name:     fmt.Sprintf("Rue Numero %d", i),
			City:     "Paris",
			Postcode: "75001",
			Lat:      lat,
			Lon:      lon,
		})
	}
	docs = append(docs, &Document{ID: "broken", Name: "Rue Sans Coordonnees"})

	report, err := f.engine.IndexAll(ctx, docs, 4)
	require.NoError(t, err)
	assert.Equal(t, 21, report.Processed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "broken", report.Failures[0].ID)
	assert.ErrorIs(t, report.Failures[0].Err, apperrors.ErrInvalidDocument)

	assert.True(t, f.isMember(t, keys.Pair("numero"), "paris"))
	_, ok := f.score(t, "rue", keys.Document("street-7"))
	assert.True(t, ok)

	report, err = f.engine.DeindexAll(ctx, ids, 4)
	require.NoError(t, err)
	assert.Equal(t, 20, report.Processed)
	assert.Empty(t, report.Failures)
	assert.Empty(t, f.mr.Keys())
}

func TestIndexAllStopsOnCancel(t *testing.T) {
	f := newFixture(t, defaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.IndexAll(ctx, []*Document{parisDoc()}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
