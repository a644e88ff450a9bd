package indexer

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer/keys"
	apperrors "github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/errors"
)

// SpatialIndex holds, per geohash bucket, the set of documents located in it.
type SpatialIndex struct {
	store   Store
	encoder Encoder
}

func NewSpatialIndex(store Store, encoder Encoder) *SpatialIndex {
	return &SpatialIndex{store: store, encoder: encoder}
}

// Add puts docKey in the bucket of (lat, lon).
func (ix *SpatialIndex) Add(ctx context.Context, w Writer, docKey string, lat, lon float64) error {
	bucket, err := ix.bucket(lat, lon)
	if err != nil {
		return err
	}
	return w.SAdd(ctx, keys.Geohash(bucket), docKey)
}

// Remove takes docKey out of the bucket of (lat, lon).
func (ix *SpatialIndex) Remove(ctx context.Context, docKey string, lat, lon float64) error {
	bucket, err := ix.bucket(lat, lon)
	if err != nil {
		return err
	}
	return ix.store.SRem(ctx, keys.Geohash(bucket), docKey)
}

func (ix *SpatialIndex) bucket(lat, lon float64) (string, error) {
	bucket, err := ix.encoder.Encode(lat, lon)
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrInvalidDocument, err)
	}
	return bucket, nil
}
