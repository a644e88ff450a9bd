package indexer

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer/keys"
)

// TokenIndex holds, per token, a sorted set of document keys scored by the
// token's weight in that document.
type TokenIndex struct {
	store  Store
	ngrams *NgramIndex
}

func NewTokenIndex(store Store, ngrams *NgramIndex) *TokenIndex {
	return &TokenIndex{store: store, ngrams: ngrams}
}

// Upsert sets the weight of token for docKey, replacing any previous weight.
func (ix *TokenIndex) Upsert(ctx context.Context, w Writer, token, docKey string, weight float64) error {
	return w.ZAdd(ctx, keys.Token(token), docKey, weight)
}

// Remove drops the posting of token for docKey. When it was the token's last
// posting, the token's edge n-grams are retracted too.
func (ix *TokenIndex) Remove(ctx context.Context, token, docKey string) error {
	if err := ix.store.ZRem(ctx, keys.Token(token), docKey); err != nil {
		return err
	}
	exists, err := ix.Exists(ctx, token)
	if err != nil {
		return err
	}
	if !exists {
		return ix.ngrams.Retract(ctx, token)
	}
	return nil
}

// Exists reports whether any document still has a posting for token.
func (ix *TokenIndex) Exists(ctx context.Context, token string) (bool, error) {
	return ix.store.Exists(ctx, keys.Token(token))
}
