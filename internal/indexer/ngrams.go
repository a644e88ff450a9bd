package indexer

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer/keys"
)

// NgramIndex maps each edge n-gram to the tokens it is a prefix of.
type NgramIndex struct {
	store     Store
	tokenizer Tokenizer
}

func NewNgramIndex(store Store, tokenizer Tokenizer) *NgramIndex {
	return &NgramIndex{store: store, tokenizer: tokenizer}
}

// Extend adds token to the set of each of its edge n-grams. Calling it again
// for the same token changes nothing.
func (ix *NgramIndex) Extend(ctx context.Context, w Writer, token string) error {
	for _, ngram := range ix.tokenizer.EdgeNgrams(token) {
		if err := w.SAdd(ctx, keys.EdgeNgram(ngram), token); err != nil {
			return err
		}
	}
	return nil
}

// Retract removes token from the set of each of its edge n-grams. Only the
// TokenIndex calls it, once the token has no postings left.
func (ix *NgramIndex) Retract(ctx context.Context, token string) error {
	for _, ngram := range ix.tokenizer.EdgeNgrams(token) {
		if err := ix.store.SRem(ctx, keys.EdgeNgram(ngram), token); err != nil {
			return err
		}
	}
	return nil
}
