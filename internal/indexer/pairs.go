package indexer

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer/keys"
)

// PairIndex records which tokens co-occur in some indexed document. Edges
// carry no counter: Contract decides whether an edge is still needed by
// intersecting the live postings of both tokens.
type PairIndex struct {
	store Store
}

func NewPairIndex(store Store) *PairIndex {
	return &PairIndex{store: store}
}

// LinkAll links every token of the list to every other one, in both
// directions. Duplicates are ignored and no token is linked to itself.
func (ix *PairIndex) LinkAll(ctx context.Context, w Writer, tokens []string) error {
	unique := dedupe(tokens)
	for _, token := range unique {
		others := make([]string, 0, len(unique)-1)
		for _, other := range unique {
			if other != token {
				others = append(others, other)
			}
		}
		if len(others) == 0 {
			continue
		}
		if err := w.SAdd(ctx, keys.Pair(token), others...); err != nil {
			return err
		}
	}
	return nil
}

// LinkOneDirectional links source to every target without adding the
// reverse edges.
func (ix *PairIndex) LinkOneDirectional(ctx context.Context, w Writer, source string, targets []string) error {
	others := make([]string, 0, len(targets))
	for _, target := range dedupe(targets) {
		if target != source {
			others = append(others, target)
		}
	}
	if len(others) == 0 {
		return nil
	}
	return w.SAdd(ctx, keys.Pair(source), others...)
}

// Contract removes the edge between every pair of tokens from the list that
// no longer share a document in the TokenIndex. It must run after the
// postings of the deindexed document are gone. Concurrent writers may
// re-add an edge right after it is removed; that is accepted.
func (ix *PairIndex) Contract(ctx context.Context, tokens []string) error {
	unique := dedupe(tokens)
	for i, a := range unique {
		for _, b := range unique[i+1:] {
			common, err := ix.store.ZInterCount(ctx, keys.PairScratch(a, b), keys.Token(a), keys.Token(b))
			if err != nil {
				return err
			}
			if common > 0 {
				continue
			}
			if err := ix.store.SRem(ctx, keys.Pair(a), b); err != nil {
				return err
			}
			if err := ix.store.SRem(ctx, keys.Pair(b), a); err != nil {
				return err
			}
		}
	}
	return nil
}

// dedupe keeps the first occurrence of each value.
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
