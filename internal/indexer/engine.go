// Package indexer maintains the geo full-text index: per-token postings,
// edge n-grams for autocomplete, token co-occurrence pairs and geohash
// buckets. Engine indexes a document into all four structures and deindexes
// it again from its persisted record.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer/keys"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/tracing"
)

const (
	rebuildBatchSize = 500

	defaultBoost           = 1.0
	municipalPostcodeBoost = 1.2
	nameBoost              = 4.0
)

// Tokenizer splits text into normalised tokens and derives edge n-grams.
type Tokenizer interface {
	Tokenize(text string) []string
	EdgeNgrams(token string) []string
}

// Encoder maps coordinates to a spatial bucket identifier.
type Encoder interface {
	Encode(lat, lon float64) (string, error)
}

// Options tunes an Engine.
type Options struct {
	// UpdateNgrams extends the edge n-gram index at index time. With it off,
	// RebuildNgrams has to run once the import is done.
	UpdateNgrams bool
	// MunicipalType is the document type whose postcode is boosted.
	MunicipalType string
	// PurgeHousenumberBuckets removes the document from the buckets of its
	// house numbers on deindex. When false only the primary bucket is
	// cleaned and house-number buckets keep a stale entry.
	PurgeHousenumberBuckets bool
	Metrics                 *metrics.Metrics
}

// OptionsFromConfig maps indexer configuration onto Options.
func OptionsFromConfig(cfg config.IndexerConfig) Options {
	return Options{
		UpdateNgrams:            cfg.UpdateNgrams,
		MunicipalType:           cfg.MunicipalType,
		PurgeHousenumberBuckets: cfg.PurgeHousenumberBuckets,
	}
}

// Engine is safe for concurrent use, including by several processes sharing
// one store. It holds no locks: each storage call is atomic on its own and
// a whole index or deindex call is not.
type Engine struct {
	store     Store
	tokenizer Tokenizer
	tokens    *TokenIndex
	ngrams    *NgramIndex
	pairs     *PairIndex
	spatial   *SpatialIndex
	opts      Options
	inflight  singleflight.Group
	logger    *slog.Logger
}

func NewEngine(store Store, tokenizer Tokenizer, encoder Encoder, opts Options) *Engine {
	ngrams := NewNgramIndex(store, tokenizer)
	return &Engine{
		store:     store,
		tokenizer: tokenizer,
		tokens:    NewTokenIndex(store, ngrams),
		ngrams:    ngrams,
		pairs:     NewPairIndex(store),
		spatial:   NewSpatialIndex(store, encoder),
		opts:      opts,
		logger:    slog.Default().With("component", "indexer"),
	}
}

// Index adds doc to every index structure and persists its record, all in
// one batch. A document without a name is ignored.
func (e *Engine) Index(ctx context.Context, doc *Document) (err error) {
	if doc == nil || doc.Name == "" {
		e.opts.Metrics.DocumentSkipped()
		e.logger.Debug("document without name skipped")
		return nil
	}
	if err := Validate(doc); err != nil {
		e.opts.Metrics.ObserveOperation("index", time.Now(), err)
		return err
	}
	start := time.Now()
	defer func() { e.opts.Metrics.ObserveOperation("index", start, err) }()

	key := keys.Document(doc.ID)
	ctx = logger.WithDocKey(ctx, key)
	ctx, span := tracing.StartChildSpan(ctx, "indexer.index")
	defer span.End()
	span.SetAttr("housenumbers", len(doc.Housenumbers))

	// The previous version is removed first: its record is the only trace
	// of the tokens and buckets it wrote.
	replaced, err := e.deindex(ctx, key)
	if err != nil && !errors.Is(err, apperrors.ErrInvalidDocument) {
		return err
	}
	span.SetAttr("replaced", replaced)

	batch := e.store.NewBatch()
	if err := e.write(ctx, batch, key, doc); err != nil {
		return err
	}
	if err := batch.Exec(ctx); err != nil {
		return apperrors.Storage("flushing index batch", err)
	}
	logger.FromContext(ctx).Debug("document indexed",
		"housenumbers", len(doc.Housenumbers),
		"duration", time.Since(start),
	)
	return nil
}

func (e *Engine) write(ctx context.Context, w Writer, key string, doc *Document) error {
	if err := e.spatial.Add(ctx, w, key, *doc.Lat, *doc.Lon); err != nil {
		return storageOr(err, "indexing primary bucket")
	}

	var pairEls []string
	if doc.City != "" && doc.City != doc.Name {
		els, err := e.indexField(ctx, w, key, doc.City, defaultBoost)
		if err != nil {
			return err
		}
		pairEls = append(pairEls, els...)
	}
	if doc.Postcode != "" {
		boost := defaultBoost
		if e.opts.MunicipalType != "" && doc.Type == e.opts.MunicipalType {
			boost = municipalPostcodeBoost
		}
		els, err := e.indexField(ctx, w, key, doc.Postcode, boost)
		if err != nil {
			return err
		}
		pairEls = append(pairEls, els...)
	}
	if doc.Context != "" {
		els, err := e.indexField(ctx, w, key, doc.Context, defaultBoost)
		if err != nil {
			return err
		}
		pairEls = append(pairEls, els...)
	}
	// Name goes last so its weight wins when a token also appears in
	// another field of the same document.
	els, err := e.indexField(ctx, w, key, doc.Name, nameBoost+doc.Importance)
	if err != nil {
		return err
	}
	pairEls = append(pairEls, els...)
	if err := e.pairs.LinkAll(ctx, w, pairEls); err != nil {
		return apperrors.Storage("linking pairs", err)
	}

	rec := doc.record()
	for _, label := range doc.sortedHousenumbers() {
		point := doc.Housenumbers[label]
		packed := packHousenumber(label, point)
		for _, hn := range e.tokenizer.Tokenize(label) {
			rec[keys.HousenumberField(hn)] = packed
			// House numbers point at the document's tokens, never at each
			// other, and nothing points back at them.
			if err := e.pairs.LinkOneDirectional(ctx, w, hn, pairEls); err != nil {
				return apperrors.Storage("linking house number", err)
			}
		}
		if _, err := e.indexField(ctx, w, key, label, defaultBoost); err != nil {
			return err
		}
		if err := e.spatial.Add(ctx, w, key, point.Lat, point.Lon); err != nil {
			return storageOr(err, "indexing house number bucket")
		}
	}

	// A concurrent index of the same id may have written a record since the
	// previous version was removed; this one replaces it whole.
	if err := w.Del(ctx, key); err != nil {
		return apperrors.Storage("replacing record", err)
	}
	if err := w.HSet(ctx, key, rec); err != nil {
		return apperrors.Storage("writing record", err)
	}
	return nil
}

// indexField writes a posting for every token of text, weighted boost
// divided by the token count, and returns the tokens.
func (e *Engine) indexField(ctx context.Context, w Writer, key, text string, boost float64) ([]string, error) {
	tokens := e.tokenizer.Tokenize(text)
	if len(tokens) == 0 {
		return nil, nil
	}
	weight := boost / float64(len(tokens))
	for _, token := range tokens {
		if err := e.tokens.Upsert(ctx, w, token, key, weight); err != nil {
			return nil, apperrors.Storage("upserting posting", err)
		}
		if e.opts.UpdateNgrams {
			if err := e.ngrams.Extend(ctx, w, token); err != nil {
				return nil, apperrors.Storage("extending edge ngrams", err)
			}
		}
	}
	return tokens, nil
}

// Deindex removes the document with the given id from every index
// structure, using its persisted record as the only source of truth. Writes
// are applied one by one. A missing document is not an error. Concurrent
// calls for the same id in this process share one execution.
func (e *Engine) Deindex(ctx context.Context, id string) error {
	key := keys.Document(id)
	ctx, span := tracing.StartChildSpan(ctx, "indexer.deindex")
	defer span.End()
	_, err, _ := e.inflight.Do(key, func() (any, error) {
		start := time.Now()
		found, err := e.deindex(logger.WithDocKey(ctx, key), key)
		if found || err != nil {
			e.opts.Metrics.ObserveOperation("deindex", start, err)
		}
		return nil, err
	})
	return err
}

func (e *Engine) deindex(ctx context.Context, key string) (bool, error) {
	log := logger.FromContext(ctx)
	rec, err := e.store.HGetAll(ctx, key)
	if err != nil {
		return false, apperrors.Storage("reading record", err)
	}
	if len(rec) == 0 {
		log.Debug("deindex of unknown document ignored")
		return false, nil
	}
	record := Record(rec)
	if err := e.store.Del(ctx, key); err != nil {
		return true, apperrors.Storage("deleting record", err)
	}

	// A corrupt record still gets its postings cleaned; the error is
	// reported once everything else is done.
	var invalid error
	if lat, lon, err := record.Coordinates(); err != nil {
		invalid = fmt.Errorf("%w: %w", apperrors.ErrInvalidDocument, err)
		log.Warn("record has unusable coordinates, primary bucket left as is", "error", err)
	} else if err := e.spatial.Remove(ctx, key, lat, lon); err != nil {
		return true, storageOr(err, "removing primary bucket")
	}
	if e.opts.PurgeHousenumberBuckets {
		if err := e.removeHousenumberBuckets(ctx, key, record); err != nil {
			return true, err
		}
	}

	fields := make([]string, 0, len(record))
	for field := range record {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	var pairEls []string
	for _, field := range fields {
		pairEls = append(pairEls, e.tokenizer.Tokenize(record[field])...)
	}
	pairEls = dedupe(pairEls)
	for _, token := range pairEls {
		if err := e.tokens.Remove(ctx, token, key); err != nil {
			return true, apperrors.Storage("removing posting", err)
		}
	}
	// Pairs are contracted only once every posting of the document is gone,
	// since Contract asks the postings whether a pair is still shared.
	if err := e.pairs.Contract(ctx, pairEls); err != nil {
		return true, apperrors.Storage("contracting pairs", err)
	}
	tracing.SpanFromContext(ctx).SetAttr("tokens", len(pairEls))
	log.Debug("document deindexed", "tokens", len(pairEls))
	return true, invalid
}

func (e *Engine) removeHousenumberBuckets(ctx context.Context, key string, record Record) error {
	housenumbers, err := record.Housenumbers()
	if err != nil {
		logger.FromContext(ctx).Warn("unreadable house number in record", "error", err)
		return nil
	}
	for _, point := range housenumbers {
		if err := e.spatial.Remove(ctx, key, point.Lat, point.Lon); err != nil {
			if errors.Is(err, apperrors.ErrInvalidDocument) {
				continue
			}
			return apperrors.Storage("removing house number bucket", err)
		}
	}
	return nil
}

// RebuildNgrams recomputes the edge n-gram index from the postings: every
// n-gram set is dropped, then each token that still has postings is extended
// again. It completes imports run with UpdateNgrams off and must not overlap
// with indexing. It returns the number of tokens extended.
func (e *Engine) RebuildNgrams(ctx context.Context) (int, error) {
	start := time.Now()
	dropped, err := e.store.FlushByPattern(ctx, keys.EdgeNgramPattern)
	if err != nil {
		return 0, apperrors.Storage("dropping edge ngrams", err)
	}

	var (
		batch   = e.store.NewBatch()
		pending int
		tokens  int
	)
	err = e.store.ScanKeys(ctx, keys.TokenPattern, func(key string) error {
		token, ok := keys.TokenOf(key)
		if !ok {
			return nil
		}
		if err := e.ngrams.Extend(ctx, batch, token); err != nil {
			return err
		}
		tokens++
		pending++
		if pending < rebuildBatchSize {
			return nil
		}
		pending = 0
		if err := batch.Exec(ctx); err != nil {
			return err
		}
		batch = e.store.NewBatch()
		return nil
	})
	if err == nil && pending > 0 {
		err = batch.Exec(ctx)
	}
	if err != nil {
		return tokens, apperrors.Storage("rebuilding edge ngrams", err)
	}
	e.logger.Info("edge ngrams rebuilt",
		"tokens", tokens,
		"dropped_keys", dropped,
		"duration", time.Since(start),
	)
	return tokens, nil
}

// GetDocument returns the persisted record of the document with the given
// id, or ErrDocumentNotFound.
func (e *Engine) GetDocument(ctx context.Context, id string) (Record, error) {
	rec, err := e.store.HGetAll(ctx, keys.Document(id))
	if err != nil {
		return nil, apperrors.Storage("reading record", err)
	}
	if len(rec) == 0 {
		return nil, fmt.Errorf("document %s: %w", id, apperrors.ErrDocumentNotFound)
	}
	return Record(rec), nil
}

// storageOr passes invalid-document errors through and marks anything else
// as a storage failure.
func storageOr(err error, op string) error {
	if errors.Is(err, apperrors.ErrInvalidDocument) {
		return err
	}
	return apperrors.Storage(op, err)
}
