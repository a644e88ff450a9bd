package indexer

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

const defaultBulkConcurrency = 8

// BulkFailure is one document that could not be processed.
type BulkFailure struct {
	ID  string
	Err error
}

// BulkReport summarises a bulk run.
type BulkReport struct {
	Processed int
	Failures  []BulkFailure
}

// IndexAll indexes docs with at most concurrency calls in flight. Failures
// are collected rather than aborting the run; only cancellation of ctx stops
// it early.
func (e *Engine) IndexAll(ctx context.Context, docs []*Document, concurrency int) (BulkReport, error) {
	return runBulk(ctx, len(docs), concurrency, func(ctx context.Context, i int) (string, error) {
		id := ""
		if docs[i] != nil {
			id = docs[i].ID
		}
		return id, e.Index(ctx, docs[i])
	})
}

// DeindexAll deindexes ids with at most concurrency calls in flight.
func (e *Engine) DeindexAll(ctx context.Context, ids []string, concurrency int) (BulkReport, error) {
	return runBulk(ctx, len(ids), concurrency, func(ctx context.Context, i int) (string, error) {
		return ids[i], e.Deindex(ctx, ids[i])
	})
}

func runBulk(ctx context.Context, n, concurrency int, fn func(context.Context, int) (string, error)) (BulkReport, error) {
	if concurrency <= 0 {
		concurrency = defaultBulkConcurrency
	}
	var (
		mu     sync.Mutex
		report BulkReport
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			id, err := fn(gctx, i)
			mu.Lock()
			defer mu.Unlock()
			report.Processed++
			if err != nil {
				report.Failures = append(report.Failures, BulkFailure{ID: id, Err: err})
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return report, err
}
