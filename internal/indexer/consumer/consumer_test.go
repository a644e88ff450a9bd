package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer/spatial"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer/status"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/resilience"
)

type mark struct {
	docID, op, status string
	cause             error
}

type fakeTracker struct {
	mu    sync.Mutex
	marks []mark
}

func (f *fakeTracker) Mark(_ context.Context, docID, op, st string, cause error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks = append(f.marks, mark{docID, op, st, cause})
}

func (f *fakeTracker) last(t *testing.T) mark {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.marks)
	return f.marks[len(f.marks)-1]
}

type fakeNotifier struct {
	events []ingestion.IndexCompleteEvent
}

func (f *fakeNotifier) Publish(_ context.Context, e ingestion.IndexCompleteEvent) error {
	f.events = append(f.events, e)
	return nil
}

// scriptedIndexer returns errs in order, then nil.
type scriptedIndexer struct {
	mu    sync.Mutex
	errs  []error
	calls int
	block bool
}

func (s *scriptedIndexer) next(ctx context.Context) error {
	s.mu.Lock()
	s.calls++
	block := s.block
	var err error
	if len(s.errs) > 0 {
		err, s.errs = s.errs[0], s.errs[1:]
	}
	s.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (s *scriptedIndexer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptedIndexer) Index(ctx context.Context, _ *indexer.Document) error { return s.next(ctx) }
func (s *scriptedIndexer) Deindex(ctx context.Context, _ string) error         { return s.next(ctx) }

type harness struct {
	proc     *Processor
	tracker  *fakeTracker
	notifier *fakeNotifier
	metrics  *metrics.Metrics
}

func newHarness(idx Indexer, mutate func(*Options)) *harness {
	h := &harness{
		tracker:  &fakeTracker{},
		notifier: &fakeNotifier{},
		metrics:  metrics.NewWithRegisterer(prometheus.NewRegistry()),
	}
	opts := Options{
		Tracker:          h.tracker,
		Notifier:         h.notifier,
		Metrics:          h.metrics,
		OperationTimeout: time.Second,
		RetryAttempts:    3,
		RetryDelay:       time.Millisecond,
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.proc = NewProcessor(idx, opts)
	return h
}

func indexEvent(doc *indexer.Document) ingestion.DocumentEvent {
	return ingestion.DocumentEvent{Op: ingestion.OpIndex, Document: doc}
}

func storageErr() error {
	return apperrors.Storage("zadd", errors.New("connection refused"))
}

func TestApplyMarksAndNotifies(t *testing.T) {
	h := newHarness(&scriptedIndexer{}, nil)
	ctx := context.Background()

	require.NoError(t, h.proc.Apply(ctx, indexEvent(&indexer.Document{ID: "7", Name: "Quai"})))
	assert.Equal(t, mark{"7", ingestion.OpIndex, status.Indexed, nil}, h.tracker.last(t))

	require.NoError(t, h.proc.Apply(ctx, ingestion.DocumentEvent{Op: ingestion.OpDeindex, ID: "7"}))
	assert.Equal(t, status.Deindexed, h.tracker.last(t).status)

	require.Len(t, h.notifier.events, 2)
	assert.Equal(t, "7", h.notifier.events[0].ID)
	assert.Equal(t, status.Indexed, h.notifier.events[0].Status)
	assert.Equal(t, status.Deindexed, h.notifier.events[1].Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.EventsConsumedTotal.WithLabelValues("index", "ok")))
}

func TestApplyNamelessDocumentIsSkipped(t *testing.T) {
	h := newHarness(&scriptedIndexer{}, nil)
	require.NoError(t, h.proc.Apply(context.Background(), indexEvent(&indexer.Document{ID: "8"})))
	assert.Equal(t, status.Skipped, h.tracker.last(t).status)
}

func TestHandleDropsMalformedMessages(t *testing.T) {
	idx := &scriptedIndexer{}
	h := newHarness(idx, nil)
	ctx := context.Background()

	require.NoError(t, h.proc.Handle(ctx, []byte("k"), []byte("{not json")))
	require.NoError(t, h.proc.Handle(ctx, []byte("k"), []byte(`{"op":"upsert","id":"1"}`)))

	assert.Zero(t, idx.count())
	assert.Empty(t, h.tracker.marks)
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.EventsConsumedTotal.WithLabelValues("unknown", "malformed")))
}

func TestInvalidDocumentIsCommittedAsFailed(t *testing.T) {
	idx := &scriptedIndexer{errs: []error{apperrors.ErrInvalidDocument}}
	h := newHarness(idx, nil)

	require.NoError(t, h.proc.Apply(context.Background(), indexEvent(&indexer.Document{ID: "9", Name: "x"})))
	assert.Equal(t, 1, idx.count())
	got := h.tracker.last(t)
	assert.Equal(t, status.Failed, got.status)
	assert.ErrorIs(t, got.cause, apperrors.ErrInvalidDocument)
	require.Len(t, h.notifier.events, 1)
	assert.Equal(t, status.Failed, h.notifier.events[0].Status)
}

func TestTransientStorageErrorIsRetried(t *testing.T) {
	idx := &scriptedIndexer{errs: []error{storageErr()}}
	h := newHarness(idx, nil)

	require.NoError(t, h.proc.Apply(context.Background(), indexEvent(&indexer.Document{ID: "1", Name: "x"})))
	assert.Equal(t, 2, idx.count())
	assert.Equal(t, status.Indexed, h.tracker.last(t).status)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.EventRetriesTotal.WithLabelValues("index")))
}

func TestPersistentStorageErrorLeavesMessageUncommitted(t *testing.T) {
	idx := &scriptedIndexer{errs: []error{storageErr(), storageErr(), storageErr()}}
	h := newHarness(idx, nil)

	err := h.proc.Apply(context.Background(), indexEvent(&indexer.Document{ID: "1", Name: "x"}))
	assert.ErrorIs(t, err, apperrors.ErrStorageUnavailable)
	var exhausted *resilience.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 3, idx.count())
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.EventRetriesTotal.WithLabelValues("index")))
	assert.Equal(t, status.Failed, h.tracker.last(t).status)
	assert.Empty(t, h.notifier.events)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.EventsConsumedTotal.WithLabelValues("index", "error")))
}

func TestBreakerOpensOnStorageFailures(t *testing.T) {
	idx := &scriptedIndexer{errs: []error{storageErr(), storageErr(), storageErr()}}
	h := newHarness(idx, func(o *Options) {
		o.Breaker = resilience.CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour}
	})

	err := h.proc.Apply(context.Background(), indexEvent(&indexer.Document{ID: "1", Name: "x"}))
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 1, idx.count())
	assert.Equal(t, resilience.StateOpen, h.proc.Breaker().GetState())
	assert.Equal(t, float64(resilience.StateOpen), testutil.ToFloat64(h.metrics.CircuitBreakerState.WithLabelValues("index-store")))
}

func TestInvalidDocumentsDoNotTripBreaker(t *testing.T) {
	idx := &scriptedIndexer{errs: []error{apperrors.ErrInvalidDocument, apperrors.ErrInvalidDocument}}
	h := newHarness(idx, func(o *Options) {
		o.Breaker = resilience.CircuitBreakerConfig{FailureThreshold: 1}
	})
	for range 2 {
		require.NoError(t, h.proc.Apply(context.Background(), indexEvent(&indexer.Document{ID: "1", Name: "x"})))
	}
	assert.Equal(t, resilience.StateClosed, h.proc.Breaker().GetState())
}

func TestOperationTimeoutIsRetryable(t *testing.T) {
	idx := &scriptedIndexer{block: true}
	h := newHarness(idx, func(o *Options) {
		o.OperationTimeout = 5 * time.Millisecond
		o.RetryAttempts = 2
	})
	err := h.proc.Apply(context.Background(), ingestion.DocumentEvent{Op: ingestion.OpDeindex, ID: "1"})
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.Equal(t, 2, idx.count())
}

func TestHandleAgainstRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := pkgredis.NewClient(config.RedisConfig{Addr: mr.Addr(), PoolSize: 2, MaxRetries: -1})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	engine := indexer.NewEngine(indexer.NewRedisStore(client), tokenizer.New(3), spatial.NewEncoder(8), indexer.Options{UpdateNgrams: true})
	h := newHarness(engine, nil)
	ctx := context.Background()

	lat, lon := 45.75, 4.85
	doc := &indexer.Document{ID: "lyon", Name: "Place Bellecour", City: "Lyon", Lat: &lat, Lon: &lon}
	payload, err := json.Marshal(ingestion.DocumentEvent{Op: ingestion.OpIndex, Document: doc})
	require.NoError(t, err)
	require.NoError(t, h.proc.Handle(ctx, []byte("lyon"), payload))

	rec, err := engine.GetDocument(ctx, "lyon")
	require.NoError(t, err)
	assert.Equal(t, "Place Bellecour", rec[indexer.FieldName])

	badLat := 200.0
	bad := &indexer.Document{ID: "bad", Name: "Nowhere", Lat: &badLat, Lon: &lon}
	require.NoError(t, h.proc.Apply(ctx, indexEvent(bad)))
	assert.Equal(t, status.Failed, h.tracker.last(t).status)

	payload, err = json.Marshal(ingestion.DocumentEvent{Op: ingestion.OpDeindex, ID: "lyon"})
	require.NoError(t, err)
	require.NoError(t, h.proc.Handle(ctx, []byte("lyon"), payload))
	assert.Empty(t, mr.Keys())

	// Producers outside Go often send numeric ids.
	require.NoError(t, h.proc.Handle(ctx, []byte("42"),
		[]byte(`{"op":"index","document":{"id":42,"name":"Quai Saint-Antoine","lat":45.764,"lon":4.829}}`)))
	assert.Equal(t, mark{docID: "42", op: ingestion.OpIndex, status: status.Indexed}, h.tracker.last(t))
	_, err = engine.GetDocument(ctx, "42")
	require.NoError(t, err)
	require.NoError(t, h.proc.Handle(ctx, []byte("42"), []byte(`{"op":"deindex","id":42}`)))
	assert.Equal(t, status.Deindexed, h.tracker.last(t).status)
	assert.Empty(t, mr.Keys())
}

var _ Notifier = (*kafka.Producer[ingestion.IndexCompleteEvent])(nil)
