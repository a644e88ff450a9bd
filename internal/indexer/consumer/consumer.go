// Package consumer applies document events read from Kafka to the index.
// Storage failures are retried behind a circuit breaker and leave the
// message uncommitted once retries run out; malformed events and invalid
// documents are recorded as failed and committed.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer/status"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/tracing"
)

// Indexer is implemented by *indexer.Engine.
type Indexer interface {
	Index(ctx context.Context, doc *indexer.Document) error
	Deindex(ctx context.Context, id string) error
}

// Tracker is implemented by *status.Tracker.
type Tracker interface {
	Mark(ctx context.Context, docID, op, status string, cause error)
}

// Notifier is implemented by *kafka.Producer[ingestion.IndexCompleteEvent].
type Notifier interface {
	Publish(ctx context.Context, event ingestion.IndexCompleteEvent) error
}

// Options wires the optional collaborators of a Processor. Nil fields are
// skipped.
type Options struct {
	Tracker          Tracker
	Notifier         Notifier
	Metrics          *metrics.Metrics
	OperationTimeout time.Duration
	RetryAttempts    int
	// RetryDelay is the first backoff delay; zero uses the retry default.
	RetryDelay time.Duration
	Breaker    resilience.CircuitBreakerConfig
}

// Processor turns DocumentEvents into Index and Deindex calls.
type Processor struct {
	indexer Indexer
	opts    Options
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
	now     func() time.Time
}

// NewProcessor creates a Processor. The breaker keeps its default failure
// classifier, so only storage and timeout errors count against it, and its
// state is exported through opts.Metrics.
func NewProcessor(idx Indexer, opts Options) *Processor {
	if opts.Tracker == nil {
		opts.Tracker = (*status.Tracker)(nil)
	}
	cbCfg := opts.Breaker
	if cbCfg.OnStateChange == nil {
		cbCfg.OnStateChange = func(name string, s resilience.State) {
			opts.Metrics.SetBreakerState(name, int(s))
		}
	}
	return &Processor{
		indexer: idx,
		opts:    opts,
		breaker: resilience.NewCircuitBreaker("index-store", cbCfg),
		logger:  slog.Default().With("component", "index-consumer"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Breaker exposes the circuit breaker for health reporting.
func (p *Processor) Breaker() *resilience.CircuitBreaker {
	return p.breaker
}

// Handle is a kafka.MessageHandler. A returned error leaves the message
// uncommitted so it is redelivered.
func (p *Processor) Handle(ctx context.Context, key []byte, value []byte) error {
	event, err := kafka.DecodeJSON[ingestion.DocumentEvent](value)
	if err != nil {
		p.logger.Error("dropping undecodable document event", "key", string(key), "error", err)
		p.opts.Metrics.EventConsumed("unknown", "malformed")
		return nil
	}
	return p.Apply(ctx, event)
}

// Apply validates and applies a single event.
func (p *Processor) Apply(ctx context.Context, event ingestion.DocumentEvent) error {
	if err := validator.ValidateEvent(&event); err != nil {
		p.logger.Error("dropping invalid document event", "op", event.Op, "error", err)
		p.opts.Metrics.EventConsumed(opLabel(event.Op), "malformed")
		return nil
	}
	docID := event.DocumentID()
	ctx = logger.WithDocKey(ctx, docID)
	log := logger.FromContext(ctx)
	ctx, span := tracing.StartSpan(ctx, "event."+event.Op, "")
	span.SetAttr("doc_id", docID)
	defer func() {
		span.End()
		span.Log(log)
	}()

	done := status.Indexed
	if event.Op == ingestion.OpDeindex {
		done = status.Deindexed
	} else if event.Document.Name == "" {
		done = status.Skipped
	}

	err := p.run(ctx, event)
	var exhausted *resilience.ExhaustedError
	if errors.As(err, &exhausted) {
		span.SetAttr("attempts", exhausted.Attempts)
	}
	switch {
	case err == nil:
		p.finish(ctx, event.Op, docID, done, nil)
		p.opts.Metrics.EventConsumed(event.Op, "ok")
		log.Debug("document event applied", "op", event.Op, "status", done)
		return nil
	case errors.Is(err, apperrors.ErrInvalidDocument):
		p.finish(ctx, event.Op, docID, status.Failed, err)
		p.opts.Metrics.EventConsumed(event.Op, "invalid")
		log.Warn("document rejected", "op", event.Op, "error", err)
		return nil
	default:
		p.opts.Tracker.Mark(ctx, docID, event.Op, status.Failed, err)
		p.opts.Metrics.EventConsumed(event.Op, "error")
		return fmt.Errorf("applying %s event for %s: %w", event.Op, docID, err)
	}
}

func (p *Processor) run(ctx context.Context, event ingestion.DocumentEvent) error {
	retryCfg := resilience.RetryConfig{
		MaxAttempts:  p.opts.RetryAttempts,
		InitialDelay: p.opts.RetryDelay,
		OnRetry: func(int, error, time.Duration) {
			p.opts.Metrics.EventRetried(event.Op)
		},
	}
	return resilience.Retry(ctx, event.Op, retryCfg, func() error {
		return p.breaker.Execute(func() error {
			return resilience.WithTimeout(ctx, p.opts.OperationTimeout, event.Op, func(ctx context.Context) error {
				if event.Op == ingestion.OpDeindex {
					return p.indexer.Deindex(ctx, event.ID)
				}
				return p.indexer.Index(ctx, event.Document)
			})
		})
	})
}

func (p *Processor) finish(ctx context.Context, op, docID, state string, cause error) {
	p.opts.Tracker.Mark(ctx, docID, op, state, cause)
	if p.opts.Notifier == nil {
		return
	}
	event := ingestion.IndexCompleteEvent{
		Op:          op,
		ID:          docID,
		Status:      state,
		CompletedAt: p.now(),
	}
	if err := p.opts.Notifier.Publish(ctx, event); err != nil {
		p.logger.Error("failed to publish index-complete event", "doc_id", docID, "error", err)
	}
}

func opLabel(op string) string {
	switch op {
	case ingestion.OpIndex, ingestion.OpDeindex:
		return op
	default:
		return "unknown"
	}
}
