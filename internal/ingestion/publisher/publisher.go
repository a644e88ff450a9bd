// Package publisher turns index and deindex requests into document events on
// Kafka. Events are keyed by document id so every request for one document
// lands on the same partition and is applied in order.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/errors"
)

// EventWriter is implemented by *kafka.Producer[ingestion.DocumentEvent].
type EventWriter interface {
	Publish(ctx context.Context, event ingestion.DocumentEvent) error
	PublishBatch(ctx context.Context, events []ingestion.DocumentEvent) error
}

// Publisher validates and publishes document events.
type Publisher struct {
	producer EventWriter
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Publisher writing through producer.
func New(producer EventWriter) *Publisher {
	return &Publisher{
		producer: producer,
		logger:   slog.Default().With("component", "publisher"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// PublishIndex requests indexing of doc.
func (p *Publisher) PublishIndex(ctx context.Context, doc *indexer.Document) error {
	return p.publish(ctx, ingestion.DocumentEvent{Op: ingestion.OpIndex, Document: doc})
}

// PublishDeindex requests removal of the document with the given id.
func (p *Publisher) PublishDeindex(ctx context.Context, id string) error {
	return p.publish(ctx, ingestion.DocumentEvent{Op: ingestion.OpDeindex, ID: id})
}

// PublishIndexBatch requests indexing of every document in a single write.
// Nothing is published if any document fails validation.
func (p *Publisher) PublishIndexBatch(ctx context.Context, docs []*indexer.Document) error {
	events := make([]ingestion.DocumentEvent, 0, len(docs))
	for _, doc := range docs {
		event, err := p.envelope(ingestion.DocumentEvent{Op: ingestion.OpIndex, Document: doc})
		if err != nil {
			return err
		}
		events = append(events, event)
	}
	if len(events) == 0 {
		return nil
	}
	if err := p.producer.PublishBatch(ctx, events); err != nil {
		return fmt.Errorf("publishing %d index events: %w", len(events), err)
	}
	p.logger.Debug("index batch published", "count", len(events))
	return nil
}

func (p *Publisher) publish(ctx context.Context, event ingestion.DocumentEvent) error {
	event, err := p.envelope(event)
	if err != nil {
		return err
	}
	if err := p.producer.Publish(ctx, event); err != nil {
		return fmt.Errorf("publishing %s event for %s: %w", event.Op, event.DocumentID(), err)
	}
	p.logger.Debug("document event published", "op", event.Op, "doc_id", event.DocumentID())
	return nil
}

// envelope validates event and stamps its publish time.
func (p *Publisher) envelope(event ingestion.DocumentEvent) (ingestion.DocumentEvent, error) {
	if err := validator.ValidateEvent(&event); err != nil {
		return event, apperrors.New(apperrors.ErrInvalidInput, 400, err.Error())
	}
	event.PublishedAt = p.now()
	return event, nil
}
