// Package ingestion defines the Kafka event schemas that carry index and
// deindex requests to the indexer, and the notification it emits once a
// request has been applied.
package ingestion

import (
	"encoding/json"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer"
)

// Operations carried by a DocumentEvent.
const (
	OpIndex   = "index"
	OpDeindex = "deindex"
)

// DocumentEvent asks the indexer to index Document or to deindex ID.
type DocumentEvent struct {
	Op          string            `json:"op"`
	ID          string            `json:"id,omitempty"`
	Document    *indexer.Document `json:"document,omitempty"`
	PublishedAt time.Time         `json:"published_at"`
}

// UnmarshalJSON accepts a string or numeric id, like indexer.Document.
func (e *DocumentEvent) UnmarshalJSON(data []byte) error {
	type plain DocumentEvent
	aux := struct {
		*plain
		ID json.RawMessage `json:"id,omitempty"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.ID == nil {
		return nil
	}
	id, err := indexer.DecodeID(aux.ID)
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// DocumentID returns the identifier the event applies to.
func (e DocumentEvent) DocumentID() string {
	if e.Op == OpIndex && e.Document != nil {
		return e.Document.ID
	}
	return e.ID
}

// PartitionKey keys the event by document id.
func (e DocumentEvent) PartitionKey() string {
	return e.DocumentID()
}

// IndexCompleteEvent is published after a DocumentEvent has been applied.
type IndexCompleteEvent struct {
	Op          string    `json:"op"`
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	CompletedAt time.Time `json:"completed_at"`
}

// PartitionKey keys the notification by document id.
func (e IndexCompleteEvent) PartitionKey() string {
	return e.ID
}
