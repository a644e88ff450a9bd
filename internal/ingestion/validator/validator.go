// Package validator checks document events before they are published or
// applied, returning per-field error details.
package validator

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/ingestion"
)

const maxIDLength = 512

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	return strings.Join(parts, "; ")
}

// ValidateEvent checks the envelope of a DocumentEvent. The document body
// itself is validated by the indexer.
func ValidateEvent(event *ingestion.DocumentEvent) error {
	errs := make(map[string]string)

	switch event.Op {
	case ingestion.OpIndex:
		if event.Document == nil {
			errs["document"] = "document is required for index events"
		} else if strings.TrimSpace(event.Document.ID) == "" {
			errs["document.id"] = "document id is required"
		}
	case ingestion.OpDeindex:
		if strings.TrimSpace(event.ID) == "" {
			errs["id"] = "id is required for deindex events"
		}
	case "":
		errs["op"] = "op is required"
	default:
		errs["op"] = fmt.Sprintf("unknown op %q", event.Op)
	}
	if len(event.DocumentID()) > maxIDLength {
		errs["id"] = fmt.Sprintf("id must be at most %d characters", maxIDLength)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
