package indexer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer/spatial"
	apperrors "github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/errors"
)

const maxIDLength = 512

// ValidationError holds per-field validation failure messages. It matches
// apperrors.ErrInvalidDocument.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	sort.Strings(parts)
	return "invalid document: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidDocument
}

// Validate checks that a named document can be indexed: it needs an id and
// usable coordinates, and so does every house number.
func Validate(doc *Document) error {
	errs := make(map[string]string)

	id := strings.TrimSpace(doc.ID)
	if id == "" {
		errs[FieldID] = "id is required"
	} else if len(doc.ID) > maxIDLength {
		errs[FieldID] = fmt.Sprintf("id must be at most %d characters", maxIDLength)
	}
	switch {
	case doc.Lat == nil || doc.Lon == nil:
		errs["coordinates"] = "lat and lon are required"
	default:
		if err := spatial.CheckCoordinates(*doc.Lat, *doc.Lon); err != nil {
			errs["coordinates"] = err.Error()
		}
	}
	for label, p := range doc.Housenumbers {
		if strings.TrimSpace(label) == "" {
			errs["housenumbers"] = "house number label is required"
			continue
		}
		if err := spatial.CheckCoordinates(p.Lat, p.Lon); err != nil {
			errs["housenumbers."+label] = err.Error()
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
