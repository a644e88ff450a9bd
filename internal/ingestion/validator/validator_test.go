package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/ingestion"
)

func TestValidateEvent(t *testing.T) {
	tests := []struct {
		name  string
		event ingestion.DocumentEvent
		field string
	}{
		{"valid index", ingestion.DocumentEvent{Op: ingestion.OpIndex, Document: &indexer.Document{ID: "1"}}, ""},
		{"valid deindex", ingestion.DocumentEvent{Op: ingestion.OpDeindex, ID: "1"}, ""},
		{"missing op", ingestion.DocumentEvent{ID: "1"}, "op"},
		{"unknown op", ingestion.DocumentEvent{Op: "upsert", ID: "1"}, "op"},
		{"index without document", ingestion.DocumentEvent{Op: ingestion.OpIndex}, "document"},
		{"index without id", ingestion.DocumentEvent{Op: ingestion.OpIndex, Document: &indexer.Document{}}, "document.id"},
		{"deindex without id", ingestion.DocumentEvent{Op: ingestion.OpDeindex}, "id"},
		{"id too long", ingestion.DocumentEvent{Op: ingestion.OpDeindex, ID: strings.Repeat("x", 600)}, "id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEvent(&tt.event)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}
