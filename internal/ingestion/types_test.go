package ingestion

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentEventNumericIDs(t *testing.T) {
	var deindex DocumentEvent
	require.NoError(t, json.Unmarshal([]byte(`{"op":"deindex","id":42}`), &deindex))
	assert.Equal(t, "42", deindex.DocumentID())

	var index DocumentEvent
	body := `{"op":"index","document":{"id":7,"name":"Rue","lat":1,"lon":2},"published_at":"2026-01-02T03:04:05Z"}`
	require.NoError(t, json.Unmarshal([]byte(body), &index))
	assert.Equal(t, OpIndex, index.Op)
	assert.Equal(t, "7", index.DocumentID())
	assert.Equal(t, 2026, index.PublishedAt.Year())

	var bad DocumentEvent
	assert.Error(t, json.Unmarshal([]byte(`{"op":"deindex","id":false}`), &bad))
}
