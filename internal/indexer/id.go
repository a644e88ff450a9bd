package indexer

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeID reads a document identifier written either as a JSON string or as
// a JSON number. Numbers keep their literal text, so 42 and "42" name the
// same document. A missing or null id decodes to "".
func DecodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("decoding id: %w", err)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("id must be a string or a number: %w", err)
	}
	return n.String(), nil
}

// UnmarshalJSON accepts a string or numeric id.
func (d *Document) UnmarshalJSON(data []byte) error {
	type plain Document
	aux := struct {
		*plain
		ID json.RawMessage `json:"id"`
	}{plain: (*plain)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.ID == nil {
		return nil
	}
	id, err := DecodeID(aux.ID)
	if err != nil {
		return err
	}
	d.ID = id
	return nil
}
