package indexer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/internal/indexer/keys"
)

// Record field names. House-number fields are named by keys.HousenumberField.
const (
	FieldID         = "id"
	FieldLat        = "lat"
	FieldLon        = "lon"
	FieldName       = "name"
	FieldCity       = "city"
	FieldPostcode   = "postcode"
	FieldContext    = "context"
	FieldType       = "type"
	FieldImportance = "importance"
)

// Point is a house-number sub-point.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Document is a location to index. Name is required for the document to be
// indexed at all; Lat and Lon are required once it is.
type Document struct {
	ID           string           `json:"id"`
	Name         string           `json:"name,omitempty"`
	City         string           `json:"city,omitempty"`
	Postcode     string           `json:"postcode,omitempty"`
	Context      string           `json:"context,omitempty"`
	Type         string           `json:"type,omitempty"`
	Importance   float64          `json:"importance,omitempty"`
	Lat          *float64         `json:"lat"`
	Lon          *float64         `json:"lon"`
	Housenumbers map[string]Point `json:"housenumbers,omitempty"`
}

// Record is the flat field/value mapping persisted for an indexed document.
// House numbers appear as packed "number|lat|lon" values under
// keys.HousenumberField names.
type Record map[string]string

// record builds the persisted fields, without house numbers.
func (d *Document) record() Record {
	rec := Record{
		FieldID:   d.ID,
		FieldLat:  formatFloat(*d.Lat),
		FieldLon:  formatFloat(*d.Lon),
		FieldName: d.Name,
	}
	if d.City != "" {
		rec[FieldCity] = d.City
	}
	if d.Postcode != "" {
		rec[FieldPostcode] = d.Postcode
	}
	if d.Context != "" {
		rec[FieldContext] = d.Context
	}
	if d.Type != "" {
		rec[FieldType] = d.Type
	}
	if d.Importance != 0 {
		rec[FieldImportance] = formatFloat(d.Importance)
	}
	return rec
}

// sortedHousenumbers returns the house-number labels in a stable order so
// that same-token collisions resolve the same way on every run.
func (d *Document) sortedHousenumbers() []string {
	labels := make([]string, 0, len(d.Housenumbers))
	for label := range d.Housenumbers {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Coordinates parses the primary coordinates of the record.
func (r Record) Coordinates() (lat, lon float64, err error) {
	lat, err = strconv.ParseFloat(r[FieldLat], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing lat %q: %w", r[FieldLat], err)
	}
	lon, err = strconv.ParseFloat(r[FieldLon], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing lon %q: %w", r[FieldLon], err)
	}
	return lat, lon, nil
}

// Housenumbers returns the house numbers stored in the record, keyed by
// their original label.
func (r Record) Housenumbers() (map[string]Point, error) {
	var out map[string]Point
	for field, value := range r {
		if !keys.IsHousenumberField(field) {
			continue
		}
		label, point, err := unpackHousenumber(value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		if out == nil {
			out = make(map[string]Point)
		}
		out[label] = point
	}
	return out, nil
}

// Document rebuilds the Document the record was written from.
func (r Record) Document() (*Document, error) {
	lat, lon, err := r.Coordinates()
	if err != nil {
		return nil, err
	}
	doc := &Document{
		ID:       r[FieldID],
		Name:     r[FieldName],
		City:     r[FieldCity],
		Postcode: r[FieldPostcode],
		Context:  r[FieldContext],
		Type:     r[FieldType],
		Lat:      &lat,
		Lon:      &lon,
	}
	if v, ok := r[FieldImportance]; ok {
		doc.Importance, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing importance %q: %w", v, err)
		}
	}
	if doc.Housenumbers, err = r.Housenumbers(); err != nil {
		return nil, err
	}
	return doc, nil
}

func packHousenumber(label string, p Point) string {
	return strings.Join([]string{label, formatFloat(p.Lat), formatFloat(p.Lon)}, "|")
}

func unpackHousenumber(value string) (string, Point, error) {
	// Split from the right: labels may contain "|", coordinates never do.
	i := strings.LastIndex(value, "|")
	if i < 0 {
		return "", Point{}, fmt.Errorf("malformed house number %q", value)
	}
	j := strings.LastIndex(value[:i], "|")
	if j < 0 {
		return "", Point{}, fmt.Errorf("malformed house number %q", value)
	}
	lat, err := strconv.ParseFloat(value[j+1:i], 64)
	if err != nil {
		return "", Point{}, fmt.Errorf("parsing house number lat: %w", err)
	}
	lon, err := strconv.ParseFloat(value[i+1:], 64)
	if err != nil {
		return "", Point{}, fmt.Errorf("parsing house number lon: %w", err)
	}
	return value[:j], Point{Lat: lat, Lon: lon}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
