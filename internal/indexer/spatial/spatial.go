// Package spatial encodes coordinates into fixed-precision geohash buckets.
package spatial

import (
	"fmt"
	"math"

	"github.com/mmcloughlin/geohash"
)

// DefaultPrecision is the geohash length used when none is configured.
const DefaultPrecision = 8

// Encoder maps a coordinate pair to a bucket identifier.
type Encoder struct {
	precision uint
}

func NewEncoder(precision int) *Encoder {
	if precision <= 0 || precision > 12 {
		precision = DefaultPrecision
	}
	return &Encoder{precision: uint(precision)}
}

// Precision returns the geohash length produced by Encode.
func (e *Encoder) Precision() int {
	return int(e.precision)
}

// Encode returns the bucket containing (lat, lon), or an error when either
// value is not a usable coordinate.
func (e *Encoder) Encode(lat, lon float64) (string, error) {
	if err := CheckCoordinates(lat, lon); err != nil {
		return "", err
	}
	return geohash.EncodeWithPrecision(lat, lon, e.precision), nil
}

// CheckCoordinates rejects NaN, infinite and out-of-range values.
func CheckCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range", lat)
	}
	if math.IsNaN(lon) || math.IsInf(lon, 0) || lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %v out of range", lon)
	}
	return nil
}
