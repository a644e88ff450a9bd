package spatial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	e := NewEncoder(8)
	bucket, err := e.Encode(48.8566, 2.3522)
	require.NoError(t, err)
	assert.Len(t, bucket, 8)
	assert.Equal(t, "u09tv", bucket[:5])

	again, err := e.Encode(48.8566, 2.3522)
	require.NoError(t, err)
	assert.Equal(t, bucket, again)
}

func TestEncodeRejectsBadCoordinates(t *testing.T) {
	e := NewEncoder(0)
	assert.Equal(t, DefaultPrecision, e.Precision())

	for _, c := range [][2]float64{
		{math.NaN(), 2},
		{48, math.Inf(1)},
		{91, 0},
		{0, -181},
	} {
		_, err := e.Encode(c[0], c[1])
		assert.Error(t, err, "%v", c)
	}
}
