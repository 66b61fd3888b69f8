package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlackmanHarris7Shape(t *testing.T) {
	const n = 512
	w := BlackmanHarris7(n)
	require.Len(t, w, n)

	// Symmetric about the center.
	for i := 0; i < n/2; i++ {
		assert.InDelta(t, w[i], w[n-1-i], 1e-6, "asymmetry at %d", i)
	}

	// Endpoints essentially zero, peak essentially one.
	assert.Less(t, w[0], float32(1e-6))
	assert.Less(t, w[n-1], float32(1e-6))

	var peak float32
	for _, v := range w {
		if v > peak {
			peak = v
		}
	}
	assert.InDelta(t, 1.0, float64(peak), 1e-4)

	// Strictly increasing over the first half.
	for i := 1; i < n/2; i++ {
		assert.Greater(t, w[i], w[i-1], "not monotonic at %d", i)
	}
}
