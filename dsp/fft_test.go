package dsp

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFFTValidation(t *testing.T) {
	_, err := NewFFT("", 100)
	assert.Error(t, err, "non-power-of-two size")

	_, err = NewFFT("fftw", 64)
	assert.Error(t, err, "unknown backend")

	f, err := NewFFT("", 64)
	require.NoError(t, err)
	assert.Equal(t, 64, f.Size())
}

func TestRadix2Impulse(t *testing.T) {
	const n = 64
	f, err := NewFFT("radix2", n)
	require.NoError(t, err)

	src := make([]complex64, n)
	dst := make([]complex64, n)
	src[0] = 1
	f.Transform(dst, src)

	// An impulse transforms to a flat spectrum.
	for i, v := range dst {
		assert.InDelta(t, 1.0, float64(real(v)), 1e-5, "bin %d", i)
		assert.InDelta(t, 0.0, float64(imag(v)), 1e-5, "bin %d", i)
	}
}

func TestRadix2ToneLandsInBin(t *testing.T) {
	const n = 128
	const k = 17
	f, err := NewFFT("radix2", n)
	require.NoError(t, err)

	src := make([]complex64, n)
	dst := make([]complex64, n)
	for i := range src {
		a := 2.0 * math.Pi * float64(k) * float64(i) / float64(n)
		src[i] = complex(float32(math.Cos(a)), float32(math.Sin(a)))
	}
	f.Transform(dst, src)

	for i, v := range dst {
		mag := math.Hypot(float64(real(v)), float64(imag(v)))
		if i == k {
			assert.InDelta(t, float64(n), mag, 1e-2)
		} else {
			assert.Less(t, mag, 1e-2, "leakage into bin %d", i)
		}
	}
}

func TestBackendsAgree(t *testing.T) {
	const n = 256
	r2, err := NewFFT("radix2", n)
	require.NoError(t, err)
	gd, err := NewFFT("godsp", n)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	src := make([]complex64, n)
	for i := range src {
		src[i] = complex(float32(rng.Float64()*2-1), float32(rng.Float64()*2-1))
	}

	a := make([]complex64, n)
	b := make([]complex64, n)
	r2.Transform(a, src)
	gd.Transform(b, src)

	for i := range a {
		assert.InDelta(t, real(b[i]), real(a[i]), 1e-3, "bin %d re", i)
		assert.InDelta(t, imag(b[i]), imag(a[i]), 1e-3, "bin %d im", i)
	}
}
