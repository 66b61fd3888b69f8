package dsp

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSampleFormat(t *testing.T) {
	for spelling, want := range map[string]SampleFormat{
		"u8": FormatU8, "cu8": FormatU8,
		"s8": FormatS8, "cs8": FormatS8,
		"s16": FormatS16, "cs16": FormatS16,
		"f32": FormatF32, "cf32": FormatF32,
	} {
		got, err := ParseSampleFormat(spelling)
		require.NoError(t, err, spelling)
		assert.Equal(t, want, got, spelling)
	}

	_, err := ParseSampleFormat("s24")
	assert.Error(t, err)
}

func flatWindow(n int) []float32 {
	w := make([]float32, n)
	for i := range w {
		w[i] = 1.0
	}
	return w
}

func TestConvertU8(t *testing.T) {
	c := NewConverter(FormatU8, 1.0)
	dst := make([]complex64, 2)
	c.Convert(dst, []byte{255, 0, 128, 127}, flatWindow(2))

	assert.InDelta(t, 1.0, float64(real(dst[0])), 1e-6)
	assert.InDelta(t, -1.0, float64(imag(dst[0])), 1e-6)
	// 128 and 127 straddle the midpoint symmetrically.
	assert.InDelta(t, 0.5/127.5, float64(real(dst[1])), 1e-6)
	assert.InDelta(t, -0.5/127.5, float64(imag(dst[1])), 1e-6)
}

func TestConvertS8(t *testing.T) {
	c := NewConverter(FormatS8, 1.0)
	dst := make([]complex64, 1)
	c.Convert(dst, []byte{0x81, 0x7f}, flatWindow(1)) // -127, 127

	assert.InDelta(t, -127.0/128.0, float64(real(dst[0])), 1e-6)
	assert.InDelta(t, 127.0/128.0, float64(imag(dst[0])), 1e-6)
}

func TestConvertS16(t *testing.T) {
	c := NewConverter(FormatS16, 32768.0)
	raw := make([]byte, 4)
	binary.LittleEndian.PutUint16(raw[0:], uint16(int16(16384)))
	binary.LittleEndian.PutUint16(raw[2:], uint16(int16(-32768)))

	dst := make([]complex64, 1)
	c.Convert(dst, raw, flatWindow(1))
	assert.InDelta(t, 0.5, float64(real(dst[0])), 1e-6)
	assert.InDelta(t, -1.0, float64(imag(dst[0])), 1e-6)
}

func TestConvertF32AppliesWindow(t *testing.T) {
	c := NewConverter(FormatF32, 1.0)
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint32(raw[0:], math.Float32bits(0.25))
	binary.LittleEndian.PutUint32(raw[4:], math.Float32bits(-0.5))

	dst := make([]complex64, 1)
	c.Convert(dst, raw, []float32{0.5})
	assert.InDelta(t, 0.125, float64(real(dst[0])), 1e-6)
	assert.InDelta(t, -0.25, float64(imag(dst[0])), 1e-6)
}
