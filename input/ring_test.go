package input

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBufferFIFO(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		size := rapid.SampledFrom([]int{64, 128, 256}).Draw(t, "size")
		guard := rapid.IntRange(8, 32).Draw(t, "guard")
		b := NewBuffer(size, guard)

		var model []byte // bytes written but not yet consumed
		next := byte(0)  // rolling payload so positions are distinguishable

		ops := rapid.IntRange(1, 200).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			if rapid.Bool().Draw(t, "write") {
				n := rapid.IntRange(1, size).Draw(t, "chunk")
				chunk := make([]byte, n)
				for j := range chunk {
					chunk[j] = next
					next++
				}
				ok := b.Write(chunk)
				fits := n < size-len(model)
				assert.Equal(t, fits, ok)
				if ok {
					model = append(model, chunk...)
				}
			} else if len(model) > 0 {
				n := rapid.IntRange(1, len(model)).Draw(t, "advance")
				// Contents must match the model before consuming.
				for j := 0; j < n; j++ {
					assert.Equal(t, model[j], b.View(j, 1)[0], "byte %d", j)
				}
				b.Advance(n)
				model = model[n:]
			}
			assert.Equal(t, len(model), b.Available())
		}
	})
}

func TestBufferGuardMirrorsWrap(t *testing.T) {
	const size, guard = 64, 16
	b := NewBuffer(size, guard)

	// Push the cursors close to the end so the next write wraps.
	first := bytes.Repeat([]byte{0xaa}, 56)
	require.True(t, b.Write(first))
	b.Advance(56)

	payload := make([]byte, 24)
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	require.True(t, b.Write(payload))

	// A single View must hand back the wrapped chunk contiguously.
	got := b.View(0, 24)
	assert.Equal(t, payload, got)
}

func TestBufferMirrorRefreshScope(t *testing.T) {
	const size, guard = 64, 16
	b := NewBuffer(size, guard)

	require.True(t, b.Write(bytes.Repeat([]byte{0x11}, 16)))
	b.Advance(16)
	assert.Equal(t, bytes.Repeat([]byte{0x11}, guard), b.buf[size:size+guard])

	// A write entirely outside [0, guard) must not touch the mirror:
	// a consumer may be reading those bytes through a wrapped View.
	require.True(t, b.Write(bytes.Repeat([]byte{0x22}, 32)))
	b.Advance(32)
	assert.Equal(t, bytes.Repeat([]byte{0x11}, guard), b.buf[size:size+guard])

	// A wrapping write refreshes exactly the bytes it landed on.
	payload := make([]byte, 24)
	for i := range payload {
		payload[i] = byte(0x30 + i)
	}
	require.True(t, b.Write(payload)) // 16 straight + 8 wrapped
	assert.Equal(t, payload[16:24], b.buf[size:size+8])
	assert.Equal(t, bytes.Repeat([]byte{0x11}, 8), b.buf[size+8:size+guard])
	assert.Equal(t, payload, b.View(0, 24))
}

func TestBufferRejectsOverflowWhole(t *testing.T) {
	b := NewBuffer(64, 8)
	require.True(t, b.Write(make([]byte, 40)))

	// Doesn't fit: dropped whole, nothing partial.
	assert.False(t, b.Write(make([]byte, 30)))
	assert.Equal(t, 40, b.Available())

	// A chunk exactly filling the ring is also refused; one byte of
	// slack distinguishes full from empty.
	b.Advance(40)
	assert.False(t, b.Write(make([]byte, 64)))
	assert.True(t, b.Write(make([]byte, 63)))
}
