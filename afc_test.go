package airband

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/boondock/airband/input"
)

// fftOutWithLevels builds an FFT result with the given bin magnitudes
// (everything else zero).
func fftOutWithLevels(size int, levels map[int]float32) []complex64 {
	out := make([]complex64, size)
	for bin, v := range levels {
		out[bin] = complex(v, 0)
	}
	return out
}

func newAFCFixture(afc uint8) (*Device, *Channel) {
	p := Params{FFTSize: 64, FFTBatch: 8, WaveBatch: 256, AGCExtra: 20}
	ch := newTestChannel(p, ModAM, 1.0, 1)
	ch.afc = afc
	dev := &Device{
		Input:    input.NewInput(&stubDriver{}, 64, 8),
		Channels: []*Channel{ch},
		bins:     make([]atomic.Int32, 1),
		baseBins: []int{30},
	}
	dev.bins[0].Store(30)
	return dev, ch
}

func TestAFCWalksUpToPeak(t *testing.T) {
	dev, ch := newAFCFixture(8)
	fftout := fftOutWithLevels(64, map[int]float32{
		30: 1.0, 31: 1.5, 32: 2.0, 33: 2.5, 34: 0.5,
	})

	a := beginAFC(ch) // previous batch: no signal
	ch.setIndicator(Signal)
	a.finalize(dev, 0, fftout)

	assert.Equal(t, 33, dev.Bin(0), "must stop where the ramp ends")
	assert.Equal(t, 30, dev.BaseBin(0), "base bin never moves")
	assert.Equal(t, AFCUp, ch.Indicator())
}

func TestAFCWalksDownFirst(t *testing.T) {
	dev, ch := newAFCFixture(8)
	fftout := fftOutWithLevels(64, map[int]float32{
		30: 1.0, 29: 1.5, 28: 2.0, 27: 0.2,
	})

	a := beginAFC(ch)
	ch.setIndicator(Signal)
	a.finalize(dev, 0, fftout)

	assert.Equal(t, 28, dev.Bin(0))
	assert.Equal(t, AFCDown, ch.Indicator())
}

func TestAFCThresholdRatchetOnEnergy(t *testing.T) {
	dev, ch := newAFCFixture(2)
	// The walk compares bin energies (squared magnitudes). The first
	// step gains 100^2-1 = 9999 over the base, fixing the threshold at
	// 4999.5; the second step's gain of 63.25^2-1 ~ 4000 does not clear
	// it, so the walk stops at 31. A walk on plain magnitudes would
	// keep going: 63.25-1 clears the magnitude threshold of 49.5.
	fftout := fftOutWithLevels(64, map[int]float32{
		30: 1.0, 31: 100.0, 32: 63.25, 33: 5.0,
	})

	a := beginAFC(ch)
	ch.setIndicator(Signal)
	a.finalize(dev, 0, fftout)

	assert.Equal(t, 31, dev.Bin(0))
}

func TestAFCIdempotentWhileSignalHolds(t *testing.T) {
	dev, ch := newAFCFixture(8)
	fftout := fftOutWithLevels(64, map[int]float32{30: 1.0, 31: 2.0, 32: 0.1})

	a := beginAFC(ch)
	ch.setIndicator(Signal)
	a.finalize(dev, 0, fftout)
	assert.Equal(t, 31, dev.Bin(0))
	assert.Equal(t, AFCUp, ch.Indicator())

	// No edge: a later batch with different energy must not re-run the
	// walk, and the arrow shows only on the batch that moved the bin.
	other := fftOutWithLevels(64, map[int]float32{30: 1.0, 29: 9.0})
	a = beginAFC(ch)
	ch.setIndicator(Signal)
	a.finalize(dev, 0, other)
	assert.Equal(t, 31, dev.Bin(0))
	assert.Equal(t, Signal, ch.Indicator())
}

func TestAFCResetsOnSignalLoss(t *testing.T) {
	dev, ch := newAFCFixture(8)
	fftout := fftOutWithLevels(64, map[int]float32{30: 1.0, 31: 2.0})

	a := beginAFC(ch)
	ch.setIndicator(Signal)
	a.finalize(dev, 0, fftout)
	assert.Equal(t, 31, dev.Bin(0))

	a = beginAFC(ch)
	ch.setIndicator(NoSignal)
	a.finalize(dev, 0, fftout)
	assert.Equal(t, 30, dev.Bin(0), "must snap back to the base bin")
}

func TestAFCDisabled(t *testing.T) {
	dev, ch := newAFCFixture(0)
	fftout := fftOutWithLevels(64, map[int]float32{30: 1.0, 31: 9.0})

	a := beginAFC(ch)
	ch.setIndicator(Signal)
	a.finalize(dev, 0, fftout)

	assert.Equal(t, 30, dev.Bin(0))
	assert.Equal(t, Signal, ch.Indicator())
}

func TestAFCStaysAtBaseOnFlatSpectrum(t *testing.T) {
	dev, ch := newAFCFixture(8)
	fftout := fftOutWithLevels(64, map[int]float32{30: 1.0})

	a := beginAFC(ch)
	ch.setIndicator(Signal)
	a.finalize(dev, 0, fftout)

	assert.Equal(t, 30, dev.Bin(0))
	assert.Equal(t, Signal, ch.Indicator(), "no AFC arrow when on the base bin")
}
