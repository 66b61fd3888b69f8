package squelch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCloseSequence(t *testing.T) {
	s := New(Config{ManualLevel: 1.0})
	assert.Equal(t, Closed, s.State())

	opens := 0
	openedAt := -1
	for i := 0; i < 100; i++ {
		s.ProcessRawSample(5.0)
		if s.FirstOpenSample() {
			opens++
			openedAt = i
		}
	}
	require.Equal(t, 1, opens, "FirstOpenSample must fire exactly once")
	// 3 samples for the smoothed level to cross the threshold, then
	// the 10-sample open delay.
	assert.Equal(t, 11, openedAt)
	assert.Equal(t, Open, s.State())
	assert.True(t, s.IsOpen())
	assert.True(t, s.ShouldProcessAudio())
	assert.True(t, s.ShouldFilterSample())

	closes := 0
	for i := 0; i < 200; i++ {
		s.ProcessRawSample(0.0)
		if s.LastOpenSample() {
			closes++
		}
	}
	assert.Equal(t, 1, closes, "LastOpenSample must fire exactly once")
	assert.Equal(t, Closed, s.State())
	assert.False(t, s.IsOpen())
	assert.False(t, s.ShouldFilterSample())
}

func TestOpeningDebounce(t *testing.T) {
	s := New(Config{ManualLevel: 1.0, OpenDelay: 5})

	// A blip shorter than the open delay never opens the gate.
	for i := 0; i < 4; i++ {
		s.ProcessRawSample(50.0)
	}
	assert.Equal(t, Opening, s.State())
	assert.False(t, s.ShouldProcessAudio(), "audio must not run while opening")

	for i := 0; i < 100; i++ {
		s.ProcessRawSample(0.0)
	}
	assert.Equal(t, Closed, s.State())
}

func TestClosingReopens(t *testing.T) {
	s := New(Config{ManualLevel: 1.0, OpenDelay: 2, CloseDelay: 20})
	for i := 0; i < 20; i++ {
		s.ProcessRawSample(10.0)
	}
	require.Equal(t, Open, s.State())

	// A short fade must not close the gate.
	for i := 0; i < 5; i++ {
		s.ProcessRawSample(0.0)
	}
	assert.Equal(t, Closing, s.State())
	assert.True(t, s.IsOpen(), "audio keeps flowing while closing")

	for i := 0; i < 20; i++ {
		s.ProcessRawSample(10.0)
	}
	assert.Equal(t, Open, s.State())
}

func TestAutoThresholdTracksNoiseFloor(t *testing.T) {
	s := New(Config{})

	// Converge the floor onto a steady noise level.
	for i := 0; i < 3000; i++ {
		s.ProcessRawSample(0.1)
	}
	assert.InDelta(t, 0.1, float64(s.NoiseLevel()), 0.05)
	assert.Equal(t, Closed, s.State(), "steady noise must not open the gate")

	// The floor must not absorb a long transmission: only the slow
	// upward creep applies while the signal is above it.
	floorBefore := s.NoiseLevel()
	opened := false
	for i := 0; i < 5000; i++ {
		s.ProcessRawSample(3.0)
		if s.FirstOpenSample() {
			opened = true
		}
	}
	assert.True(t, opened, "strong signal over the floor must open")
	assert.Less(t, s.NoiseLevel(), floorBefore*1.1)
}

func TestManualLevelOverridesFloor(t *testing.T) {
	s := New(Config{ManualLevel: 2.0})
	assert.Equal(t, float32(2.0), s.SquelchLevel())

	// Signal above the auto floor but below the manual level stays
	// squelched.
	for i := 0; i < 3000; i++ {
		s.ProcessRawSample(1.0)
	}
	assert.Equal(t, Closed, s.State())
}

func TestFilteredSampleGatesOffChannelEnergy(t *testing.T) {
	s := New(Config{ManualLevel: 1.0, OpenDelay: 2})
	for i := 0; i < 20; i++ {
		s.ProcessRawSample(10.0)
	}
	require.Equal(t, Open, s.State())

	// Raw level stays high, filtered level collapses: the energy is
	// outside the channel and the gate must close on the filtered
	// stream.
	for i := 0; i < 200; i++ {
		s.ProcessRawSample(10.0)
		s.ProcessFilteredSample(0.0)
	}
	assert.Equal(t, Closed, s.State())
	assert.True(t, s.SignalOutsideFilter())
}

func TestCTCSSVeto(t *testing.T) {
	const rate = 8000
	mk := func() *Squelch {
		return New(Config{ManualLevel: 1.0, CTCSSFreq: 100.0, SampleRate: rate})
	}

	// Gate open, tone present: audio passes once the first Goertzel
	// window confirms.
	s := mk()
	for i := 0; i < 3000; i++ {
		s.ProcessRawSample(5.0)
		s.ProcessAudioSample(float32(0.3 * math.Sin(2.0*math.Pi*100.0*float64(i)/rate)))
	}
	assert.Equal(t, Open, s.State())
	assert.True(t, s.IsOpen(), "tone present, audio must pass")

	// Gate open, wrong tone (right on a reference bin): squelch
	// state is Open but audio is vetoed.
	s = mk()
	for i := 0; i < 3000; i++ {
		s.ProcessRawSample(5.0)
		s.ProcessAudioSample(float32(0.3 * math.Sin(2.0*math.Pi*90.0*float64(i)/rate)))
	}
	assert.Equal(t, Open, s.State())
	assert.False(t, s.IsOpen(), "wrong tone must stay vetoed")
}
