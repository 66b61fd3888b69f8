package squelch

import (
	"math"
	"sync/atomic"
)

/*------------------------------------------------------------------
 *
 * Purpose:	Per-channel squelch gate.
 *
 * 		Decides, sample by sample, whether a channel currently
 * 		carries a usable signal. The demodulator feeds it raw
 * 		FFT-bin magnitudes (and filtered magnitudes when an I/Q
 * 		lowpass is active) and asks a handful of questions per
 * 		sample; every call is O(1) and never blocks.
 *
 * 		States: Closed -> Opening -> Open -> Closing -> Closed.
 * 		Opening and Closing are delay states that debounce the
 * 		threshold comparisons. An optional CTCSS detector can
 * 		veto Open: the gate will not pass audio until the tone
 * 		is confirmed.
 *
 *----------------------------------------------------------------*/

// GateState is the squelch state machine position.
type GateState int

const (
	Closed GateState = iota
	Opening
	Open
	Closing
)

func (s GateState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Opening:
		return "opening"
	case Open:
		return "open"
	case Closing:
		return "closing"
	}
	return "unknown"
}

// Smoothing and tracking constants. The signal average has to react
// within a few samples at WAVE_RATE while the noise floor must ride
// through whole transmissions without creeping up.
const (
	signalAlpha     = 0.1
	noiseFloorAlpha = 0.01
	noiseFloorCreep = 1.000001

	defaultOpenDelay  = 10
	defaultCloseDelay = 60
	defaultSNRdB      = 9.0

	ctcssWindowDiv = 10 // integration window = sampleRate/10
)

// Config sets up one squelch instance.
type Config struct {
	// ManualLevel is a fixed linear threshold. Zero selects
	// automatic thresholding from the tracked noise floor.
	ManualLevel float32

	// SNRThresholdDB is the margin over the noise floor for the
	// automatic threshold. Zero selects the default (9 dB).
	SNRThresholdDB float32

	// OpenDelay / CloseDelay are the debounce lengths in samples.
	// Zero selects the defaults.
	OpenDelay  int
	CloseDelay int

	// CTCSSFreq enables sub-audible tone gating when non-zero.
	CTCSSFreq  float64
	SampleRate int
}

// Squelch is the per-frequency gate instance.
type Squelch struct {
	cfg   Config
	state GateState

	// signalLevel and noiseFloor are written every sample by the
	// demod worker and read by the monitoring boundary, hence the
	// bit-cast atomics.
	signalLevel atomicFloat32
	noiseFloor  atomicFloat32
	manualLevel float32
	snrLinear   float32

	delayCount int
	firstOpen  bool
	lastOpen   bool

	filteredLevel float32
	filteredValid bool
	usesFiltered  bool

	ctcss *ctcssDetector
}

// New builds a squelch from cfg, filling in defaults.
func New(cfg Config) *Squelch {
	if cfg.OpenDelay <= 0 {
		cfg.OpenDelay = defaultOpenDelay
	}
	if cfg.CloseDelay <= 0 {
		cfg.CloseDelay = defaultCloseDelay
	}
	snr := cfg.SNRThresholdDB
	if snr <= 0 {
		snr = defaultSNRdB
	}

	s := &Squelch{
		cfg:         cfg,
		manualLevel: cfg.ManualLevel,
		snrLinear:   dbToLinear(snr),
	}
	// Seeded high so the gate stays shut until the floor settles
	// onto real input.
	s.noiseFloor.Store(100.0)
	if cfg.CTCSSFreq > 0 && cfg.SampleRate > 0 {
		s.ctcss = newCTCSSDetector(cfg.CTCSSFreq, float64(cfg.SampleRate), cfg.SampleRate/ctcssWindowDiv)
	}
	return s
}

func dbToLinear(db float32) float32 {
	return float32(math.Pow(10.0, float64(db)/20.0))
}

// ProcessRawSample feeds the raw (pre-filter) magnitude for the current
// sample and steps the state machine. Must be called exactly once per
// sample, before any of the query methods.
func (s *Squelch) ProcessRawSample(level float32) {
	s.firstOpen = false
	s.lastOpen = false
	s.filteredValid = false

	sl := s.signalLevel.Load()*(1-signalAlpha) + level*signalAlpha
	s.signalLevel.Store(sl)

	// Track the floor only from the raw stream: fast to fall onto
	// quiet, and allowed only a slow upward creep so long overs do
	// not get absorbed into "noise".
	nf := s.noiseFloor.Load()
	if sl < nf {
		nf = nf*(1-noiseFloorAlpha) + sl*noiseFloorAlpha
	} else {
		nf *= noiseFloorCreep
	}
	s.noiseFloor.Store(nf)

	// Once a lowpass is in play the filtered stream owns the state
	// machine everywhere except Closed, where no filtered samples
	// arrive and the raw level must be able to trigger Opening.
	if !s.usesFiltered || s.state == Closed {
		s.step(sl > s.SquelchLevel())
	}
}

// ProcessFilteredSample feeds the post-lowpass magnitude. The filtered
// level replaces the raw one for the open/close decision, which keeps
// strong off-channel energy from holding the gate open.
func (s *Squelch) ProcessFilteredSample(level float32) {
	s.usesFiltered = true
	s.filteredLevel = s.filteredLevel*(1-signalAlpha) + level*signalAlpha
	s.filteredValid = true
	if s.state != Closed {
		s.step(s.filteredLevel > s.SquelchLevel())
	}
}

func (s *Squelch) step(above bool) {
	switch s.state {
	case Closed:
		if above {
			s.state = Opening
			s.delayCount = 1
		}
	case Opening:
		if !above {
			s.state = Closed
			s.delayCount = 0
		} else if s.delayCount++; s.delayCount >= s.cfg.OpenDelay {
			s.state = Open
			s.firstOpen = true
			s.delayCount = 0
		}
	case Open:
		if !above {
			s.state = Closing
			s.delayCount = 1
		}
	case Closing:
		if above {
			s.state = Open
			s.delayCount = 0
		} else if s.delayCount++; s.delayCount >= s.cfg.CloseDelay {
			s.state = Closed
			s.lastOpen = true
			s.delayCount = 0
			if s.ctcss != nil {
				s.ctcss.reset()
			}
		}
	}
}

// ProcessAudioSample feeds one demodulated audio sample to the CTCSS
// analyzer. No-op when no tone is configured.
func (s *Squelch) ProcessAudioSample(sample float32) {
	if s.ctcss != nil {
		s.ctcss.feed(float64(sample))
	}
}

// FirstOpenSample reports whether the current sample is the first of an
// open run (used to bootstrap the AM AGC average).
func (s *Squelch) FirstOpenSample() bool { return s.firstOpen }

// LastOpenSample reports whether the gate closed on the current sample
// (used to fade the output tail instead of cutting it).
func (s *Squelch) LastOpenSample() bool { return s.lastOpen }

// ShouldFilterSample reports whether I/Q cleanup (down-mix correction
// and lowpass) should run for the current sample.
func (s *Squelch) ShouldFilterSample() bool {
	return s.state == Opening || s.state == Open || s.state == Closing
}

// ShouldProcessAudio reports whether demodulation should run for the
// current sample.
func (s *Squelch) ShouldProcessAudio() bool {
	return s.state == Open || s.state == Closing
}

// IsOpen reports whether audio passes to the output for the current
// sample. A configured CTCSS detector vetoes until the tone confirms.
func (s *Squelch) IsOpen() bool {
	if s.state != Open && s.state != Closing {
		return false
	}
	if s.ctcss != nil && !s.ctcss.hasTone() {
		return false
	}
	return true
}

// SignalOutsideFilter reports that the raw stream is above threshold
// while the filtered stream is not: energy near, but not on, the
// channel.
func (s *Squelch) SignalOutsideFilter() bool {
	return s.filteredValid &&
		s.signalLevel.Load() > s.SquelchLevel() &&
		s.filteredLevel <= s.SquelchLevel()
}

// SignalLevel returns the smoothed linear signal magnitude. Safe to
// call from any goroutine.
func (s *Squelch) SignalLevel() float32 { return s.signalLevel.Load() }

// NoiseLevel returns the tracked linear noise floor. Safe to call from
// any goroutine.
func (s *Squelch) NoiseLevel() float32 { return s.noiseFloor.Load() }

// SquelchLevel returns the currently effective linear threshold.
func (s *Squelch) SquelchLevel() float32 {
	if s.manualLevel > 0 {
		return s.manualLevel
	}
	return s.noiseFloor.Load() * s.snrLinear
}

// State exposes the gate state for monitoring.
func (s *Squelch) State() GateState { return s.state }

/*------------------------------------------------------------------
 * CTCSS: compare tone-bin power against two neighbour bins; the tone
 * is "present" while it dominates both by 2x. Decisions update once
 * per integration window and hold in between.
 *----------------------------------------------------------------*/

type ctcssDetector struct {
	tone  *goertzel
	refLo *goertzel
	refHi *goertzel
	found bool
}

func newCTCSSDetector(toneHz, sampleRate float64, window int) *ctcssDetector {
	if window < 64 {
		window = 64
	}
	return &ctcssDetector{
		tone:  newGoertzel(toneHz, sampleRate, window),
		refLo: newGoertzel(toneHz*0.85, sampleRate, window),
		refHi: newGoertzel(toneHz*1.15, sampleRate, window),
	}
}

func (c *ctcssDetector) feed(s float64) {
	c.refLo.feed(s)
	c.refHi.feed(s)
	if c.tone.feed(s) {
		ref := c.refLo.power
		if c.refHi.power > ref {
			ref = c.refHi.power
		}
		c.found = c.tone.power > 2.0*ref
	}
}

func (c *ctcssDetector) hasTone() bool { return c.found }

func (c *ctcssDetector) reset() {
	c.found = false
	c.tone.q1, c.tone.q2, c.tone.n = 0, 0, 0
	c.refLo.q1, c.refLo.q2, c.refLo.n = 0, 0, 0
	c.refHi.q1, c.refHi.q2, c.refHi.n = 0, 0, 0
}

// atomicFloat32 publishes a float32 across goroutines through its bit
// pattern.
type atomicFloat32 struct {
	bits atomic.Uint32
}

func (a *atomicFloat32) Load() float32 {
	return math.Float32frombits(a.bits.Load())
}

func (a *atomicFloat32) Store(v float32) {
	a.bits.Store(math.Float32bits(v))
}
