package airband

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/boondock/airband/input"
	"github.com/boondock/airband/output"
	"github.com/boondock/airband/squelch"
)

/*------------------------------------------------------------------
 *
 * Purpose:	Data model: Device, Channel, FreqEntry.
 *
 * 		A Device owns one input stream and a fixed set of
 * 		Channels, each extracting one FFT bin. A Channel in
 * 		scan mode carries several FreqEntry slots and hops
 * 		between them; in multichannel mode it has exactly one.
 * 		Channel counts and bin assignments are fixed after
 * 		configuration; only AFC may move a channel's extraction
 * 		bin, and only within the neighbourhood of its base bin.
 *
 *----------------------------------------------------------------*/

// Indicator is the per-channel signal state, kept as the classic
// one-character console spelling.
type Indicator byte

const (
	NoSignal Indicator = ' '
	Signal   Indicator = '*'
	AFCUp    Indicator = '>'
	AFCDown  Indicator = '<'
)

// Modulation selects the per-frequency demodulator.
type Modulation int

const (
	ModAM Modulation = iota
	ModNFM
)

func (m Modulation) String() string {
	if m == ModNFM {
		return "nfm"
	}
	return "am"
}

// FMDemodAlgo selects the NFM discriminator implementation.
type FMDemodAlgo int

const (
	FMFastAtan2 FMDemodAlgo = iota
	FMQuadri
)

// DeviceMode is how a device uses its channels.
type DeviceMode int

const (
	ModeMultichannel DeviceMode = iota
	ModeScan
)

// FreqEntry is one tunable slot of a channel.
type FreqEntry struct {
	Frequency  int
	Label      string
	Modulation Modulation

	Squelch *squelch.Squelch
	Notch   *squelch.NotchFilter
	Lowpass *squelch.LowpassFilter

	// agcAvgFast is the fast AGC average for AM, doubling as the
	// DC-blocking accumulator for NFM. Demod worker only.
	agcAvgFast float32

	AmpFactor float32

	// ActiveCounter counts wave batches with squelch open; read by
	// the monitoring boundary and scan-activity logging.
	ActiveCounter atomic.Int64
}

// Channel extracts one bin from its device's FFT output and produces
// one audio stream.
type Channel struct {
	Freqs   []*FreqEntry
	freqIdx atomic.Int32 // written by the scan controller

	NeedsRawIQ   bool
	HasIQOutputs bool

	// wavein holds bin magnitudes, waveout demodulated audio; both
	// are WaveBatch+AGCExtra(+slack) long, with the first AGCExtra
	// entries being history carried between batches.
	wavein  []float32
	waveout []float32
	iqIn    []float32 // interleaved re/im, aligned with wavein
	iqOut   []float32 // interleaved re/im, one pair per output sample

	// Down-mix phase accumulator and per-sample increment, 24-bit
	// fixed point (see dsp.PhaseBits).
	dmPhi  uint32
	dmDphi uint32

	// NFM discriminator memory and de-emphasis state.
	pr, pj      float32
	prevWaveout float32
	alpha       float32

	afc       uint8 // 0 disables AFC; otherwise the first-step divisor
	indicator atomic.Int32

	Outputs   []output.Sink
	IQOutputs []output.IQWriter
}

// FreqIdx returns the currently tuned slot index.
func (c *Channel) FreqIdx() int { return int(c.freqIdx.Load()) }

// SetFreqIdx is called by the scan controller on a hop.
func (c *Channel) SetFreqIdx(i int) { c.freqIdx.Store(int32(i)) }

// Freq returns the currently tuned slot.
func (c *Channel) Freq() *FreqEntry { return c.Freqs[c.FreqIdx()] }

// Indicator returns the channel's signal-present state.
func (c *Channel) Indicator() Indicator { return Indicator(c.indicator.Load()) }

func (c *Channel) setIndicator(i Indicator) { c.indicator.Store(int32(i)) }

// Spectrum is the per-device monitoring snapshot. The demodulator
// refreshes it every fourth batch under its own mutex, independent of
// the ring-buffer lock, so monitoring cannot stall the hot path beyond
// one O(FFTSize) copy.
type Spectrum struct {
	mu            sync.Mutex
	magnitude     []float32 // dBFS, DC centered
	lastUpdate    time.Time
	Enabled       bool
	updateCounter atomic.Uint64
}

// Snapshot copies the magnitude array for the monitoring boundary.
func (s *Spectrum) Snapshot() (mag []float32, counter uint64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mag = make([]float32, len(s.magnitude))
	copy(mag, s.magnitude)
	return mag, s.updateCounter.Load(), s.lastUpdate
}

// UpdateCounter returns the number of channelizer batches seen.
func (s *Spectrum) UpdateCounter() uint64 { return s.updateCounter.Load() }

// TagQueue hands scan-activity events from the controller to the
// output stage. Small fixed ring; if nobody drains it the oldest tags
// fall out.
type TagQueue struct {
	mu   sync.Mutex
	tags []output.Tag
}

const tagQueueDepth = 16

// Put enqueues one tag, discarding the oldest on overflow.
func (q *TagQueue) Put(t output.Tag) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tags) >= tagQueueDepth {
		q.tags = q.tags[1:]
	}
	q.tags = append(q.tags, t)
}

// Drain removes and returns all queued tags.
func (q *TagQueue) Drain() []output.Tag {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.tags
	q.tags = nil
	return out
}

// Device owns one input stream and its channels.
type Device struct {
	Index int
	Input *input.Input
	Mode  DeviceMode

	Channels []*Channel

	// bins is the current extraction bin per channel, baseBins the
	// configured one. AFC moves bins around baseBins; the atomics
	// let the monitoring boundary read while the demod worker moves
	// them.
	bins     []atomic.Int32
	baseBins []int

	// waveend is the accumulation cursor into the wave buffers,
	// advanced FFTBatch per channelizer call. Demod worker only.
	waveend int

	// waveavail is the single-slot double-buffer flag: 1 means a
	// completed batch awaits the output stage.
	waveavail      atomic.Int32
	OutputOverruns atomic.Uint64

	// lastFrequency is the last slot index a tag was emitted for.
	// Scan controller only. -1 before any activity.
	lastFrequency int

	Spectrum Spectrum
	Tags     TagQueue

	// ScanPoll is the controller poll interval; overridable in
	// tests, 200 ms in production.
	ScanPoll time.Duration
}

// Bin returns channel i's current extraction bin.
func (d *Device) Bin(i int) int { return int(d.bins[i].Load()) }

// BaseBin returns channel i's configured bin.
func (d *Device) BaseBin(i int) int { return d.baseBins[i] }

// WaveAvailable reports whether a completed batch is pending.
func (d *Device) WaveAvailable() bool { return d.waveavail.Load() == 1 }
