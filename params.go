package airband

/*------------------------------------------------------------------
 *
 * Purpose:	Pipeline sizing parameters.
 *
 * 		One audio sample comes out of the channelizer per FFT,
 * 		so the FFT cadence equals the audio rate (WaveRate).
 * 		A wave batch is the unit handed to the output stage;
 * 		AGCExtra samples of history ride along in front of each
 * 		batch so the AGC can look behind itself when squelch
 * 		opens and fade gracefully when it closes.
 *
 *----------------------------------------------------------------*/

// WaveRate is the demodulated audio sample rate in Hz. It is baked
// into the filter time constants, so it is a constant, not a knob.
const WaveRate = 8000

// Defaults for the tunable sizes.
const (
	DefaultFFTSizeLog = 9
	DefaultFFTBatch   = 8
	DefaultWaveBatch  = 1000
	DefaultAGCExtra   = 48

	// MinBufSize is the base input ring size before rounding up to
	// a whole number of FFT batches.
	MinBufSize = 2560000
)

// Params carries the sizes a pipeline was built with.
type Params struct {
	FFTSize   int // power of two
	FFTBatch  int // FFTs per channelizer call
	WaveBatch int // audio samples per output handoff
	AGCExtra  int // look-ahead/look-behind margin
}

// DefaultParams returns the production sizing.
func DefaultParams() Params {
	return Params{
		FFTSize:   1 << DefaultFFTSizeLog,
		FFTBatch:  DefaultFFTBatch,
		WaveBatch: DefaultWaveBatch,
		AGCExtra:  DefaultAGCExtra,
	}
}

// waveBufLen is the backing size of the per-channel wave and I/Q
// history buffers: a full batch, the history margin, and slack for the
// batch boundary not landing exactly on WaveBatch+AGCExtra.
func (p Params) waveBufLen() int {
	return p.WaveBatch + p.AGCExtra + p.FFTBatch
}
