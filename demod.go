package airband

import (
	"context"
	"math"
	"time"

	"github.com/charmbracelet/log"

	"github.com/boondock/airband/dsp"
	"github.com/boondock/airband/input"
	"github.com/boondock/airband/output"
)

/*------------------------------------------------------------------
 *
 * Purpose:	Demodulation worker: the spectral channelizer and the
 * 		per-sample squelch/AGC/demodulation loop.
 *
 * 		Each worker owns a disjoint range of devices and
 * 		round-robins across them. A device is processed only
 * 		when its ring holds a full FFT batch plus one FFT
 * 		window of guard; otherwise it is skipped without
 * 		blocking. The worker sleeps only when a whole pass
 * 		found nothing to do.
 *
 * 		Per channelizer call: FFTBatch windowed forward FFTs,
 * 		one bin magnitude (and optionally the raw complex
 * 		value) appended per channel per FFT. Once a full wave
 * 		batch plus AGC margin has accumulated, the per-sample
 * 		loop runs and the output stage is signalled once.
 *
 * 		The AGC and de-emphasis constants in the sample loop
 * 		are tuned time constants, preserved exactly.
 *
 *----------------------------------------------------------------*/

// idleSleep is the backoff when no assigned device had data.
const idleSleep = 10 * time.Millisecond

// DemodWorker demodulates devices [deviceStart, deviceEnd).
type DemodWorker struct {
	radio       *Radio
	deviceStart int
	deviceEnd   int
	signal      *output.Signal

	fft    dsp.FFT
	fftin  []complex64
	fftout []complex64

	converters map[int]*dsp.Converter
}

// NewDemodWorker builds a worker with its own FFT engine and scratch
// buffers for the given device range.
func NewDemodWorker(r *Radio, deviceStart, deviceEnd int, sig *output.Signal) (*DemodWorker, error) {
	engine, err := dsp.NewFFT(r.FFTBackend, r.Params.FFTSize)
	if err != nil {
		return nil, err
	}
	w := &DemodWorker{
		radio:       r,
		deviceStart: deviceStart,
		deviceEnd:   deviceEnd,
		signal:      sig,
		fft:         engine,
		fftin:       make([]complex64, r.Params.FFTSize),
		fftout:      make([]complex64, r.Params.FFTSize),
		converters:  make(map[int]*dsp.Converter),
	}
	for _, dev := range r.Devices[deviceStart:deviceEnd] {
		info := dev.Input.Info()
		w.converters[dev.Index] = dsp.NewConverter(info.Format, info.FullScale)
	}
	return w, nil
}

// Run is the worker loop. Returns when ctx is cancelled.
func (w *DemodWorker) Run(ctx context.Context) {
	log.Debug("demod worker started", "devices", []int{w.deviceStart, w.deviceEnd})

	deviceNum := w.deviceStart
	idle := 0
	for {
		if ctx.Err() != nil {
			return
		}
		if w.poll(deviceNum) {
			idle = 0
		} else {
			idle++
		}
		deviceNum++
		if deviceNum >= w.deviceEnd {
			deviceNum = w.deviceStart
		}
		if idle >= w.deviceEnd-w.deviceStart {
			idle = 0
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleSleep):
			}
		}
	}
}

// bytesPerWaveSample is the input-byte footprint of one output audio
// sample: the FFT window slides by sampleRate/WaveRate input samples,
// two values (I and Q) each.
func bytesPerWaveSample(info input.Info) int {
	return 2 * info.BytesPerSample * int(math.Round(float64(info.SampleRate)/float64(WaveRate)))
}

// poll processes one device if it has enough buffered data. Returns
// false when the device was skipped (backpressure, not an error).
func (w *DemodWorker) poll(deviceNum int) bool {
	dev := w.radio.Devices[deviceNum]
	in := dev.Input

	switch in.State() {
	case input.StateRunning:
	case input.StateFailed:
		log.Error("input failed, disabling device", "device", dev.Index)
		in.SetState(input.StateDisabled)
		closeOutputs(dev)
		return false
	default:
		return false
	}

	p := w.radio.Params
	info := in.Info()
	bps := bytesPerWaveSample(info)
	need := bps*p.FFTBatch + p.FFTSize*info.BytesPerSample*2
	if in.Buffer.Available() < need {
		return false
	}

	w.channelize(dev, info, bps)
	return true
}

// channelize runs one FFT batch for the device and, when a wave batch
// has accumulated, the per-sample demodulation loop.
func (w *DemodWorker) channelize(dev *Device, info input.Info, bps int) {
	p := w.radio.Params
	conv := w.converters[dev.Index]
	blockBytes := p.FFTSize * 2 * info.BytesPerSample

	for b := 0; b < p.FFTBatch; b++ {
		raw := dev.Input.Buffer.View(b*bps, blockBytes)
		conv.Convert(w.fftin, raw, w.radio.window)
		w.fft.Transform(w.fftout, w.fftin)

		for j, ch := range dev.Channels {
			v := w.fftout[dev.bins[j].Load()]
			re, im := real(v), imag(v)
			ch.wavein[dev.waveend+b] = float32(math.Sqrt(float64(re*re + im*im)))
			if ch.NeedsRawIQ {
				ch.iqIn[2*(dev.waveend+b)] = re
				ch.iqIn[2*(dev.waveend+b)+1] = im
			}
		}
	}

	// Refresh the monitoring snapshot every fourth batch; the lock
	// covers only the copy-and-convert.
	n := dev.Spectrum.updateCounter.Add(1)
	if dev.Spectrum.Enabled && n%4 == 0 {
		w.updateSpectrum(dev)
	}

	dev.waveend += p.FFTBatch

	if dev.waveend >= p.WaveBatch+p.AGCExtra {
		for i := range dev.Channels {
			w.processChannel(dev, i)
		}
		if dev.waveavail.Swap(1) == 1 {
			dev.OutputOverruns.Add(1)
			log.Debug("output channel overrun", "device", dev.Index)
		}
		dev.waveend -= p.WaveBatch
		w.signal.Send()
	}

	dev.Input.Buffer.Advance(bps * p.FFTBatch)
}

func (w *DemodWorker) updateSpectrum(dev *Device) {
	p := w.radio.Params
	sp := &dev.Spectrum
	sp.mu.Lock()
	// Bin-shift so DC sits in the middle of the display range.
	for i := range sp.magnitude {
		v := w.fftout[(i+p.FFTSize/2)%p.FFTSize]
		mag := math.Sqrt(float64(real(v)*real(v) + imag(v)*imag(v)))
		sp.magnitude[i] = float32(20.0 * math.Log10(mag+1e-10))
	}
	sp.lastUpdate = time.Now()
	sp.mu.Unlock()
}

// processChannel runs the per-sample squelch/AGC/demod loop over one
// wave batch, with AGCExtra samples of look-ahead context, then shifts
// the history tail to the front and finalizes AFC.
func (w *DemodWorker) processChannel(dev *Device, idx int) {
	p := w.radio.Params
	ch := dev.Channels[idx]
	f := ch.Freqs[ch.FreqIdx()]
	afc := beginAFC(ch)

	// Will be promoted back to Signal (or an AFC state) below.
	ch.setIndicator(NoSignal)

	for j := p.AGCExtra; j < p.WaveBatch+p.AGCExtra; j++ {
		var re, im float32
		if ch.NeedsRawIQ {
			re = ch.iqIn[2*(j-p.AGCExtra)]
			im = ch.iqIn[2*(j-p.AGCExtra)+1]
		}

		f.Squelch.ProcessRawSample(ch.wavein[j])

		// With squelch open or opening, clean up the I/Q: undo the
		// residual phase rotation of the sliding FFT window, then
		// narrow the channel if a lowpass is configured.
		if f.Squelch.ShouldFilterSample() && ch.NeedsRawIQ {
			swf, cwf := dsp.SinCosPhase(ch.dmPhi)
			re, im = dsp.Multiply(re, im, cwf, -swf)
			ch.dmPhi = (ch.dmPhi + ch.dmDphi) & dsp.PhaseMask

			re, im = f.Lowpass.Apply(re, im)

			ch.iqIn[2*(j-p.AGCExtra)] = re
			ch.iqIn[2*(j-p.AGCExtra)+1] = im
			ch.wavein[j] = float32(math.Sqrt(float64(re*re + im*im)))

			if f.Lowpass.Enabled() {
				f.Squelch.ProcessFilteredSample(ch.wavein[j])
			}
		}

		if f.Modulation == ModAM {
			if f.Squelch.FirstOpenSample() {
				// Squelch just opened: warm the fast AGC from the
				// look-behind window so the first syllable is not
				// swallowed.
				for k := j - p.AGCExtra; k < j; k++ {
					if ch.wavein[k] >= f.Squelch.SquelchLevel() {
						f.agcAvgFast = f.agcAvgFast*0.9 + ch.wavein[k]*0.1
					}
				}
			} else if f.Squelch.LastOpenSample() {
				// Squelch just closed: fade the tail instead of
				// cutting it.
				for k := j - p.AGCExtra + 1; k < j; k++ {
					ch.waveout[k] = ch.waveout[k-1] * 0.94
				}
			}
		}

		var waveout float32
		if f.Squelch.ShouldProcessAudio() {
			switch f.Modulation {
			case ModAM:
				if ch.wavein[j] > f.Squelch.SquelchLevel() {
					f.agcAvgFast = f.agcAvgFast*0.995 + ch.wavein[j]*0.005
				}
				waveout = (ch.wavein[j-p.AGCExtra] - f.agcAvgFast) / (f.agcAvgFast * 1.5)
				if waveout > 0.8 || waveout < -0.8 {
					waveout *= 0.85
					f.agcAvgFast *= 1.15
				}

			case ModNFM:
				if w.radio.FMDemod == FMFastAtan2 {
					waveout = dsp.PolarDiscFast(re, im, ch.pr, ch.pj)
				} else {
					waveout = dsp.FMQuadriDemod(re, im, ch.pr, ch.pj)
				}
				ch.pr = re
				ch.pj = im

				// DC blocking plus one-pole de-emphasis.
				f.agcAvgFast = f.agcAvgFast*0.995 + waveout*0.005
				waveout -= f.agcAvgFast
				waveout = waveout*(1.0-ch.alpha) + ch.prevWaveout*ch.alpha
				ch.prevWaveout = waveout
			}

			f.Squelch.ProcessAudioSample(waveout)
		}

		if f.Squelch.IsOpen() {
			waveout = f.Notch.Apply(waveout)
			waveout *= f.AmpFactor

			// Downstream encoders require [-1, 1] and choke on NaN.
			if math.IsNaN(float64(waveout)) {
				waveout = 0.0
			} else if waveout > 1.0 {
				waveout = 1.0
			} else if waveout < -1.0 {
				waveout = -1.0
			}

			ch.setIndicator(Signal)
			ch.waveout[j] = waveout
			if ch.HasIQOutputs {
				ch.iqOut[2*(j-p.AGCExtra)] = re
				ch.iqOut[2*(j-p.AGCExtra)+1] = im
			}
		} else {
			ch.waveout[j] = 0
			if ch.HasIQOutputs {
				ch.iqOut[2*(j-p.AGCExtra)] = 0
				ch.iqOut[2*(j-p.AGCExtra)+1] = 0
			}
		}
	}

	// Carry the history tail over to the front for the next batch.
	copy(ch.wavein, ch.wavein[p.WaveBatch:dev.waveend])
	if ch.NeedsRawIQ {
		copy(ch.iqIn, ch.iqIn[2*p.WaveBatch:2*dev.waveend])
	}

	afc.finalize(dev, idx, w.fftout)

	if ch.Indicator() != NoSignal {
		f.ActiveCounter.Add(1)
	}
}

func closeOutputs(dev *Device) {
	for _, ch := range dev.Channels {
		for _, sink := range ch.Outputs {
			if err := sink.Close(); err != nil {
				log.Warn("closing output", "sink", sink.Name(), "err", err)
			}
		}
	}
}
