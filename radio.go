package airband

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/boondock/airband/dsp"
	"github.com/boondock/airband/input"
	"github.com/boondock/airband/output"
	"github.com/boondock/airband/squelch"
)

/*------------------------------------------------------------------
 *
 * Purpose:	Radio is the assembled pipeline: every device, channel
 * 		and derived constant, built once from a validated
 * 		Config. All cross-goroutine state lives here or below;
 * 		there are no package globals, and shutdown is plain
 * 		context cancellation.
 *
 *----------------------------------------------------------------*/

// Radio owns the full pipeline state.
type Radio struct {
	Params  Params
	Devices []*Device

	FMDemod         FMDemodAlgo
	FFTBackend      string
	LogScanActivity bool
	MonitorListen   string

	// window is the analysis window, shared read-only by all demod
	// workers.
	window []float32
}

// NewRadio assembles the pipeline from a validated config.
func NewRadio(cfg *Config) (*Radio, error) {
	p := DefaultParams()
	p.FFTSize = 1 << cfg.FFTSizeLog

	r := &Radio{
		Params:          p,
		FFTBackend:      cfg.FFTBackend,
		LogScanActivity: cfg.LogScanActivity,
		MonitorListen:   cfg.Monitor.Listen,
		window:          dsp.BlackmanHarris7(p.FFTSize),
	}
	if cfg.FMDemod == "quadri" {
		r.FMDemod = FMQuadri
	}

	for i := range cfg.Devices {
		dev, err := r.buildDevice(i, &cfg.Devices[i], cfg.Monitor)
		if err != nil {
			return nil, fmt.Errorf("device %d: %w", i, err)
		}
		r.Devices = append(r.Devices, dev)
	}
	return r, nil
}

func (r *Radio) buildDevice(index int, dc *DeviceConfig, mon MonitorConfig) (*Device, error) {
	p := r.Params

	mode := ModeMultichannel
	centerFreq := int(dc.CenterFreq)
	if dc.Mode == "scan" {
		mode = ModeScan
		// Scan mode dictates the tuning: the active entry sits a
		// fixed number of bins below center.
		centerFreq = scanTuneFreq(int(dc.Channels[0].Freqs[0].Freq), dc.SampleRate, p.FFTSize)
	}

	var drv input.Driver
	switch dc.Type {
	case "file":
		format, err := dsp.ParseSampleFormat(dc.Format)
		if err != nil {
			return nil, err
		}
		drv, err = input.NewFileDriver(input.FileConfig{
			Path:       dc.FilePath,
			Format:     format,
			FullScale:  dc.FullScale,
			SampleRate: dc.SampleRate,
			CenterFreq: centerFreq,
			Loop:       dc.Loop,
			Throttle:   true,
		})
		if err != nil {
			return nil, err
		}
	case "tone":
		tones := make([]input.Tone, len(dc.Tones))
		for i, t := range dc.Tones {
			tones[i] = input.Tone{OffsetHz: int(t.Offset), Amplitude: t.Amplitude}
		}
		drv = input.NewToneDriver(input.ToneConfig{
			SampleRate: dc.SampleRate,
			CenterFreq: centerFreq,
			Tones:      tones,
			NoiseFloor: dc.NoiseFloor,
		})
	default:
		return nil, fmt.Errorf("unknown device type %q", dc.Type)
	}

	info := drv.Info()
	size, guard := bufferSizeFor(dc.BufferSize, dc.SampleRate, info.BytesPerSample, p.FFTSize, p.FFTBatch)

	dev := &Device{
		Index:         index,
		Input:         input.NewInput(drv, size, guard),
		Mode:          mode,
		lastFrequency: -1,
	}
	dev.Spectrum.Enabled = mon.Spectrum && mon.Listen != ""
	dev.Spectrum.magnitude = make([]float32, p.FFTSize)

	dev.bins = make([]atomic.Int32, len(dc.Channels))
	for i := range dc.Channels {
		ch, err := r.buildChannel(&dc.Channels[i], centerFreq, dc.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", i, err)
		}
		dev.Channels = append(dev.Channels, ch)

		freq := int(dc.Channels[i].Freq)
		if mode == ModeScan {
			freq = int(dc.Channels[i].Freqs[0].Freq)
		}
		bin := binForFrequency(freq, centerFreq, dc.SampleRate, p.FFTSize)
		dev.bins[i].Store(int32(bin))
		dev.baseBins = append(dev.baseBins, bin)
	}
	return dev, nil
}

func (r *Radio) buildChannel(cc *ChannelConfig, centerFreq, sampleRate int) (*Channel, error) {
	p := r.Params
	ch := &Channel{
		wavein:  make([]float32, p.waveBufLen()),
		waveout: make([]float32, p.waveBufLen()),
		afc:     cc.AFC,
	}
	ch.setIndicator(NoSignal)

	mod := ModAM
	if cc.Modulation == "nfm" {
		mod = ModNFM
	}

	specs := cc.Freqs
	if len(specs) == 0 {
		specs = []FreqSpec{{Freq: cc.Freq, Label: cc.Label}}
	}
	for _, fs := range specs {
		f := &FreqEntry{
			Frequency:  int(fs.Freq),
			Label:      fs.Label,
			Modulation: mod,
			AmpFactor:  cc.AmpFactor,
			agcAvgFast: 0.5,
			Squelch: squelch.New(squelch.Config{
				ManualLevel:    cc.Squelch.ManualLevel,
				SNRThresholdDB: cc.Squelch.SNRThreshold,
				OpenDelay:      cc.Squelch.OpenDelay,
				CloseDelay:     cc.Squelch.CloseDelay,
				CTCSSFreq:      cc.CTCSS,
				SampleRate:     WaveRate,
			}),
		}
		if cc.NotchFreq > 0 {
			f.Notch = squelch.NewNotchFilter(cc.NotchFreq, cc.NotchQ, WaveRate)
		}
		if cc.Bandwidth > 0 {
			// The complex lowpass runs per rail at the audio rate;
			// the configured bandwidth spans both sides of center.
			f.Lowpass = squelch.NewLowpassFilter(float64(cc.Bandwidth)/2.0, WaveRate)
		}
		ch.Freqs = append(ch.Freqs, f)
	}

	// The down-mix increment depends only on the offset from center,
	// which in scan mode is the same for every entry.
	ch.dmDphi = dmDphiFor(ch.Freqs[0].Frequency, centerFreq, sampleRate)

	if mod == ModNFM {
		if n := math.Round(WaveRate * 1e-6 * cc.TauUS); n > 0 {
			ch.alpha = float32(math.Exp(-1.0 / (WaveRate * 1e-6 * cc.TauUS)))
		}
	}

	sinks, iqSinks, err := buildOutputs(cc)
	if err != nil {
		return nil, err
	}
	ch.Outputs = sinks
	ch.IQOutputs = iqSinks
	ch.HasIQOutputs = len(iqSinks) > 0
	ch.NeedsRawIQ = mod == ModNFM || cc.Bandwidth > 0 || ch.HasIQOutputs
	if ch.NeedsRawIQ {
		ch.iqIn = make([]float32, 2*p.waveBufLen())
	}
	if ch.HasIQOutputs {
		ch.iqOut = make([]float32, 2*p.WaveBatch)
	}

	// Prime the history so the first batch has sane AGC context.
	for k := 0; k < p.AGCExtra; k++ {
		ch.wavein[k] = 20
		ch.waveout[k] = 0.5
	}
	ch.prevWaveout = 0.5

	return ch, nil
}

func buildOutputs(cc *ChannelConfig) ([]output.Sink, []output.IQWriter, error) {
	var sinks []output.Sink
	var iqSinks []output.IQWriter
	for i, oc := range cc.Outputs {
		switch oc.Type {
		case "file":
			s, err := output.NewFileSink(output.FileConfig{
				Directory:     oc.Directory,
				Template:      oc.Template,
				ChunkDuration: oc.Chunk,
				Continuous:    oc.Continuous,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("output %d: %w", i, err)
			}
			sinks = append(sinks, s)
		case "rawfile":
			s, err := output.NewFileSink(output.FileConfig{
				Directory:     oc.Directory,
				Template:      oc.Template,
				ChunkDuration: oc.Chunk,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("output %d: %w", i, err)
			}
			iqSinks = append(iqSinks, s)
		case "udp":
			s, err := output.NewUDPSink(output.UDPConfig{
				Address:   oc.Address,
				ChannelID: oc.ChannelID,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("output %d: %w", i, err)
			}
			sinks = append(sinks, s)
		case "audio":
			frames := oc.Frames
			if frames <= 0 {
				frames = DefaultWaveBatch
			}
			s, err := output.NewAudioSink(WaveRate, frames)
			if err != nil {
				return nil, nil, fmt.Errorf("output %d: %w", i, err)
			}
			sinks = append(sinks, s)
		default:
			return nil, nil, fmt.Errorf("output %d: unknown type %q", i, oc.Type)
		}
	}
	return sinks, iqSinks, nil
}

// Run starts every goroutine of the pipeline and blocks until ctx is
// cancelled and all of them have drained.
func (r *Radio) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	for _, dev := range r.Devices {
		dev := dev
		wg.Add(1)
		go func() {
			defer wg.Done()
			dev.Input.Run(ctx)
		}()
		if dev.Mode == ModeScan {
			wg.Add(1)
			go func() {
				defer wg.Done()
				r.runScanController(ctx, dev)
			}()
		}
	}

	sig := output.NewSignal()
	demod, err := NewDemodWorker(r, 0, len(r.Devices), sig)
	if err != nil {
		return err
	}
	out := NewOutputWorker(r, 0, len(r.Devices), sig)

	wg.Add(2)
	go func() {
		defer wg.Done()
		demod.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		out.Run(ctx)
	}()

	log.Info("pipeline running", "devices", len(r.Devices))
	<-ctx.Done()
	wg.Wait()
	return nil
}
