package airband

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/boondock/airband/dsp"
)

/*------------------------------------------------------------------
 *
 * Purpose:	YAML configuration schema, validation and the numeric
 * 		derivations that turn a configured frequency into an
 * 		FFT bin and a down-mix phase increment.
 *
 * 		Everything that can be rejected, is rejected at load
 * 		time: a channel outside the tuned passband, a sample
 * 		rate below the audio rate, an unknown modulation. The
 * 		workers assume a validated config.
 *
 *----------------------------------------------------------------*/

// Frequency is a frequency in Hz. In YAML it accepts a plain integer
// (Hz), a float (MHz), or a string with a k/M suffix: 118300000,
// 118.3, "118.3M" and "8333k" are equivalent spellings.
type Frequency int

func (f *Frequency) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("frequency: expected scalar, got %v", value.Kind)
	}
	hz, err := ParseFrequency(value.Value)
	if err != nil {
		return err
	}
	*f = Frequency(hz)
	return nil
}

// ParseFrequency parses the frequency spellings accepted in configs.
func ParseFrequency(s string) (int, error) {
	s = strings.TrimSpace(s)
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "M"):
		mult = 1e6
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "k"), strings.HasSuffix(s, "K"):
		mult = 1e3
		s = s[:len(s)-1]
	case strings.Contains(s, "."):
		// Bare decimals read as MHz, the common airband spelling.
		mult = 1e6
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("frequency: cannot parse %q", s)
	}
	hz := v * mult
	if hz < 0 || hz != math.Trunc(hz) && mult == 1.0 {
		return 0, fmt.Errorf("frequency: %q is not a whole number of Hz", s)
	}
	return int(math.Round(hz)), nil
}

// Config is the top-level file schema.
type Config struct {
	FFTSizeLog      int            `yaml:"fft_size_log"`
	FFTBackend      string         `yaml:"fft_backend"`
	FMDemod         string         `yaml:"fm_demod"`
	LogScanActivity bool           `yaml:"log_scan_activity"`
	Monitor         MonitorConfig  `yaml:"monitor"`
	Devices         []DeviceConfig `yaml:"devices"`
}

// MonitorConfig enables the HTTP status server.
type MonitorConfig struct {
	Listen   string `yaml:"listen"`
	Spectrum bool   `yaml:"spectrum"`
}

// DeviceConfig describes one input stream and its channels.
type DeviceConfig struct {
	Type       string    `yaml:"type"` // "file" or "tone"
	Mode       string    `yaml:"mode"` // "multichannel" (default) or "scan"
	CenterFreq Frequency `yaml:"centerfreq"`
	SampleRate int       `yaml:"sample_rate"`
	BufferSize int       `yaml:"buffer_size"`

	// file driver
	FilePath  string  `yaml:"file_path"`
	Format    string  `yaml:"format"`
	FullScale float32 `yaml:"fullscale"`
	Loop      bool    `yaml:"loop"`

	// tone driver
	Tones      []ToneSpec `yaml:"tones"`
	NoiseFloor float32    `yaml:"noise_floor"`

	Channels []ChannelConfig `yaml:"channels"`
}

// ToneSpec is one synthetic carrier for the tone driver.
type ToneSpec struct {
	Offset    Frequency `yaml:"offset"`
	Amplitude float32   `yaml:"amplitude"`
}

// ChannelConfig describes one channel. Multichannel devices set freq;
// scan devices set freqs.
type ChannelConfig struct {
	Freq  Frequency  `yaml:"freq"`
	Label string     `yaml:"label"`
	Freqs []FreqSpec `yaml:"freqs"`

	Modulation string        `yaml:"modulation"` // "am" (default) or "nfm"
	Squelch    SquelchConfig `yaml:"squelch"`
	AFC        uint8         `yaml:"afc"`
	NotchFreq  float64       `yaml:"notch"`
	NotchQ     float64       `yaml:"notch_q"`
	Bandwidth  int           `yaml:"bandwidth"` // lowpass cutoff in Hz, 0 = off
	CTCSS      float64       `yaml:"ctcss"`
	AmpFactor  float32       `yaml:"ampfactor"`
	TauUS      float64       `yaml:"tau"` // NFM de-emphasis, microseconds

	Outputs []OutputConfig `yaml:"outputs"`
}

// FreqSpec is one scan-list entry.
type FreqSpec struct {
	Freq  Frequency `yaml:"freq"`
	Label string    `yaml:"label"`
}

// SquelchConfig exposes the squelch knobs; zero values mean automatic.
type SquelchConfig struct {
	SNRThreshold float32 `yaml:"snr_threshold"` // dB over noise floor
	ManualLevel  float32 `yaml:"manual_level"`  // linear bin level, 0 = auto
	OpenDelay    int     `yaml:"open_delay"`    // samples
	CloseDelay   int     `yaml:"close_delay"`   // samples
}

// OutputConfig is one sink. Type selects which field group applies.
type OutputConfig struct {
	Type string `yaml:"type"` // "file", "rawfile", "udp", "audio"

	// file
	Directory  string        `yaml:"directory"`
	Template   string        `yaml:"template"`
	Chunk      time.Duration `yaml:"chunk"`
	Continuous bool          `yaml:"continuous"`

	// udp
	Address   string `yaml:"address"`
	ChannelID uint32 `yaml:"channel_id"`

	// audio
	Frames int `yaml:"frames"`
}

// LoadConfig reads, parses and validates a config file. Unknown keys
// are errors; typos in a channel definition should not silently tune
// the wrong frequency.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate applies defaults and rejects anything the pipeline cannot
// run with.
func (c *Config) Validate() error {
	if c.FFTSizeLog == 0 {
		c.FFTSizeLog = DefaultFFTSizeLog
	}
	if c.FFTSizeLog < 4 || c.FFTSizeLog > 16 {
		return fmt.Errorf("fft_size_log %d out of range [4,16]", c.FFTSizeLog)
	}
	switch c.FMDemod {
	case "", "atan2", "quadri":
	default:
		return fmt.Errorf("fm_demod %q: want atan2 or quadri", c.FMDemod)
	}
	if len(c.Devices) == 0 {
		return fmt.Errorf("no devices configured")
	}
	for i := range c.Devices {
		if err := c.Devices[i].validate(); err != nil {
			return fmt.Errorf("device %d: %w", i, err)
		}
	}
	return nil
}

func (d *DeviceConfig) validate() error {
	switch d.Type {
	case "file":
		if d.FilePath == "" {
			return fmt.Errorf("file_path required")
		}
		if _, err := dsp.ParseSampleFormat(d.Format); err != nil {
			return err
		}
		if d.FullScale == 0 {
			d.FullScale = 1.0
		}
	case "tone":
		if len(d.Tones) == 0 {
			return fmt.Errorf("tone device needs at least one tone")
		}
	default:
		return fmt.Errorf("unknown device type %q", d.Type)
	}

	if d.SampleRate < WaveRate {
		return fmt.Errorf("sample_rate %d below audio rate %d", d.SampleRate, WaveRate)
	}
	if len(d.Channels) == 0 {
		return fmt.Errorf("no channels")
	}

	switch d.Mode {
	case "", "multichannel":
		d.Mode = "multichannel"
		for i := range d.Channels {
			ch := &d.Channels[i]
			if len(ch.Freqs) > 0 {
				return fmt.Errorf("channel %d: freqs list is scan-mode only", i)
			}
			if ch.Freq == 0 {
				return fmt.Errorf("channel %d: freq required", i)
			}
			if !inPassband(int(ch.Freq), int(d.CenterFreq), d.SampleRate) {
				return fmt.Errorf("channel %d: %d Hz outside passband of %d Hz @ %d sps",
					i, int(ch.Freq), int(d.CenterFreq), d.SampleRate)
			}
		}
	case "scan":
		if len(d.Channels) != 1 {
			return fmt.Errorf("scan mode takes exactly one channel, got %d", len(d.Channels))
		}
		ch := &d.Channels[0]
		if ch.Freq != 0 {
			return fmt.Errorf("scan channel: use freqs, not freq")
		}
		if len(ch.Freqs) == 0 {
			return fmt.Errorf("scan channel: empty freqs list")
		}
	default:
		return fmt.Errorf("unknown mode %q", d.Mode)
	}

	for i := range d.Channels {
		if err := d.Channels[i].validate(); err != nil {
			return fmt.Errorf("channel %d: %w", i, err)
		}
	}
	return nil
}

func (ch *ChannelConfig) validate() error {
	switch ch.Modulation {
	case "", "am":
		ch.Modulation = "am"
	case "nfm":
		if ch.TauUS == 0 {
			ch.TauUS = 200
		}
	default:
		return fmt.Errorf("unknown modulation %q", ch.Modulation)
	}
	if ch.AmpFactor == 0 {
		ch.AmpFactor = 1.0
	}
	if ch.NotchFreq != 0 && ch.NotchQ == 0 {
		ch.NotchQ = 10.0
	}
	for i, o := range ch.Outputs {
		switch o.Type {
		case "file", "rawfile":
			if o.Template == "" {
				return fmt.Errorf("output %d: file template required", i)
			}
		case "udp":
			if o.Address == "" {
				return fmt.Errorf("output %d: udp address required", i)
			}
		case "audio":
		default:
			return fmt.Errorf("output %d: unknown type %q", i, o.Type)
		}
	}
	return nil
}

func inPassband(freq, center, sampleRate int) bool {
	return freq >= center-sampleRate/2 && freq <= center+sampleRate/2
}

// binForFrequency maps a channel frequency to its FFT bin for the
// given tuning. Frequencies below center land in the upper half of the
// spectrum (negative frequencies alias upward), hence the +sampleRate
// bias before the modulo.
func binForFrequency(freq, centerFreq, sampleRate, fftSize int) int {
	binWidth := float64(sampleRate) / float64(fftSize)
	bin := int(math.Ceil(float64(freq+sampleRate-centerFreq)/binWidth - 1.0))
	return ((bin % fftSize) + fftSize) % fftSize
}

// dmDphiFor computes the per-sample 24-bit fixed-point phase increment
// that undoes the residual rotation a channel picks up from the
// sliding FFT window. When the decimation ratio sampleRate/WaveRate is
// not an integer the window slide is rounded, which detunes the
// rotation slightly; the correction term scales with the channel's
// offset from center.
func dmDphiFor(freq, centerFreq, sampleRate int) uint32 {
	delta := float64(freq - centerFreq)
	decim := float64(sampleRate) / float64(WaveRate)
	correction := (float64(WaveRate) / 2.0) * (decim - math.Round(decim)) * (delta / (float64(sampleRate) / 2.0))

	dphi := (delta - correction) / float64(WaveRate)
	dphi -= math.Trunc(dphi)
	dphi *= 256.0 * 65536.0
	return uint32(int(dphi)) & dsp.PhaseMask
}

// bufferSizeFor sizes a device's input ring: at least MinBufSize,
// rounded up to a whole number of FFT-batch footprints so the consumer
// always advances by a divisor of the buffer size, plus the guard that
// mirrors the wrap for contiguous window reads.
func bufferSizeFor(requested, sampleRate, bytesPerSample, fftSize, fftBatch int) (size, guard int) {
	bps := 2 * bytesPerSample * int(math.Round(float64(sampleRate)/float64(WaveRate)))
	batchLen := fftBatch * bps

	size = requested
	if size < MinBufSize {
		size = MinBufSize
	}
	if rem := size % batchLen; rem != 0 {
		size += batchLen - rem
	}
	guard = 2 * bytesPerSample * fftSize
	return size, guard
}
