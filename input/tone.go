package input

import (
	"context"
	"encoding/binary"
	"math"
	"sync/atomic"
	"time"

	"github.com/boondock/airband/dsp"
)

/*------------------------------------------------------------------
 *
 * Purpose:	Synthetic carrier generator.
 *
 * 		Produces float32 I/Q containing one or more unmodulated
 * 		carriers at fixed offsets from the tuned center
 * 		frequency. Handy for squelch and AFC bring-up without
 * 		any radio attached: a carrier parks energy in a known
 * 		FFT bin.
 *
 *----------------------------------------------------------------*/

// Tone is one synthetic carrier.
type Tone struct {
	OffsetHz  int     // offset from center frequency
	Amplitude float32 // 0..1
}

// ToneConfig describes a synthetic stream.
type ToneConfig struct {
	SampleRate int
	CenterFreq int
	Tones      []Tone
	// NoiseFloor adds a small constant bias so squelch noise
	// tracking has something to chew on.
	NoiseFloor float32
}

// ToneDriver synthesizes I/Q at real-time rate.
type ToneDriver struct {
	cfg        ToneConfig
	centerFreq atomic.Int64
	phase      []float64
}

func NewToneDriver(cfg ToneConfig) *ToneDriver {
	d := &ToneDriver{cfg: cfg, phase: make([]float64, len(cfg.Tones))}
	d.centerFreq.Store(int64(cfg.CenterFreq))
	return d
}

func (d *ToneDriver) Info() Info {
	return Info{
		Format:         dsp.FormatF32,
		FullScale:      1.0,
		BytesPerSample: 4,
		SampleRate:     d.cfg.SampleRate,
		CenterFreq:     int(d.centerFreq.Load()),
	}
}

func (d *ToneDriver) SetCenterFreq(hz int) error {
	d.centerFreq.Store(int64(hz))
	return nil
}

func (d *ToneDriver) Run(ctx context.Context, buf *Buffer, drop func(int)) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	samplesPerTick := d.cfg.SampleRate / 50
	chunk := make([]byte, 8*samplesPerTick)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		d.fill(chunk, samplesPerTick)
		if !buf.Write(chunk) {
			drop(len(chunk))
		}
	}
}

func (d *ToneDriver) fill(chunk []byte, samples int) {
	center := float64(d.centerFreq.Load())
	for s := 0; s < samples; s++ {
		re := d.cfg.NoiseFloor
		im := d.cfg.NoiseFloor
		for i, t := range d.cfg.Tones {
			// The tone stays at a fixed absolute frequency, so
			// retuning moves it to a different bin.
			f := float64(t.OffsetHz) + float64(d.cfg.CenterFreq) - center
			d.phase[i] += 2.0 * math.Pi * f / float64(d.cfg.SampleRate)
			if d.phase[i] > 2.0*math.Pi {
				d.phase[i] -= 2.0 * math.Pi
			}
			re += t.Amplitude * float32(math.Cos(d.phase[i]))
			im += t.Amplitude * float32(math.Sin(d.phase[i]))
		}
		binary.LittleEndian.PutUint32(chunk[8*s:], math.Float32bits(re))
		binary.LittleEndian.PutUint32(chunk[8*s+4:], math.Float32bits(im))
	}
}
