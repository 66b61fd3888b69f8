package input

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/boondock/airband/dsp"
)

/*------------------------------------------------------------------
 *
 * Purpose:	Raw I/Q capture replay driver.
 *
 * 		Reads a headerless interleaved I/Q file and feeds it
 * 		into the ring at real-time rate, optionally looping.
 * 		This is the stand-in for a hardware front end when
 * 		developing or replaying recorded spectrum.
 *
 *----------------------------------------------------------------*/

// FileConfig describes one replay stream.
type FileConfig struct {
	Path       string
	Format     dsp.SampleFormat
	FullScale  float32
	SampleRate int
	CenterFreq int
	Loop       bool
	// Throttle disables real-time pacing when false is wanted for
	// offline batch processing. Defaults to true (real-time).
	Throttle bool
}

// FileDriver replays a raw capture file.
type FileDriver struct {
	cfg        FileConfig
	centerFreq atomic.Int64
}

// NewFileDriver validates the config and returns a replay driver.
func NewFileDriver(cfg FileConfig) (*FileDriver, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("file input: sample_rate must be positive")
	}
	if cfg.FullScale <= 0 {
		return nil, fmt.Errorf("file input: fullscale must be positive")
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, fmt.Errorf("file input: %w", err)
	}
	d := &FileDriver{cfg: cfg}
	d.centerFreq.Store(int64(cfg.CenterFreq))
	return d, nil
}

func (d *FileDriver) Info() Info {
	return Info{
		Format:         d.cfg.Format,
		FullScale:      d.cfg.FullScale,
		BytesPerSample: d.cfg.Format.BytesPerSample(),
		SampleRate:     d.cfg.SampleRate,
		CenterFreq:     int(d.centerFreq.Load()),
	}
}

// SetCenterFreq records the requested frequency. Replay data obviously
// does not shift; this exists so scan-mode configs can be exercised
// against captures.
func (d *FileDriver) SetCenterFreq(hz int) error {
	d.centerFreq.Store(int64(hz))
	return nil
}

// Run feeds the capture into the ring in 20 ms slices.
func (d *FileDriver) Run(ctx context.Context, buf *Buffer, drop func(int)) error {
	f, err := os.Open(d.cfg.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	bytesPerSecond := 2 * d.cfg.Format.BytesPerSample() * d.cfg.SampleRate
	chunk := make([]byte, bytesPerSecond/50)

	var ticker *time.Ticker
	if d.cfg.Throttle {
		ticker = time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
	}

	for {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		n, err := io.ReadFull(f, chunk)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			if !d.cfg.Loop {
				log.Info("capture replay finished", "path", d.cfg.Path)
				return nil
			}
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		if !buf.Write(chunk[:n]) {
			drop(n)
		}
	}
}
