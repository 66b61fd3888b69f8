package input

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boondock/airband/dsp"
)

func TestFileDriverReplay(t *testing.T) {
	// 10 exact 20 ms chunks at 8000 sps u8: chunk = 2*1*8000/50 = 320.
	data := make([]byte, 3200)
	for i := range data {
		data[i] = byte(i)
	}
	path := filepath.Join(t.TempDir(), "capture.cu8")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	drv, err := NewFileDriver(FileConfig{
		Path:       path,
		Format:     dsp.FormatU8,
		FullScale:  1.0,
		SampleRate: 8000,
		CenterFreq: 120_000_000,
		Throttle:   false,
	})
	require.NoError(t, err)

	in := NewInput(drv, 8192, 64)
	in.Run(context.Background())

	assert.Equal(t, StateStopped, in.State())
	assert.Equal(t, len(data), in.Buffer.Available())
	assert.Equal(t, data[:320], in.Buffer.View(0, 320))
	assert.Equal(t, uint64(0), in.Overflows.Load())
}

func TestFileDriverValidation(t *testing.T) {
	_, err := NewFileDriver(FileConfig{Path: "/nonexistent", FullScale: 1, SampleRate: 8000})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "x")
	require.NoError(t, os.WriteFile(path, []byte{0}, 0o644))
	_, err = NewFileDriver(FileConfig{Path: path, FullScale: 1, SampleRate: 0})
	assert.Error(t, err)
}

func TestFileDriverRetuneRecorded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x")
	require.NoError(t, os.WriteFile(path, []byte{0}, 0o644))
	drv, err := NewFileDriver(FileConfig{
		Path: path, FullScale: 1, SampleRate: 8000, CenterFreq: 100,
	})
	require.NoError(t, err)

	require.NoError(t, drv.SetCenterFreq(200))
	assert.Equal(t, 200, drv.Info().CenterFreq)
}

func TestToneDriverDC(t *testing.T) {
	// A tone at zero offset from center is a DC phasor: re=1, im=0
	// plus the configured noise bias.
	d := NewToneDriver(ToneConfig{
		SampleRate: 8000,
		CenterFreq: 1000,
		Tones:      []Tone{{OffsetHz: 0, Amplitude: 1.0}},
		NoiseFloor: 0.25,
	})

	chunk := make([]byte, 8*16)
	d.fill(chunk, 16)
	for s := 0; s < 16; s++ {
		re := math.Float32frombits(binary.LittleEndian.Uint32(chunk[8*s:]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(chunk[8*s+4:]))
		assert.InDelta(t, 1.25, float64(re), 1e-6, "sample %d", s)
		assert.InDelta(t, 0.25, float64(im), 1e-6, "sample %d", s)
	}
}
