package dsp

import (
	"encoding/binary"
	"fmt"
	"math"
)

/*------------------------------------------------------------------
 *
 * Purpose:	Raw sample level conversion.
 *
 * 		Input drivers deliver interleaved I/Q in one of a few
 * 		integer or float encodings. Everything downstream works
 * 		on normalized float32 in [-1,1], so each device gets a
 * 		Converter that windows and normalizes one FFT block at
 * 		a time. The 8-bit paths go through a 256-entry lookup
 * 		table instead of doing the arithmetic per sample.
 *
 *----------------------------------------------------------------*/

// SampleFormat identifies the wire encoding of one I or Q value.
type SampleFormat int

const (
	FormatU8 SampleFormat = iota
	FormatS8
	FormatS16
	FormatF32
)

// ParseSampleFormat maps the config-file spelling to a SampleFormat.
func ParseSampleFormat(s string) (SampleFormat, error) {
	switch s {
	case "u8", "cu8":
		return FormatU8, nil
	case "s8", "cs8":
		return FormatS8, nil
	case "s16", "cs16":
		return FormatS16, nil
	case "f32", "cf32":
		return FormatF32, nil
	}
	return 0, fmt.Errorf("unknown sample format %q", s)
}

// BytesPerSample returns the byte width of one I or Q value.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case FormatU8, FormatS8:
		return 1
	case FormatS16:
		return 2
	case FormatF32:
		return 4
	}
	return 0
}

func (f SampleFormat) String() string {
	switch f {
	case FormatU8:
		return "u8"
	case FormatS8:
		return "s8"
	case FormatS16:
		return "s16"
	case FormatF32:
		return "f32"
	}
	return "undef"
}

// Converter normalizes raw device bytes into windowed complex samples.
type Converter struct {
	format SampleFormat
	scale  float32
	levels [256]float32
}

// NewConverter builds a converter for the given format. fullscale is the
// driver-reported full-scale value for the 16-bit and float paths.
func NewConverter(format SampleFormat, fullscale float32) *Converter {
	c := &Converter{format: format, scale: 1.0 / fullscale}
	switch format {
	case FormatU8:
		for i := 0; i < 256; i++ {
			c.levels[i] = (float32(i) - 127.5) / 127.5
		}
	case FormatS8:
		for i := int16(-127); i < 128; i++ {
			c.levels[uint8(i)] = float32(i) / 128.0
		}
	}
	return c
}

// Convert fills dst with one windowed FFT block taken from raw.
// raw must hold at least len(dst) interleaved I/Q pairs; window must be
// len(dst) coefficients. Integer samples are little endian.
func (c *Converter) Convert(dst []complex64, raw []byte, window []float32) {
	switch c.format {
	case FormatS16:
		for i := range dst {
			re := c.scale * float32(int16(binary.LittleEndian.Uint16(raw[4*i:]))) * window[i]
			im := c.scale * float32(int16(binary.LittleEndian.Uint16(raw[4*i+2:]))) * window[i]
			dst[i] = complex(re, im)
		}
	case FormatF32:
		for i := range dst {
			re := c.scale * math.Float32frombits(binary.LittleEndian.Uint32(raw[8*i:])) * window[i]
			im := c.scale * math.Float32frombits(binary.LittleEndian.Uint32(raw[8*i+4:])) * window[i]
			dst[i] = complex(re, im)
		}
	default: // U8 / S8 via lookup table
		for i := range dst {
			dst[i] = complex(c.levels[raw[2*i]]*window[i], c.levels[raw[2*i+1]]*window[i])
		}
	}
}
