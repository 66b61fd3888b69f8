package dsp

import (
	"fmt"
	"math"
	"math/bits"

	godsp "github.com/mjibson/go-dsp/fft"
)

/*------------------------------------------------------------------
 *
 * Purpose:	Forward FFT behind a narrow strategy interface.
 *
 * 		The rest of the pipeline (bin extraction, AFC, down-mix)
 * 		only ever sees Transform(dst, src), so the backend can be
 * 		swapped at runtime without touching the demodulators.
 *
 *----------------------------------------------------------------*/

// FFT performs forward transforms of a fixed, power-of-two size.
// Implementations are not safe for concurrent use; each demodulator
// worker owns its own instance.
type FFT interface {
	Size() int
	// Transform computes the forward DFT of src into dst.
	// len(src) and len(dst) must equal Size().
	Transform(dst, src []complex64)
}

// NewFFT returns an FFT engine of the given backend. Known backends are
// "radix2" (in-process float32 Cooley-Tukey, the default) and "godsp"
// (go-dsp, float64). Size must be a power of two.
func NewFFT(backend string, size int) (FFT, error) {
	if size < 2 || size&(size-1) != 0 {
		return nil, fmt.Errorf("fft: size %d is not a power of two", size)
	}
	switch backend {
	case "", "radix2":
		return newRadix2(size), nil
	case "godsp":
		return &godspFFT{size: size, in: make([]complex128, size)}, nil
	}
	return nil, fmt.Errorf("fft: unknown backend %q", backend)
}

// godspFFT adapts github.com/mjibson/go-dsp/fft. It carries the
// float32 <-> float64 conversion cost but is useful as a reference
// backend and for odd platforms.
type godspFFT struct {
	size int
	in   []complex128
}

func (f *godspFFT) Size() int { return f.size }

func (f *godspFFT) Transform(dst, src []complex64) {
	for i, s := range src {
		f.in[i] = complex128(s)
	}
	out := godsp.FFT(f.in)
	for i, s := range out {
		dst[i] = complex64(s)
	}
}

// radix2FFT is an iterative in-place Cooley-Tukey transform on
// complex64 with precomputed twiddle factors.
type radix2FFT struct {
	size    int
	log2n   int
	rev     []int
	twiddle []complex64
}

func newRadix2(size int) *radix2FFT {
	log2n := bits.TrailingZeros(uint(size))

	rev := make([]int, size)
	for i := range rev {
		rev[i] = int(bits.Reverse32(uint32(i)) >> (32 - log2n))
	}

	tw := make([]complex64, size/2)
	for i := range tw {
		a := -2.0 * math.Pi * float64(i) / float64(size)
		tw[i] = complex(float32(math.Cos(a)), float32(math.Sin(a)))
	}

	return &radix2FFT{size: size, log2n: log2n, rev: rev, twiddle: tw}
}

func (f *radix2FFT) Size() int { return f.size }

func (f *radix2FFT) Transform(dst, src []complex64) {
	for i, r := range f.rev {
		dst[i] = src[r]
	}
	for span := 1; span < f.size; span <<= 1 {
		step := f.size / (2 * span)
		for start := 0; start < f.size; start += 2 * span {
			for k := 0; k < span; k++ {
				w := f.twiddle[k*step]
				a := dst[start+k]
				b := dst[start+k+span] * w
				dst[start+k] = a + b
				dst[start+k+span] = a - b
			}
		}
	}
}
