package squelch

import "math"

/*------------------------------------------------------------------
 *
 * Purpose:	Post-demodulation IIR filters.
 *
 * 		NotchFilter kills a single audio tone (typically the
 * 		CTCSS tone so it does not reach the listener).
 * 		LowpassFilter narrows a channel's I/Q before NFM
 * 		demodulation; it runs one biquad per rail.
 *
 * 		Both are value types whose zero value is a disabled
 * 		pass-through, so the hot loop can apply them
 * 		unconditionally.
 *
 *----------------------------------------------------------------*/

type biquad struct {
	b0, b1, b2 float32
	a1, a2     float32
	x1, x2     float32
	y1, y2     float32
}

func (f *biquad) process(x float32) float32 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

// NotchFilter is a biquad notch at a fixed audio frequency.
type NotchFilter struct {
	enabled bool
	f       biquad
}

// NewNotchFilter builds a notch at notchHz with the given Q against
// sampleRate. Standard RBJ cookbook coefficients.
func NewNotchFilter(notchHz, q, sampleRate float64) *NotchFilter {
	w0 := 2.0 * math.Pi * notchHz / sampleRate
	alpha := math.Sin(w0) / (2.0 * q)
	cosw0 := math.Cos(w0)
	a0 := 1.0 + alpha

	return &NotchFilter{
		enabled: true,
		f: biquad{
			b0: float32(1.0 / a0),
			b1: float32(-2.0 * cosw0 / a0),
			b2: float32(1.0 / a0),
			a1: float32(-2.0 * cosw0 / a0),
			a2: float32((1.0 - alpha) / a0),
		},
	}
}

func (n *NotchFilter) Enabled() bool { return n != nil && n.enabled }

// Apply filters one audio sample; pass-through when disabled.
func (n *NotchFilter) Apply(s float32) float32 {
	if !n.Enabled() {
		return s
	}
	return n.f.process(s)
}

// LowpassFilter is a second-order Butterworth lowpass applied to the
// I and Q rails independently.
type LowpassFilter struct {
	enabled bool
	re, im  biquad
}

// NewLowpassFilter builds the filter with cutoffHz against sampleRate.
func NewLowpassFilter(cutoffHz, sampleRate float64) *LowpassFilter {
	w0 := 2.0 * math.Pi * cutoffHz / sampleRate
	alpha := math.Sin(w0) / (2.0 * math.Sqrt2 / 2.0)
	cosw0 := math.Cos(w0)
	a0 := 1.0 + alpha

	f := biquad{
		b0: float32((1.0 - cosw0) / 2.0 / a0),
		b1: float32((1.0 - cosw0) / a0),
		b2: float32((1.0 - cosw0) / 2.0 / a0),
		a1: float32(-2.0 * cosw0 / a0),
		a2: float32((1.0 - alpha) / a0),
	}
	return &LowpassFilter{enabled: true, re: f, im: f}
}

func (l *LowpassFilter) Enabled() bool { return l != nil && l.enabled }

// Apply filters one complex sample; pass-through when disabled.
func (l *LowpassFilter) Apply(re, im float32) (float32, float32) {
	if !l.Enabled() {
		return re, im
	}
	return l.re.process(re), l.im.process(im)
}
