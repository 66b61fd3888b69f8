package dsp

import "math"

/*------------------------------------------------------------------
 *
 * Purpose:	FFT input windowing.
 *
 * 		Every block of I/Q samples is multiplied by a 7-term
 * 		Blackman-Harris window before the forward transform.
 * 		The coefficients give ~180 dB of sidelobe rejection,
 * 		which keeps strong adjacent channels from leaking into
 * 		neighbouring bins.
 *
 *----------------------------------------------------------------*/

// BlackmanHarris7 returns the window coefficients for an FFT of length n.
// Computed once at startup and shared by all demodulator workers.
func BlackmanHarris7(n int) []float32 {
	const (
		a0 = 0.27105140069342
		a1 = 0.43329793923448
		a2 = 0.21812299954311
		a3 = 0.06592544638803
		a4 = 0.01081174209837
		a5 = 0.00077658482522
		a6 = 0.00001388721735
	)

	w := make([]float32, n)
	for i := 0; i < n; i++ {
		x := 2.0 * math.Pi * float64(i) / float64(n-1)
		v := a0 -
			a1*math.Cos(x) +
			a2*math.Cos(2.0*x) -
			a3*math.Cos(3.0*x) +
			a4*math.Cos(4.0*x) -
			a5*math.Cos(5.0*x) +
			a6*math.Cos(6.0*x)
		w[i] = float32(v)
	}
	return w
}
