package squelch

import "math"

/*------------------------------------------------------------------
 *
 * Purpose:	Single-bin tone power via the Goertzel algorithm.
 *
 * 		Used by the CTCSS detector: one detector sits on the
 * 		configured sub-audible tone, two more sit on neighbour
 * 		frequencies as a noise reference.
 *
 *----------------------------------------------------------------*/

type goertzel struct {
	coeff float64
	q1    float64
	q2    float64
	n     int
	size  int
	power float64
}

// newGoertzel prepares a detector for the given tone at the given
// sample rate, integrating over size samples per measurement.
func newGoertzel(toneHz, sampleRate float64, size int) *goertzel {
	k := 0.5 + float64(size)*toneHz/sampleRate
	w := 2.0 * math.Pi * math.Floor(k) / float64(size)
	return &goertzel{coeff: 2.0 * math.Cos(w), size: size}
}

// feed accumulates one audio sample; returns true when a full window
// has been integrated and power() holds a fresh measurement.
func (g *goertzel) feed(s float64) bool {
	q0 := g.coeff*g.q1 - g.q2 + s
	g.q2 = g.q1
	g.q1 = q0
	g.n++
	if g.n < g.size {
		return false
	}
	g.power = g.q1*g.q1 + g.q2*g.q2 - g.coeff*g.q1*g.q2
	g.q1, g.q2, g.n = 0, 0, 0
	return true
}
