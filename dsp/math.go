package dsp

import "math"

/*------------------------------------------------------------------
 *
 * Purpose:	Demodulation math: complex multiply, FM discriminators
 * 		and the fixed-point sine/cosine lookup used by the
 * 		down-mixer.
 *
 * 		The discriminator formulas and constants are the tuned
 * 		originals; do not "simplify" them.
 *
 *----------------------------------------------------------------*/

// PhaseBits is the width of the down-mix phase accumulator.
// Phase values are fixed point in the range 0..PhaseMask, where
// PhaseMask+1 corresponds to a full turn.
const (
	PhaseBits = 24
	PhaseMask = 1<<PhaseBits - 1
)

// Multiply returns the complex product (ar+j*aj) * (br+j*bj).
func Multiply(ar, aj, br, bj float32) (cr, cj float32) {
	cr = ar*br - aj*bj
	cj = aj*br + ar*bj
	return cr, cj
}

// FastAtan2 is a polynomial approximation of atan2, accurate to about
// 0.07 radians. Good enough for audio-rate FM and much cheaper than
// math.Atan2 in the per-sample loop.
func FastAtan2(y, x float32) float32 {
	const (
		pi4  = float32(math.Pi / 4.0)
		pi34 = float32(3.0 * math.Pi / 4.0)
	)
	if x == 0.0 && y == 0.0 {
		return 0
	}
	yabs := y
	if yabs < 0.0 {
		yabs = -yabs
	}
	var angle float32
	if x >= 0.0 {
		angle = pi4 - pi4*(x-yabs)/(x+yabs)
	} else {
		angle = pi34 - pi4*(x+yabs)/(yabs-x)
	}
	if y < 0.0 {
		return -angle
	}
	return angle
}

// PolarDiscFast is the fast-atan2 polar discriminator: the angle of
// a*conj(b), scaled to +/-1.0 for a full half-turn.
func PolarDiscFast(ar, aj, br, bj float32) float32 {
	cr, cj := Multiply(ar, aj, br, -bj)
	return FastAtan2(cj, cr) * float32(1.0/math.Pi)
}

// FMQuadriDemod is the quadricorrelator discriminator. Cheaper than the
// polar discriminator but slightly less linear at high deviation.
func FMQuadriDemod(ar, aj, br, bj float32) float32 {
	return (br*aj - ar*bj) / (ar*ar + aj*aj + 1.0) * float32(1.0/math.Pi)
}

// sinTableLen must be a power of two so phase-to-index is a shift.
const sinTableLen = 1 << 10

var sinTable [sinTableLen]float32

func init() {
	for i := range sinTable {
		sinTable[i] = float32(math.Sin(2.0 * math.Pi * float64(i) / sinTableLen))
	}
}

// SinCosPhase looks up sine and cosine for a 24-bit fixed-point phase.
// Only the top bits of the accumulator select the table entry; the
// resulting quantization is far below the audio noise floor.
func SinCosPhase(phi uint32) (sin, cos float32) {
	idx := (phi & PhaseMask) >> (PhaseBits - 10)
	sin = sinTable[idx]
	cos = sinTable[(idx+sinTableLen/4)&(sinTableLen-1)]
	return sin, cos
}

// LevelToDBFS converts a linear magnitude to dBFS for display.
func LevelToDBFS(level float32) float32 {
	return 20.0 * float32(math.Log10(float64(level)+1e-10))
}

// LevelFromDBFS converts a dBFS value to a linear magnitude.
func LevelFromDBFS(dbfs float32) float32 {
	return float32(math.Pow(10.0, float64(dbfs)/20.0))
}
