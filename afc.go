package airband

/*------------------------------------------------------------------
 *
 * Purpose:	Automatic frequency control.
 *
 * 		Transmitters (and tuners) drift, so the bin a channel
 * 		was configured for is not always the bin the energy
 * 		lands in. When a transmission starts, AFC walks away
 * 		from the base bin one step at a time, downhill-never:
 * 		each step must beat the base bin's energy by a ratcheting
 * 		threshold, so noise cannot drag the channel off into a
 * 		neighbour. When the transmission ends the channel snaps
 * 		back to its base bin.
 *
 * 		The search runs once per wave batch at most, and only on
 * 		the no-signal-to-signal edge, so its cost is negligible.
 *
 *----------------------------------------------------------------*/

// afcState captures the channel's indicator before the demod loop
// resets it, so finalize can detect signal edges.
type afcState struct {
	ch   *Channel
	prev Indicator
}

func beginAFC(ch *Channel) afcState {
	return afcState{ch: ch, prev: ch.Indicator()}
}

// binEnergy returns the squared magnitude. The walk compares energies,
// not magnitudes; the ratchet thresholds are deltas and square-rooting
// first would change which steps clear them.
func binEnergy(fftout []complex64, bin int) float32 {
	v := fftout[bin]
	re, im := real(v), imag(v)
	return re*re + im*im
}

// afcWalk searches from base in direction step (+1 or -1) and returns
// the furthest bin whose energy keeps climbing fast enough. The first
// accepted step fixes the threshold at 1/afc of its gain over the base
// energy; every later step must clear a threshold that grows by 10%, so
// the walk terminates quickly on flat noise.
func afcWalk(fftout []complex64, base int, baseEnergy float32, afc uint8, step int) int {
	threshold := float32(0)
	bin := base
	for {
		next := bin + step
		if next < 0 || next >= len(fftout) {
			break
		}
		value := binEnergy(fftout, next)
		if value <= baseEnergy {
			break
		}
		if bin == base {
			threshold = (value - baseEnergy) / float32(afc)
		} else {
			if value-baseEnergy < threshold {
				break
			}
			threshold += threshold / 10.0
		}
		bin = next
	}
	return bin
}

// finalize runs after the demod loop for the batch, with fftout still
// holding the last FFT of the batch.
func (a afcState) finalize(dev *Device, index int, fftout []complex64) {
	ch := a.ch
	if ch.afc == 0 {
		return
	}
	cur := ch.Indicator()
	base := dev.baseBins[index]

	switch {
	case cur != NoSignal && a.prev == NoSignal:
		// Transmission just started: hunt for the true peak.
		baseEnergy := binEnergy(fftout, base)
		bin := afcWalk(fftout, base, baseEnergy, ch.afc, -1)
		if bin == base {
			bin = afcWalk(fftout, base, baseEnergy, ch.afc, +1)
		}

		// The arrow shows only on the batch that moved the bin;
		// later batches of the same transmission report plain
		// signal.
		if int(dev.bins[index].Load()) != bin {
			dev.bins[index].Store(int32(bin))
			if bin > base {
				ch.setIndicator(AFCUp)
			} else if bin < base {
				ch.setIndicator(AFCDown)
			}
		}

	case cur == NoSignal && a.prev != NoSignal:
		// Transmission ended: return to the configured bin.
		dev.bins[index].Store(int32(base))
	}
}
