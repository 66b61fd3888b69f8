package airband

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/boondock/airband/output"
)

/*------------------------------------------------------------------
 *
 * Purpose:	Scan controller.
 *
 * 		A device in scan mode has one channel with a list of
 * 		frequencies. The controller polls the channel's signal
 * 		indicator at a fixed cadence; after enough consecutive
 * 		silent polls it retunes the device to the next entry.
 * 		While a transmission is in progress the counter stays at
 * 		zero, so the controller parks on the active frequency
 * 		until it goes quiet.
 *
 * 		The tuned center frequency is offset from the channel
 * 		frequency by a fixed number of bins, which keeps the
 * 		extraction bin (and the down-mix increment) the same for
 * 		every entry and pushes the DC spike away from the
 * 		channel.
 *
 *----------------------------------------------------------------*/

const (
	// DefaultScanPoll is the production indicator poll interval.
	DefaultScanPoll = 200 * time.Millisecond

	// scanNoSignalPolls is how many consecutive silent polls trigger
	// a hop.
	scanNoSignalPolls = 10

	// scanTuneBinOffset is the bin distance between the tuned center
	// frequency and the scanned channel.
	scanTuneBinOffset = 20
)

// scanTuneFreq is the hardware center frequency for a scan entry.
func scanTuneFreq(frequency, sampleRate, fftSize int) int {
	return frequency + scanTuneBinOffset*(sampleRate/fftSize)
}

// scanState is one device's controller state between polls.
type scanState struct {
	noSignal int
}

// poll runs one controller step for dev. A retune failure is returned
// and ends the controller for this device.
func (s *scanState) poll(r *Radio, dev *Device) error {
	ch := dev.Channels[0]
	idx := ch.FreqIdx()
	f := ch.Freqs[idx]

	if ch.Indicator() != NoSignal {
		s.noSignal = 0
		if idx != dev.lastFrequency {
			dev.lastFrequency = idx
			dev.Tags.Put(output.Tag{
				FreqIdx:   idx,
				Frequency: f.Frequency,
				Label:     f.Label,
				Time:      time.Now(),
			})
			if r.LogScanActivity {
				log.Info("scan activity", "device", dev.Index,
					"freq", f.Frequency, "label", f.Label)
			}
		}
		return nil
	}

	s.noSignal++
	if s.noSignal < scanNoSignalPolls {
		return nil
	}
	s.noSignal = 0

	next := (idx + 1) % len(ch.Freqs)
	info := dev.Input.Info()
	tune := scanTuneFreq(ch.Freqs[next].Frequency, info.SampleRate, r.Params.FFTSize)
	if err := dev.Input.Driver.SetCenterFreq(tune); err != nil {
		return fmt.Errorf("device %d: retune to %d: %w", dev.Index, tune, err)
	}
	ch.SetFreqIdx(next)
	return nil
}

// runScanController drives one scan-mode device until ctx ends or a
// retune fails.
func (r *Radio) runScanController(ctx context.Context, dev *Device) {
	interval := dev.ScanPoll
	if interval <= 0 {
		interval = DefaultScanPoll
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var st scanState
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := st.poll(r, dev); err != nil {
				log.Error("scan controller stopped", "err", err)
				return
			}
		}
	}
}
