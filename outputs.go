package airband

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/boondock/airband/output"
)

/*------------------------------------------------------------------
 *
 * Purpose:	Output stage: drains completed wave batches to sinks.
 *
 * 		One output worker pairs with one demod worker over the
 * 		same device range. The demod side publishes a batch by
 * 		setting the device's single-slot flag and poking the
 * 		signal; this side swaps the flag back and writes. If a
 * 		batch is still pending when the next completes, the
 * 		demod side overwrote it and counted an overrun; nothing
 * 		blocks.
 *
 * 		Sink write errors are logged and the sink is kept; a
 * 		flaky network destination must not take down recording
 * 		to disk on the same channel.
 *
 *----------------------------------------------------------------*/

// OutputWorker drains devices [deviceStart, deviceEnd).
type OutputWorker struct {
	radio       *Radio
	deviceStart int
	deviceEnd   int
	signal      *output.Signal
}

// NewOutputWorker pairs with the demod worker sharing sig.
func NewOutputWorker(r *Radio, deviceStart, deviceEnd int, sig *output.Signal) *OutputWorker {
	return &OutputWorker{radio: r, deviceStart: deviceStart, deviceEnd: deviceEnd, signal: sig}
}

// Run drains batches until ctx is cancelled, then closes the sinks.
func (w *OutputWorker) Run(ctx context.Context) {
	for w.signal.Wait(ctx) {
		for _, dev := range w.radio.Devices[w.deviceStart:w.deviceEnd] {
			w.drain(dev)
		}
	}
	for _, dev := range w.radio.Devices[w.deviceStart:w.deviceEnd] {
		closeOutputs(dev)
	}
}

// drain writes one pending batch for dev, if any.
func (w *OutputWorker) drain(dev *Device) {
	if dev.waveavail.Swap(0) == 0 {
		return
	}
	p := w.radio.Params

	// Scan-activity tags go out before the audio they annotate.
	tags := dev.Tags.Drain()

	for _, ch := range dev.Channels {
		samples := ch.waveout[p.AGCExtra : p.AGCExtra+p.WaveBatch]
		for _, sink := range ch.Outputs {
			for _, t := range tags {
				if tw, ok := sink.(output.TagWriter); ok {
					if err := tw.WriteTag(t); err != nil {
						log.Warn("tag write failed", "sink", sink.Name(), "err", err)
					}
				}
			}
			if err := sink.WriteSamples(samples); err != nil {
				log.Warn("output write failed", "sink", sink.Name(), "err", err)
			}
		}
		if ch.HasIQOutputs {
			iq := ch.iqOut[:2*p.WaveBatch]
			for _, iqw := range ch.IQOutputs {
				if err := iqw.WriteIQ(iq); err != nil {
					log.Warn("iq write failed", "err", err)
				}
			}
		}
	}
}
