package output

import "time"

/*------------------------------------------------------------------
 *
 * Purpose:	Output sink contracts.
 *
 * 		The core hands each sink one wave batch of mono float32
 * 		audio at a time. Sinks that also want the raw
 * 		(down-mix-corrected) I/Q implement IQWriter; sinks that
 * 		care about scan-activity metadata implement TagWriter.
 *
 *----------------------------------------------------------------*/

// Sink receives demodulated audio, one wave batch per call.
type Sink interface {
	Name() string
	WriteSamples(samples []float32) error
	Close() error
}

// IQWriter is implemented by sinks that consume raw I/Q alongside (or
// instead of) audio. iq is interleaved re/im pairs, one pair per audio
// sample.
type IQWriter interface {
	WriteIQ(iq []float32) error
}

// Tag is one scan-activity event: the controller saw squelch open on a
// new frequency.
type Tag struct {
	FreqIdx   int
	Frequency int
	Label     string
	Time      time.Time
}

// TagWriter is implemented by sinks that record or forward metadata.
type TagWriter interface {
	WriteTag(tag Tag) error
}
