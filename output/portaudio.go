package output

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

/*------------------------------------------------------------------
 *
 * Purpose:	Local audio playback sink via PortAudio.
 *
 * 		Opens one mono float32 stream on the default device at
 * 		the wave rate. Useful for listening to a channel while
 * 		setting up squelch thresholds.
 *
 *----------------------------------------------------------------*/

var paInitOnce sync.Once

// AudioSink plays batches on the default audio device.
type AudioSink struct {
	stream *portaudio.Stream
	frames int
	buf    []float32
}

// NewAudioSink opens the default playback device at sampleRate.
func NewAudioSink(sampleRate int, frames int) (*AudioSink, error) {
	var initErr error
	paInitOnce.Do(func() { initErr = portaudio.Initialize() })
	if initErr != nil {
		return nil, fmt.Errorf("audio output: %w", initErr)
	}

	s := &AudioSink{frames: frames, buf: make([]float32, frames)}
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), frames, &s.buf)
	if err != nil {
		return nil, fmt.Errorf("audio output: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("audio output: %w", err)
	}
	s.stream = stream
	return s, nil
}

func (s *AudioSink) Name() string { return "audio" }

// WriteSamples plays one wave batch, blocking at the device rate.
func (s *AudioSink) WriteSamples(samples []float32) error {
	for off := 0; off < len(samples); off += s.frames {
		end := off + s.frames
		if end > len(samples) {
			end = len(samples)
		}
		n := copy(s.buf, samples[off:end])
		for i := n; i < s.frames; i++ {
			s.buf[i] = 0
		}
		if err := s.stream.Write(); err != nil {
			return fmt.Errorf("audio output: %w", err)
		}
	}
	return nil
}

func (s *AudioSink) Close() error {
	if err := s.stream.Stop(); err != nil {
		return err
	}
	return s.stream.Close()
}
