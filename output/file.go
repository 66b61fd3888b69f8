package output

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

/*------------------------------------------------------------------
 *
 * Purpose:	Rotating raw-audio file sink.
 *
 * 		Writes float32 little-endian mono PCM into files named
 * 		from an strftime template, rotating on a fixed chunk
 * 		duration aligned to the wall clock. Parent directories
 * 		are created on demand, so templates like
 * 		"%Y/%m/%d/tower_%H%M.cf32" produce dated subdirectories.
 *
 *----------------------------------------------------------------*/

// FileConfig configures one rotating file sink.
type FileConfig struct {
	Directory string
	// Template is an strftime pattern for the file path below
	// Directory.
	Template string
	// ChunkDuration is the rotation period. Zero means one hour.
	ChunkDuration time.Duration
	// Continuous keeps writing squelch-closed silence between
	// transmissions; when false, all-zero batches are skipped so
	// idle channels do not grow files.
	Continuous bool
}

// FileSink implements Sink and TagWriter on rotating files.
type FileSink struct {
	cfg        FileConfig
	pattern    *strftime.Strftime
	f          *os.File
	chunkStart time.Time
	now        func() time.Time
}

// NewFileSink validates the template and returns the sink. No file is
// opened until the first batch arrives.
func NewFileSink(cfg FileConfig) (*FileSink, error) {
	if cfg.ChunkDuration <= 0 {
		cfg.ChunkDuration = time.Hour
	}
	p, err := strftime.New(cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("file output: bad template %q: %w", cfg.Template, err)
	}
	return &FileSink{cfg: cfg, pattern: p, now: time.Now}, nil
}

func (s *FileSink) Name() string { return "file:" + s.cfg.Template }

func (s *FileSink) rotate(now time.Time) error {
	if s.f != nil {
		if now.Sub(s.chunkStart) < s.cfg.ChunkDuration {
			return nil
		}
		s.f.Close()
		s.f = nil
	}

	path := filepath.Join(s.cfg.Directory, s.pattern.FormatString(now))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("file output: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("file output: %w", err)
	}
	log.Info("opened output file", "path", path)
	s.f = f
	s.chunkStart = now.Truncate(s.cfg.ChunkDuration)
	return nil
}

// WriteSamples appends one wave batch.
func (s *FileSink) WriteSamples(samples []float32) error {
	if !s.cfg.Continuous && allZero(samples) {
		return nil
	}
	if err := s.rotate(s.now()); err != nil {
		return err
	}
	return binary.Write(s.f, binary.LittleEndian, samples)
}

// WriteIQ appends raw down-mix-corrected I/Q as interleaved float32
// pairs. No silence skipping: squelch-closed pairs arrive as zeros and
// keeping them preserves the time axis of the capture.
func (s *FileSink) WriteIQ(iq []float32) error {
	if err := s.rotate(s.now()); err != nil {
		return err
	}
	return binary.Write(s.f, binary.LittleEndian, iq)
}

// WriteTag drops a small sidecar line next to the audio so recordings
// from scan-mode devices can be attributed to a frequency later.
func (s *FileSink) WriteTag(tag Tag) error {
	if err := s.rotate(s.now()); err != nil {
		return err
	}
	path := s.f.Name() + ".tags"
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%s\t%d\t%s\n", tag.Time.Format(time.RFC3339), tag.Frequency, tag.Label)
	return err
}

func (s *FileSink) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func allZero(samples []float32) bool {
	for _, v := range samples {
		if v != 0 {
			return false
		}
	}
	return true
}
