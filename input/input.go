package input

import (
	"context"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/boondock/airband/dsp"
)

/*------------------------------------------------------------------
 *
 * Purpose:	Device driver boundary.
 *
 * 		A Driver produces raw interleaved I/Q bytes into the
 * 		ring buffer and accepts blocking retune requests from
 * 		the scan controller. The Input wrapper owns the ring,
 * 		the driver state word and the overflow counter; it is
 * 		what the demodulator workers actually look at.
 *
 *----------------------------------------------------------------*/

// State is the lifecycle state of one input stream. Written by the
// driver goroutine, polled by the demodulator worker.
type State int32

const (
	StateInitialized State = iota
	StateRunning
	StateFailed
	StateStopped
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	case StateDisabled:
		return "disabled"
	}
	return "unknown"
}

// Info is the stream metadata a driver must report before starting.
type Info struct {
	Format         dsp.SampleFormat
	FullScale      float32
	BytesPerSample int
	SampleRate     int
	CenterFreq     int
}

// Driver is implemented by each I/Q source (file replay, synthetic
// tone generator, hardware front ends).
type Driver interface {
	Info() Info

	// SetCenterFreq retunes the front end. Blocking; bounded by the
	// driver's own timeout. Called from the scan controller only.
	SetCenterFreq(hz int) error

	// Run produces bytes into buf until ctx is cancelled or the
	// device fails. Dropped chunks are reported through drop.
	Run(ctx context.Context, buf *Buffer, drop func(bytes int)) error
}

// Input binds a driver to its ring buffer and bookkeeping.
type Input struct {
	Driver Driver
	Buffer *Buffer

	state     atomic.Int32
	Overflows atomic.Uint64
}

// NewInput wires a driver to a fresh ring buffer.
func NewInput(drv Driver, size, guard int) *Input {
	in := &Input{
		Driver: drv,
		Buffer: NewBuffer(size, guard),
	}
	in.state.Store(int32(StateInitialized))
	return in
}

func (in *Input) State() State     { return State(in.state.Load()) }
func (in *Input) SetState(s State) { in.state.Store(int32(s)) }
func (in *Input) Info() Info       { return in.Driver.Info() }

// Run drives the producer loop and keeps the state word in sync.
func (in *Input) Run(ctx context.Context) {
	in.SetState(StateRunning)
	err := in.Driver.Run(ctx, in.Buffer, func(bytes int) {
		in.Overflows.Add(1)
		log.Debug("input overflow", "bytes", bytes)
	})
	if err != nil && ctx.Err() == nil {
		log.Error("input stream failed", "err", err)
		in.SetState(StateFailed)
		return
	}
	in.SetState(StateStopped)
}
