package output

import "context"

/*------------------------------------------------------------------
 *
 * Purpose:	One-shot cross-thread batch notification.
 *
 * 		The demodulator sends exactly once per completed wave
 * 		batch; the output worker wakes up and drains every
 * 		device it is responsible for. Sends never block: if the
 * 		consumer has not woken up yet the pending notification
 * 		simply stays pending (batch overruns are counted at the
 * 		device, not here).
 *
 *----------------------------------------------------------------*/

// Signal is the batch-completed notification primitive.
type Signal struct {
	c chan struct{}
}

// NewSignal returns a ready-to-use Signal.
func NewSignal() *Signal {
	return &Signal{c: make(chan struct{}, 1)}
}

// Send posts one notification without blocking.
func (s *Signal) Send() {
	select {
	case s.c <- struct{}{}:
	default:
	}
}

// Wait blocks until a notification arrives or ctx is cancelled.
// Returns false on cancellation.
func (s *Signal) Wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-s.c:
		return true
	}
}
