package input

import "sync"

/*------------------------------------------------------------------
 *
 * Purpose:	Single-producer / single-consumer byte ring between a
 * 		device driver and its demodulator worker.
 *
 * 		This is deliberately not a general lock-free queue. The
 * 		driver goroutine is the only writer of the write cursor,
 * 		the demodulator the only writer of the read cursor, and
 * 		the producer never overwrites unconsumed bytes. The
 * 		mutex therefore protects nothing but the two-cursor read
 * 		needed to compute the available byte count; the bulk
 * 		copies happen outside it.
 *
 * 		A guard region of `guard` bytes past the nominal end
 * 		mirrors the first `guard` bytes of the ring, so a
 * 		consumer whose FFT window extends past the wrap point
 * 		always gets a contiguous slice.
 *
 *----------------------------------------------------------------*/

// Buffer is the SPSC byte ring shared by one driver and one consumer.
type Buffer struct {
	mu    sync.Mutex
	buf   []byte
	size  int
	guard int
	rs    int // read cursor, advanced only by the consumer
	we    int // write cursor, advanced only by the producer
}

// NewBuffer allocates a ring of the given size plus a mirror guard.
// size should be a multiple of the consumer's batch footprint so batch
// reads never straddle the wrap point by more than the guard.
func NewBuffer(size, guard int) *Buffer {
	return &Buffer{
		buf:   make([]byte, size+guard),
		size:  size,
		guard: guard,
	}
}

// Size returns the nominal ring capacity in bytes.
func (b *Buffer) Size() int { return b.size }

// Available returns the number of committed, unconsumed bytes.
func (b *Buffer) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.we >= b.rs {
		return b.we - b.rs
	}
	return b.size - b.rs + b.we
}

// Write appends p to the ring and reports whether it fit. A chunk that
// would overwrite unconsumed data is dropped whole; the caller counts
// the overflow. Only the producer goroutine may call Write.
func (b *Buffer) Write(p []byte) bool {
	if len(p) >= b.size-b.Available() {
		return false
	}

	we := b.we
	n := copy(b.buf[we:b.size], p)
	if n < len(p) {
		copy(b.buf, p[n:])
	}

	// Refresh the mirror so reads crossing the wrap point stay
	// contiguous, but only for the bytes this write landed inside
	// [0, guard): rewriting the whole guard would touch mirror
	// bytes of committed data a concurrent View may be reading.
	if we < b.guard {
		end := we + n
		if end > b.guard {
			end = b.guard
		}
		copy(b.buf[b.size+we:b.size+end], b.buf[we:end])
	}
	if wrapped := len(p) - n; wrapped > 0 {
		if wrapped > b.guard {
			wrapped = b.guard
		}
		copy(b.buf[b.size:b.size+wrapped], b.buf[:wrapped])
	}

	b.mu.Lock()
	b.we = (we + len(p)) % b.size
	b.mu.Unlock()
	return true
}

// View returns a contiguous read-only slice of n bytes starting off
// bytes past the read cursor. off+n must not exceed the committed byte
// count plus the guard. Only the consumer goroutine may call View.
func (b *Buffer) View(off, n int) []byte {
	start := (b.rs + off) % b.size
	return b.buf[start : start+n]
}

// Advance consumes n bytes. Only the consumer mutates the read cursor;
// the lock is held just long enough to publish the new value to the
// producer's free-space check.
func (b *Buffer) Advance(n int) {
	b.mu.Lock()
	b.rs = (b.rs + n) % b.size
	b.mu.Unlock()
}
