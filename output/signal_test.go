package output

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignalCoalesces(t *testing.T) {
	s := NewSignal()

	// Multiple sends before a wait collapse into one wakeup.
	s.Send()
	s.Send()
	s.Send()

	ctx := context.Background()
	assert.True(t, s.Wait(ctx))

	ctx2, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.False(t, s.Wait(ctx2), "second wait must block until cancelled")
}

func TestSignalSendNeverBlocks(t *testing.T) {
	s := NewSignal()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			s.Send()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send blocked")
	}
}
