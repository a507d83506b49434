package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewEventLoop(t *testing.T) {
	d := createTestDaemon(t, t.TempDir())

	eventLoop := NewEventLoop(d)
	assert.Equal(t, d, eventLoop.daemon)
	assert.Equal(t, defaultStatsInterval, eventLoop.interval)
}

func TestEventLoopRun(t *testing.T) {
	d := createTestDaemon(t, t.TempDir())

	eventLoop := NewEventLoop(d)
	eventLoop.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		eventLoop.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event loop did not stop")
	}
}
