package daemon

import (
	"context"
	"time"
)

// defaultStatsInterval is how often the event loop logs runtime stats
const defaultStatsInterval = 30 * time.Second

// EventLoop runs periodic maintenance while the daemon is up
type EventLoop struct {
	daemon   *Daemon
	interval time.Duration
}

// NewEventLoop creates a new event loop
func NewEventLoop(d *Daemon) *EventLoop {
	return &EventLoop{
		daemon:   d,
		interval: defaultStatsInterval,
	}
}

// Run ticks until ctx is done
func (e *EventLoop) Run(ctx context.Context) {
	e.daemon.logger.Debug().Msg("Event loop started")

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.daemon.logger.Debug().Msg("Event loop stopping")
			return

		case <-ticker.C:
			e.processTasks()
		}
	}
}

// processTasks logs session and state counters
func (e *EventLoop) processTasks() {
	var dropped uint64
	for _, info := range e.daemon.registry.Infos() {
		dropped += info.Dropped
	}

	e.daemon.logger.Debug().
		Int("sessions", e.daemon.registry.Count()).
		Int("authenticated", e.daemon.registry.AuthenticatedCount()).
		Uint64("dropped", dropped).
		Int("records", e.daemon.store.Len()).
		Int("users", e.daemon.users.Len()).
		Msg("Runtime stats")
}
