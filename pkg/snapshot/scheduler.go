package snapshot

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSchedule saves every 30 seconds
const DefaultSchedule = "@every 30s"

// Saver is what the scheduler runs
type Saver interface {
	Save() error
}

// ParseSchedule validates a schedule. Standard five-field cron expressions
// and descriptors such as "@every 30s" are accepted.
func ParseSchedule(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot schedule %q: %w", spec, err)
	}
	return sched, nil
}

// Scheduler runs periodic saves. Failures are logged and the next tick
// tries again; they never stop the process.
type Scheduler struct {
	saver    Saver
	schedule cron.Schedule
	spec     string
	cron     *cron.Cron
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler. An empty spec uses DefaultSchedule.
func NewScheduler(saver Saver, spec string, logger zerolog.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	sched, err := ParseSchedule(spec)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		saver:    saver,
		schedule: sched,
		spec:     spec,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:   logger.With().Str("component", "snapshot_scheduler").Logger(),
	}, nil
}

// Start begins the periodic saves
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("snapshot scheduler already running")
	}

	s.cron.Schedule(s.schedule, cron.FuncJob(s.run))
	s.cron.Start()
	s.running = true

	s.logger.Info().Str("schedule", s.spec).Msg("Snapshot scheduler started")
	return nil
}

// Stop waits for an in-flight save, then performs a final one
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()

	if wasRunning {
		select {
		case <-s.cron.Stop().Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := s.saver.Save(); err != nil {
		s.logger.Error().Err(err).Msg("Final snapshot failed")
		return err
	}
	s.logger.Info().Msg("Final snapshot saved")
	return nil
}

func (s *Scheduler) run() {
	if err := s.saver.Save(); err != nil {
		s.logger.Error().Err(err).Msg("Snapshot failed")
	}
}
