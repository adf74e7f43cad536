package automation

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultInterval is how often the scheduler triggers an automation
// check.
const DefaultInterval = 60 * time.Second

// Scheduler triggers periodic automation checks. Overlapping ticks are
// skipped: a tick that fires while the previous check is still running
// does nothing.
type Scheduler struct {
	engine   *Engine
	cron     *cron.Cron
	interval time.Duration
	running  atomic.Bool
	logger   zerolog.Logger
}

type SchedulerConfig struct {
	Engine   *Engine
	Interval time.Duration // zero uses DefaultInterval
	Logger   zerolog.Logger
}

func NewScheduler(cfg SchedulerConfig) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		engine:   cfg.Engine,
		cron:     cron.New(),
		interval: interval,
		logger:   cfg.Logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the recurring check and starts the timer.
func (s *Scheduler) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %s", s.interval)
	_, err := s.cron.AddFunc(spec, func() { s.tick(ctx) })
	if err != nil {
		return fmt.Errorf("schedule automation check: %w", err)
	}
	s.cron.Start()
	s.logger.Info().Dur("interval", s.interval).Msg("automation scheduler started")
	return nil
}

// Stop clears the timer and waits for any in-flight check to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("automation scheduler stopped")
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug().Msg("previous check still running, skipping tick")
		return
	}
	defer s.running.Store(false)

	if _, err := s.engine.RunCheck(ctx); err != nil {
		s.logger.Error().Err(err).Msg("automation check failed")
	}
}
