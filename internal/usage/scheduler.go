package usage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Cycler runs one monitoring cycle.
type Cycler interface {
	Cycle(ctx context.Context) (*CycleResult, error)
}

// Scheduler runs a cycle immediately on Start and then once per configured
// cycle length. All cycles run on one goroutine so they never overlap; a
// tick that arrives while a cycle is running is held, and further ticks are
// dropped until the cycle finishes.
type Scheduler struct {
	cycler   Cycler
	unit     time.Duration
	logger   zerolog.Logger
	onCycle  func(*CycleResult)
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
	started  bool
	interval time.Duration
}

// NewScheduler creates a scheduler. unit is the length of one configured
// cycle minute; pass time.Minute outside tests.
func NewScheduler(cycler Cycler, unit time.Duration, logger zerolog.Logger) *Scheduler {
	if unit <= 0 {
		unit = time.Minute
	}
	return &Scheduler{
		cycler:   cycler,
		unit:     unit,
		logger:   logger.With().Str("component", "scheduler").Logger(),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// OnCycle registers a hook run after every cycle. Call before Start.
func (s *Scheduler) OnCycle(fn func(*CycleResult)) {
	s.onCycle = fn
}

// Start runs the first cycle synchronously and then starts the timer.
func (s *Scheduler) Start(ctx context.Context) *CycleResult {
	res := s.runCycle(ctx)
	s.interval = s.intervalFor(res)

	s.started = true
	go s.run(ctx)
	s.logger.Info().Dur("interval", s.interval).Msg("Usage scheduler started")
	return res
}

// Stop halts the timer and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	if !s.started {
		return
	}
	<-s.doneChan
	s.logger.Info().Msg("Usage scheduler stopped")
}

// run is the main scheduler loop
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res := s.runCycle(ctx)
			if next := s.intervalFor(res); next != s.interval {
				s.logger.Info().
					Dur("old_interval", s.interval).
					Dur("new_interval", next).
					Msg("Cycle length changed")
				s.interval = next
				ticker.Reset(next)
			}
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) (res *CycleResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("Cycle panicked")
			res = nil
		}
	}()

	res, err := s.cycler.Cycle(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Cycle completed with errors")
	}
	if res != nil && s.onCycle != nil {
		s.onCycle(res)
	}
	return res
}

func (s *Scheduler) intervalFor(res *CycleResult) time.Duration {
	if res == nil || res.Settings.CycleMinutes <= 0 {
		if s.interval > 0 {
			return s.interval
		}
		return 5 * s.unit
	}
	return time.Duration(res.Settings.CycleMinutes) * s.unit
}
