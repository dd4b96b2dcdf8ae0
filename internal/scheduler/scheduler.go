package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every cadence tick. fired is the tick's scheduled time.
type TickFunc func(ctx context.Context, fired time.Time)

// Options tune scheduler behaviour.
type Options struct {
	Cadence      time.Duration
	Duration     time.Duration
	StartupDelay time.Duration
}

// Scheduler fires a tick at fixed cadence for a bounded duration. Ticks run in
// their own goroutines so a slow tick never delays the next one.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Cadence <= 0 {
		panic("scheduler cadence must be positive")
	}
	if opts.Duration <= 0 {
		panic("scheduler duration must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks until the duration elapses or ctx is cancelled. The first tick
// fires one cadence after start. Once the window closes no further tick is
// started; ticks already in flight are waited for before Run returns. Ticks
// receive ctx, so they are only interrupted by cancellation of the caller.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	started := time.Now()
	deadline := started.Add(s.opts.Duration)
	window := time.NewTimer(s.opts.Duration)
	defer window.Stop()
	ticker := time.NewTicker(s.opts.Cadence)
	defer ticker.Stop()

	s.logger.Info().
		Time("until", deadline).
		Dur("cadence", s.opts.Cadence).
		Msg("window opened")

	var (
		inflight sync.WaitGroup
		fired    int
	)
	drain := func() {
		ticker.Stop()
		inflight.Wait()
	}

	for {
		select {
		case <-ctx.Done():
			drain()
			s.logger.Warn().Int("ticks", fired).Msg("window cancelled")
			return ctx.Err()
		case <-window.C:
			drain()
			s.logger.Info().Int("ticks", fired).Dur("elapsed", time.Since(started)).Msg("window closed")
			return nil
		case at := <-ticker.C:
			// both channels may be ready together; the deadline wins
			if !at.Before(deadline) {
				continue
			}
			fired++
			inflight.Add(1)
			go func(at time.Time) {
				defer inflight.Done()
				tick(ctx, at)
			}(at)
		}
	}
}
