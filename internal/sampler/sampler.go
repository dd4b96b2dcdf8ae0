package sampler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"price-frame-monitor/internal/analysis"
	"price-frame-monitor/internal/fetcher"
	"price-frame-monitor/internal/scheduler"
)

// Options tune the sampling window.
type Options struct {
	Cadence      time.Duration
	Duration     time.Duration
	StartupDelay time.Duration
	// Clock stamps samples; defaults to time.Now.
	Clock func() time.Time
}

// Sampler polls a price source into a run-owned buffer.
type Sampler struct {
	source fetcher.PriceSource
	opts   Options
	logger zerolog.Logger
}

// New constructs a Sampler.
func New(source fetcher.PriceSource, opts Options, logger zerolog.Logger) (*Sampler, error) {
	if source == nil {
		return nil, errors.New("sampler: price source is required")
	}
	if opts.Cadence <= 0 {
		return nil, fmt.Errorf("sampler: cadence must be positive, got %s", opts.Cadence)
	}
	if opts.Duration <= 0 {
		return nil, fmt.Errorf("sampler: duration must be positive, got %s", opts.Duration)
	}
	return &Sampler{
		source: source,
		opts:   opts,
		logger: logger.With().Str("component", "sampler").Logger(),
	}, nil
}

// Run samples symbol for the configured duration and returns the frozen
// samples. Fetch failures are logged and skipped. If ctx is cancelled the
// samples gathered so far are returned together with ctx.Err().
func (s *Sampler) Run(ctx context.Context, symbol string) ([]analysis.Sample, error) {
	buf := analysis.NewBuffer(s.opts.Clock)
	sched := scheduler.New(scheduler.Options{
		Cadence:      s.opts.Cadence,
		Duration:     s.opts.Duration,
		StartupDelay: s.opts.StartupDelay,
	}, s.logger)

	logger := s.logger.With().Str("symbol", symbol).Logger()
	logger.Info().Dur("duration", s.opts.Duration).Dur("cadence", s.opts.Cadence).Msg("monitoring started")

	err := sched.Run(ctx, func(ctx context.Context, fired time.Time) {
		s.poll(ctx, logger, buf, symbol, fired)
	})

	samples := buf.Freeze()
	logger.Info().Int("samples", len(samples)).Msg("monitoring complete")
	return samples, err
}

func (s *Sampler) poll(ctx context.Context, logger zerolog.Logger, buf *analysis.Buffer, symbol string, fired time.Time) {
	price, err := s.source.CurrentPrice(ctx, symbol)
	if err != nil {
		logger.Warn().Err(err).Time("fired", fired).Msg("price fetch failed")
		return
	}

	value := price.InexactFloat64()
	if !buf.Append(value) {
		logger.Debug().Time("fired", fired).Msg("sample dropped, buffer frozen")
		return
	}
	logger.Trace().Time("fired", fired).Float64("price", value).Msg("sample recorded")
}
