package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"price-frame-monitor/internal/alerting"
	"price-frame-monitor/internal/analysis"
	"price-frame-monitor/internal/storage"
)

// ErrLocked is returned when another process holds the run lock.
var ErrLocked = errors.New("another monitoring run holds the advisory lock")

// Sampler collects the samples of one run.
type Sampler interface {
	Run(ctx context.Context, symbol string) ([]analysis.Sample, error)
}

// Options configure the monitor.
type Options struct {
	Symbol     string
	Interval   time.Duration
	Thresholds alerting.Thresholds
	Title      string
	Location   *time.Location
	LockKey    int64
}

// Monitor wires sampling, analysis, the alert gate and delivery for one run.
type Monitor struct {
	opts     Options
	sampler  Sampler
	notifier alerting.Notifier
	store    storage.RunStore
	locker   storage.AdvisoryLocker
	tracer   analysis.Tracer
	logger   zerolog.Logger
	now      func() time.Time
}

// New constructs the monitor. notifier and store may be nil.
func New(opts Options, sampler Sampler, notifier alerting.Notifier, store storage.RunStore, logger zerolog.Logger) *Monitor {
	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Monitor{
		opts:     opts,
		sampler:  sampler,
		notifier: notifier,
		store:    store,
		locker:   locker,
		tracer:   analysis.NewLogTracer(logger),
		logger:   logger.With().Str("component", "monitor").Str("symbol", opts.Symbol).Logger(),
		now:      time.Now,
	}
}

// Run samples for the configured window and analyses the result. The error
// is non-nil only when the run could not complete (cancellation, lock
// contention); analysis failures are reported through the Report.
func (m *Monitor) Run(ctx context.Context) (Report, error) {
	if m.sampler == nil {
		return Report{}, errors.New("sampler not configured")
	}

	unlock, proceed, err := m.acquireLock(ctx)
	if err != nil {
		return Report{}, err
	}
	if !proceed {
		return Report{}, ErrLocked
	}
	if unlock != nil {
		defer unlock()
	}

	start := m.now()
	samples, err := m.sampler.Run(ctx, m.opts.Symbol)
	end := m.now()
	if err != nil {
		return Report{Symbol: m.opts.Symbol, Start: start, End: end, Samples: samples}, fmt.Errorf("sampling interrupted: %w", err)
	}

	return m.Analyze(ctx, start, end, samples), nil
}

// Analyze runs the analysis, gate and delivery stages over collected samples.
func (m *Monitor) Analyze(ctx context.Context, start, end time.Time, samples []analysis.Sample) Report {
	report := Report{
		RunID:      uuid.New(),
		Symbol:     m.opts.Symbol,
		Start:      start,
		End:        end,
		Interval:   m.opts.Interval,
		Thresholds: m.opts.Thresholds,
		Samples:    samples,
	}
	logger := m.logger.With().Str("run_id", report.RunID.String()).Logger()

	m.analyze(ctx, logger, &report)
	m.persist(ctx, logger, report)
	return report
}

func (m *Monitor) analyze(ctx context.Context, logger zerolog.Logger, report *Report) {
	agg, err := analysis.Aggregate(report.Samples, m.opts.Interval, m.tracer)
	if err != nil {
		report.fail(err)
		logger.Error().Err(err).Str("outcome", string(report.Outcome)).Msg("analysis aborted")
		return
	}
	report.Frames = agg.Frames
	report.Skipped = agg.Skipped
	if agg.Skipped > 0 {
		logger.Warn().Int("skipped", agg.Skipped).Int("samples", len(report.Samples)).Msg("samples skipped by frame partitioning")
	}

	summary, err := analysis.Summarize(report.Samples, agg.Frames)
	if err != nil {
		report.fail(err)
		logger.Error().Err(err).Str("outcome", string(report.Outcome)).Msg("analysis aborted")
		return
	}
	report.Summary = &summary

	logger.Info().
		Int("frames", summary.FrameCount).
		Str("avg_min", analysis.Fixed(summary.AvgMinPrice, 2)).
		Str("avg_max", analysis.Fixed(summary.AvgMaxPrice, 2)).
		Str("avg_diff", analysis.Fixed(summary.AvgPriceDiff, 2)).
		Str("volatility_pct", analysis.Fixed(summary.AvgVolatilityPct, 2)).
		Str("change", summary.SignedChange()).
		Msg("price analysis complete")

	notify, reasons := alerting.Evaluate(summary, m.opts.Thresholds)
	report.Notify = notify
	report.Reasons = reasons
	if !notify {
		report.Outcome = OutcomeSuppressed
		logger.Info().Strs("reasons", reasons).Msg("notification suppressed")
		return
	}
	if m.notifier == nil {
		report.Outcome = OutcomePassed
		logger.Info().Msg("gate passed, no notifier configured")
		return
	}

	note := alerting.Notification{
		Title:      m.opts.Title,
		RunID:      report.RunID.String(),
		Symbol:     report.Symbol,
		Start:      report.Start,
		End:        report.End,
		Interval:   m.opts.Interval,
		Summary:    summary,
		Thresholds: m.opts.Thresholds,
		Location:   m.opts.Location,
	}
	if err := m.notifier.Notify(ctx, note); err != nil {
		report.Outcome = OutcomeSendFailed
		report.Err = err
		logger.Error().Err(err).Msg("failed to dispatch notification")
		return
	}
	report.Outcome = OutcomeNotified
}

func (m *Monitor) persist(ctx context.Context, logger zerolog.Logger, report Report) {
	if m.store == nil {
		return
	}
	run, frames := report.Records()
	if err := m.store.SaveRun(ctx, run, frames); err != nil {
		logger.Error().Err(err).Msg("failed to persist run")
	}
}

func (m *Monitor) acquireLock(ctx context.Context) (func(), bool, error) {
	if m.opts.LockKey == 0 || m.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := m.locker.TryAdvisoryLock(ctx, m.opts.LockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
