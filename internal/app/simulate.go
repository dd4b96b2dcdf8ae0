package app

import (
	"context"
	"errors"
	"time"

	"price-frame-monitor/internal/analysis"
)

// SimulateAlert feeds a synthetic linear price ramp through analysis, the
// alert gate and the configured notifiers.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if err := a.Config.ValidateMonitor(); err != nil {
		return err
	}
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}

	notifier, err := a.newNotifier()
	if err != nil {
		return err
	}
	if notifier == nil {
		return errors.New("no alerting channel configured")
	}

	monitor, err := a.newMonitor(nil, notifier, nil)
	if err != nil {
		return err
	}

	start := time.Now()
	samples := rampSamples(start, a.Config.Monitor.Duration, a.Config.Monitor.Cadence, opts)
	end := start.Add(a.Config.Monitor.Duration)

	report := monitor.Analyze(ctx, start, end, samples)
	return a.finish(report)
}

// rampSamples spreads points samples from opening to closing over duration.
// Points defaults to duration/cadence.
func rampSamples(start time.Time, duration, cadence time.Duration, opts SimulateOptions) []analysis.Sample {
	points := opts.Points
	if points <= 0 && cadence > 0 {
		points = int(duration / cadence)
	}
	if points < 2 {
		points = 2
	}

	step := duration / time.Duration(points)
	slope := (opts.Closing - opts.Opening) / float64(points-1)

	samples := make([]analysis.Sample, points)
	for i := range samples {
		price := opts.Opening + slope*float64(i)
		if i == points-1 {
			price = opts.Closing
		}
		samples[i] = analysis.Sample{
			Timestamp: start.Add(step * time.Duration(i+1)),
			Price:     price,
		}
	}
	return samples
}
