package service

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"price-frame-monitor/internal/alerting"
	"price-frame-monitor/internal/analysis"
	"price-frame-monitor/internal/storage"
)

// Outcome tags how a run ended.
type Outcome string

const (
	OutcomeNotified   Outcome = "notified"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomePassed     Outcome = "passed"
	OutcomeSendFailed Outcome = "send_failed"
	OutcomeNoData     Outcome = "no_data"
	OutcomeNoFrames   Outcome = "no_frames"
	OutcomeDivision   Outcome = "division"
	OutcomeFailed     Outcome = "failed"
)

// Report is the tagged result of one run.
type Report struct {
	RunID      uuid.UUID
	Symbol     string
	Start      time.Time
	End        time.Time
	Interval   time.Duration
	Thresholds alerting.Thresholds
	Samples    []analysis.Sample
	Frames     []analysis.Frame
	Skipped    int
	Summary    *analysis.Summary
	Notify     bool
	Reasons    []string
	Outcome    Outcome
	Err        error
}

// Degraded reports whether the run ended without a summary.
func (r Report) Degraded() bool {
	switch r.Outcome {
	case OutcomeNoData, OutcomeNoFrames, OutcomeDivision, OutcomeFailed:
		return true
	}
	return false
}

func (r *Report) fail(err error) {
	r.Err = err
	switch {
	case errors.Is(err, analysis.ErrNoData):
		r.Outcome = OutcomeNoData
	case errors.Is(err, analysis.ErrNoFrames):
		r.Outcome = OutcomeNoFrames
	case errors.Is(err, analysis.ErrDivision):
		r.Outcome = OutcomeDivision
	default:
		r.Outcome = OutcomeFailed
	}
}

// Records converts the report into storage rows.
func (r Report) Records() (storage.RunRecord, []storage.FrameRecord) {
	run := storage.RunRecord{
		ID:           r.RunID,
		Symbol:       r.Symbol,
		StartedAt:    r.Start.UTC(),
		EndedAt:      r.End.UTC(),
		Interval:     r.Interval,
		SampleCount:  len(r.Samples),
		SkippedCount: r.Skipped,
		FrameCount:   len(r.Frames),
		Outcome:      string(r.Outcome),
		Notified:     r.Outcome == OutcomeNotified,
		Thresholds:   r.Thresholds.String(),
	}
	if r.Err != nil {
		msg := r.Err.Error()
		run.Error = &msg
	}
	if s := r.Summary; s != nil {
		run.Summary = &storage.SummaryRecord{
			AvgMinPrice:      decimal.NewFromFloat(s.AvgMinPrice),
			AvgMaxPrice:      decimal.NewFromFloat(s.AvgMaxPrice),
			AvgAvgPrice:      decimal.NewFromFloat(s.AvgAvgPrice),
			AvgPriceDiff:     decimal.NewFromFloat(s.AvgPriceDiff),
			AvgVolatilityPct: decimal.NewFromFloat(s.AvgVolatilityPct),
			OpeningPrice:     decimal.NewFromFloat(s.OpeningPrice),
			ClosingPrice:     decimal.NewFromFloat(s.ClosingPrice),
			PriceChangePct:   decimal.NewFromFloat(s.PriceChangePct),
			ChangeSign:       s.ChangeSign,
		}
	}

	frames := make([]storage.FrameRecord, 0, len(r.Frames))
	for _, f := range r.Frames {
		frames = append(frames, storage.FrameRecord{
			RunID: r.RunID,
			Index: f.Index,
			Start: f.Start.UTC(),
			End:   f.End.UTC(),
			Min:   decimal.NewFromFloat(f.Min),
			Max:   decimal.NewFromFloat(f.Max),
			Avg:   decimal.NewFromFloat(f.Avg),
			Count: f.Count,
		})
	}
	return run, frames
}
