package analysis

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Summary is the aggregate view of one monitoring run.
type Summary struct {
	AvgMinPrice      float64
	AvgMaxPrice      float64
	AvgAvgPrice      float64
	AvgPriceDiff     float64
	AvgVolatilityPct float64
	OpeningPrice     float64
	ClosingPrice     float64
	PriceChangePct   float64
	ChangeSign       string
	SkippedCount     int
	FrameCount       int
	SampleCount      int
}

// Rising reports whether the run closed strictly above its opening price.
func (s Summary) Rising() bool {
	return s.ClosingPrice > s.OpeningPrice
}

// Falling reports whether the run closed strictly below its opening price.
func (s Summary) Falling() bool {
	return s.ClosingPrice < s.OpeningPrice
}

// SignedChange renders the price change with its sign, rounded for display.
func (s Summary) SignedChange() string {
	return s.ChangeSign + Fixed(s.PriceChangePct, 2) + "%"
}

// Fixed rounds v for presentation.
func Fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

// Summarize reduces the frames of a run and its raw samples into a Summary.
// Frame statistics are accumulated exactly, so the result does not depend on
// the order of frames. frames must have been built from samples.
func Summarize(samples []Sample, frames []Frame) (Summary, error) {
	if len(samples) == 0 {
		return Summary{}, ErrNoData
	}
	if len(frames) == 0 {
		return Summary{}, ErrNoFrames
	}

	var sumMin, sumMax, sumAvg decimal.Decimal
	placed := 0
	for _, f := range frames {
		sumMin = sumMin.Add(decimal.NewFromFloat(f.Min))
		sumMax = sumMax.Add(decimal.NewFromFloat(f.Max))
		sumAvg = sumAvg.Add(decimal.NewFromFloat(f.Avg))
		placed += f.Count
	}
	if placed > len(samples) {
		return Summary{}, fmt.Errorf("%d placed, %d collected: %w", placed, len(samples), ErrFrameMismatch)
	}

	n := decimal.NewFromInt(int64(len(frames)))
	avgMin := sumMin.Div(n)
	avgMax := sumMax.Div(n)
	avgAvg := sumAvg.Div(n)
	diff := avgMax.Sub(avgMin)

	if avgAvg.IsZero() {
		return Summary{}, fmt.Errorf("volatility: average frame price is zero: %w", ErrDivision)
	}
	volatility := diff.Div(avgAvg).Mul(hundred)

	opening := samples[0].Price
	closing := samples[len(samples)-1].Price
	if !finite(opening) || !finite(closing) {
		return Summary{}, fmt.Errorf("opening %v or closing %v price is not finite", opening, closing)
	}
	open := decimal.NewFromFloat(opening)
	if open.IsZero() {
		return Summary{}, fmt.Errorf("price change: opening price is zero: %w", ErrDivision)
	}
	change := decimal.NewFromFloat(closing).Sub(open).Abs().Div(open).Mul(hundred)

	sign := "-"
	if closing > opening {
		sign = "+"
	}

	return Summary{
		AvgMinPrice:      avgMin.InexactFloat64(),
		AvgMaxPrice:      avgMax.InexactFloat64(),
		AvgAvgPrice:      avgAvg.InexactFloat64(),
		AvgPriceDiff:     diff.InexactFloat64(),
		AvgVolatilityPct: volatility.InexactFloat64(),
		OpeningPrice:     opening,
		ClosingPrice:     closing,
		PriceChangePct:   change.InexactFloat64(),
		ChangeSign:       sign,
		SkippedCount:     len(samples) - placed,
		FrameCount:       len(frames),
		SampleCount:      len(samples),
	}, nil
}
