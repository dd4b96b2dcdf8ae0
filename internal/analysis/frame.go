package analysis

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Frame summarises the samples that fell into one fixed-width window.
type Frame struct {
	Index int64
	Start time.Time
	End   time.Time
	Min   float64
	Max   float64
	Avg   float64
	Count int
}

// Aggregation is the output of Aggregate.
type Aggregation struct {
	Frames  []Frame
	Skipped int
}

// Aggregate partitions samples into frames of width interval anchored at the
// first sample. Consecutive samples inside the closed window [start, end] of
// the current frame are collected greedily. A sample that cannot open a new
// frame, because its timestamp lies before the origin or inside a frame that
// was already closed, is counted as skipped and never revisited. Samples with
// a non-finite price are skipped as well, without closing the frame they
// fall in.
func Aggregate(samples []Sample, interval time.Duration, tracer Tracer) (Aggregation, error) {
	if len(samples) == 0 {
		return Aggregation{}, ErrNoData
	}
	if interval <= 0 {
		return Aggregation{}, ErrInvalidInterval
	}
	if tracer == nil {
		tracer = NopTracer{}
	}

	origin := samples[0].Timestamp
	result := Aggregation{Frames: make([]Frame, 0, 4)}
	last := int64(-1)

	for i := 0; i < len(samples); {
		sample := samples[i]
		index := frameIndex(origin, sample.Timestamp, interval)
		if index < 0 || index <= last || !finite(sample.Price) {
			tracer.SampleDecision(i, sample, index, false)
			result.Skipped++
			i++
			continue
		}

		start := origin.Add(time.Duration(index) * interval)
		end := start.Add(interval)

		acc := newAccumulator()
		for i < len(samples) && within(samples[i].Timestamp, start, end) {
			if !finite(samples[i].Price) {
				tracer.SampleDecision(i, samples[i], index, false)
				result.Skipped++
				i++
				continue
			}
			tracer.SampleDecision(i, samples[i], index, true)
			acc.add(samples[i].Price)
			i++
		}

		frame := acc.frame(index, start, end)
		result.Frames = append(result.Frames, frame)
		tracer.FrameClosed(frame)
		last = index
	}

	return result, nil
}

// frameIndex floors (ts - origin) / interval.
func frameIndex(origin, ts time.Time, interval time.Duration) int64 {
	offset := ts.Sub(origin)
	index := int64(offset / interval)
	if offset < 0 && offset%interval != 0 {
		index--
	}
	return index
}

func within(ts, start, end time.Time) bool {
	return !ts.Before(start) && !ts.After(end)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

type accumulator struct {
	min   float64
	max   float64
	sum   decimal.Decimal
	count int
}

func newAccumulator() *accumulator {
	return &accumulator{min: math.Inf(1), max: math.Inf(-1)}
}

func (a *accumulator) add(price float64) {
	if price < a.min {
		a.min = price
	}
	if price > a.max {
		a.max = price
	}
	a.sum = a.sum.Add(decimal.NewFromFloat(price))
	a.count++
}

func (a *accumulator) frame(index int64, start, end time.Time) Frame {
	avg := a.sum.Div(decimal.NewFromInt(int64(a.count))).InexactFloat64()
	// the float conversion can land a ulp outside the observed range
	avg = math.Max(a.min, math.Min(a.max, avg))
	return Frame{
		Index: index,
		Start: start,
		End:   end,
		Min:   a.min,
		Max:   a.max,
		Avg:   avg,
		Count: a.count,
	}
}
