package analysis

import (
	"github.com/rs/zerolog"
)

// Tracer receives aggregation decisions as they are made.
type Tracer interface {
	// SampleDecision is called once per sample. frame is the index the sample
	// maps to relative to the origin; placed is false for skipped samples.
	SampleDecision(position int, sample Sample, frame int64, placed bool)
	// FrameClosed is called once per emitted frame.
	FrameClosed(frame Frame)
}

// NopTracer discards every event.
type NopTracer struct{}

func (NopTracer) SampleDecision(int, Sample, int64, bool) {}
func (NopTracer) FrameClosed(Frame)                       {}

// LogTracer writes aggregation events at trace level.
type LogTracer struct {
	logger zerolog.Logger
}

// NewLogTracer builds a tracer on top of logger.
func NewLogTracer(logger zerolog.Logger) *LogTracer {
	return &LogTracer{logger: logger.With().Str("component", "aggregator").Logger()}
}

func (t *LogTracer) SampleDecision(position int, sample Sample, frame int64, placed bool) {
	t.logger.Trace().
		Int("position", position).
		Time("ts", sample.Timestamp).
		Float64("price", sample.Price).
		Int64("frame", frame).
		Bool("placed", placed).
		Msg("sample")
}

func (t *LogTracer) FrameClosed(frame Frame) {
	t.logger.Debug().
		Time("start", frame.Start).
		Time("end", frame.End).
		Float64("min", frame.Min).
		Float64("max", frame.Max).
		Float64("avg", frame.Avg).
		Int("count", frame.Count).
		Msg("frame closed")
}

var (
	_ Tracer = NopTracer{}
	_ Tracer = (*LogTracer)(nil)
)
