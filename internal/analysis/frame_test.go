package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(ms int64, price float64) Sample {
	return Sample{Timestamp: epoch.Add(time.Duration(ms) * time.Millisecond), Price: price}
}

type recordingTracer struct {
	placed  int
	skipped int
	frames  []Frame
}

func (r *recordingTracer) SampleDecision(_ int, _ Sample, _ int64, placed bool) {
	if placed {
		r.placed++
		return
	}
	r.skipped++
}

func (r *recordingTracer) FrameClosed(f Frame) {
	r.frames = append(r.frames, f)
}

func TestAggregateBoundaryInclusiveGreedy(t *testing.T) {
	samples := []Sample{at(0, 100), at(60000, 102), at(120000, 98), at(180000, 101)}

	agg, err := Aggregate(samples, 2*time.Minute, nil)
	require.NoError(t, err)
	require.Len(t, agg.Frames, 2)
	assert.Equal(t, 0, agg.Skipped)

	first := agg.Frames[0]
	assert.Equal(t, epoch, first.Start)
	assert.Equal(t, epoch.Add(2*time.Minute), first.End)
	assert.Equal(t, 98.0, first.Min)
	assert.Equal(t, 102.0, first.Max)
	assert.Equal(t, 100.0, first.Avg)
	assert.Equal(t, 3, first.Count)

	second := agg.Frames[1]
	assert.Equal(t, int64(1), second.Index)
	assert.Equal(t, epoch.Add(2*time.Minute), second.Start)
	assert.Equal(t, epoch.Add(4*time.Minute), second.End)
	assert.Equal(t, 101.0, second.Min)
	assert.Equal(t, 101.0, second.Max)
	assert.Equal(t, 101.0, second.Avg)
	assert.Equal(t, 1, second.Count)
}

func TestAggregateEmptyBuffer(t *testing.T) {
	_, err := Aggregate(nil, time.Minute, nil)
	require.ErrorIs(t, err, ErrNoData)
}

func TestAggregateRejectsNonPositiveInterval(t *testing.T) {
	_, err := Aggregate([]Sample{at(0, 1)}, 0, nil)
	require.ErrorIs(t, err, ErrInvalidInterval)
}

func TestAggregateOmitsEmptyFrames(t *testing.T) {
	// nothing lands in frames 1 and 2
	samples := []Sample{at(0, 10), at(30000, 11), at(190000, 12)}

	agg, err := Aggregate(samples, time.Minute, nil)
	require.NoError(t, err)
	require.Len(t, agg.Frames, 2)
	assert.Equal(t, int64(0), agg.Frames[0].Index)
	assert.Equal(t, int64(3), agg.Frames[1].Index)
	assert.Equal(t, epoch.Add(3*time.Minute), agg.Frames[1].Start)
}

func TestAggregateSkipsRegressedTimestamps(t *testing.T) {
	samples := []Sample{
		at(0, 10),
		at(70000, 11),
		at(30000, 9),   // back inside closed frame 0
		at(-5000, 8),   // before origin
		at(100000, 12), // frame 1 is closed too
		at(130000, 13),
	}
	tracer := &recordingTracer{}

	agg, err := Aggregate(samples, time.Minute, tracer)
	require.NoError(t, err)
	assert.Equal(t, 3, agg.Skipped)
	require.Len(t, agg.Frames, 3)
	assert.Equal(t, []int64{0, 1, 2}, []int64{agg.Frames[0].Index, agg.Frames[1].Index, agg.Frames[2].Index})
	assert.Equal(t, 3, tracer.skipped)
	assert.Equal(t, 3, tracer.placed)
	assert.Equal(t, agg.Frames, tracer.frames)
}

func TestAggregateSkipsNonFinitePrices(t *testing.T) {
	samples := []Sample{at(0, 10), at(1000, nan()), at(2000, 12), at(3000, 14)}

	agg, err := Aggregate(samples, time.Minute, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, agg.Skipped)
	require.Len(t, agg.Frames, 1)
	assert.Equal(t, 3, agg.Frames[0].Count)
	assert.Equal(t, 10.0, agg.Frames[0].Min)
	assert.Equal(t, 14.0, agg.Frames[0].Max)
	assert.InDelta(t, 12.0, agg.Frames[0].Avg, 1e-9)
}

func TestAggregateNonFiniteDoesNotCloseFrame(t *testing.T) {
	samples := []Sample{at(0, 10), at(500, math.Inf(1)), at(1000, 11), at(2500, 13), at(3000, nan()), at(3500, 15)}

	tracer := &recordingTracer{}
	agg, err := Aggregate(samples, 2*time.Second, tracer)
	require.NoError(t, err)
	assert.Equal(t, 2, agg.Skipped)
	require.Len(t, agg.Frames, 2)
	assert.Equal(t, 2, agg.Frames[0].Count)
	assert.Equal(t, 2, agg.Frames[1].Count)
	assert.Equal(t, 2, tracer.skipped)
	assert.Equal(t, 4, tracer.placed)
}

func TestAggregateInvariants(t *testing.T) {
	cases := map[string][]Sample{
		"steady": {at(0, 1), at(1000, 2), at(2000, 3), at(3000, 4), at(4000, 5)},
		"drift":  {at(0, 5), at(1900, 5.5), at(1500, 4), at(4100, 6), at(3900, 2), at(8000, 7)},
		"ties":   {at(0, 0.1), at(10, 0.1), at(20, 0.1)},
		"single": {at(0, 42)},
	}

	for name, samples := range cases {
		t.Run(name, func(t *testing.T) {
			agg, err := Aggregate(samples, 2*time.Second, nil)
			require.NoError(t, err)

			total := agg.Skipped
			for i, f := range agg.Frames {
				total += f.Count
				assert.GreaterOrEqual(t, f.Count, 1)
				assert.True(t, f.Start.Before(f.End))
				assert.Equal(t, 2*time.Second, f.End.Sub(f.Start))
				assert.LessOrEqual(t, f.Min, f.Avg)
				assert.LessOrEqual(t, f.Avg, f.Max)
				if i > 0 {
					prev := agg.Frames[i-1]
					assert.True(t, f.Start.After(prev.Start), "frames must be strictly increasing")
					assert.False(t, f.Start.Before(prev.End), "frames must not overlap")
				}
			}
			assert.Equal(t, len(samples), total)

			again, err := Aggregate(samples, 2*time.Second, nil)
			require.NoError(t, err)
			assert.Equal(t, agg, again)
		})
	}
}

func TestBufferFreeze(t *testing.T) {
	tick := epoch
	buf := NewBuffer(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	})

	require.True(t, buf.Append(1))
	require.True(t, buf.Append(2))
	assert.Equal(t, 2, buf.Len())

	frozen := buf.Freeze()
	require.Len(t, frozen, 2)
	assert.True(t, frozen[0].Timestamp.Before(frozen[1].Timestamp))

	assert.False(t, buf.Append(3))
	assert.Len(t, buf.Freeze(), 2)

	frozen[0].Price = 99
	assert.Equal(t, 1.0, buf.Freeze()[0].Price)
}
