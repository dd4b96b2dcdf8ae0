package alerting

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-frame-monitor/internal/analysis"
)

func pct(v float64) *float64 { return &v }

func mustThresholds(t *testing.T, change, vol *float64, dir Direction) Thresholds {
	t.Helper()
	th, err := NewThresholds(change, vol, dir)
	require.NoError(t, err)
	return th
}

func TestDecide(t *testing.T) {
	rising := analysis.Summary{OpeningPrice: 100, ClosingPrice: 103, PriceChangePct: 3, AvgVolatilityPct: 1.5}
	falling := analysis.Summary{OpeningPrice: 105, ClosingPrice: 100, PriceChangePct: 4.76, AvgVolatilityPct: 2}
	flat := analysis.Summary{OpeningPrice: 100, ClosingPrice: 100, AvgVolatilityPct: 0.2}

	cases := []struct {
		name    string
		summary analysis.Summary
		th      Thresholds
		want    bool
	}{
		{"no filters notifies", rising, mustThresholds(t, nil, nil, DirectionAny), true},
		{"change below threshold", rising, mustThresholds(t, pct(5), nil, DirectionAny), false},
		{"change at threshold", rising, mustThresholds(t, pct(3), nil, DirectionAny), true},
		{"volatility below threshold", rising, mustThresholds(t, nil, pct(2), DirectionAny), false},
		{"volatility above threshold", falling, mustThresholds(t, nil, pct(1), DirectionAny), true},
		{"up filter on fall", falling, mustThresholds(t, nil, nil, DirectionUp), false},
		{"up filter ignores other passing filters", falling, mustThresholds(t, pct(0), pct(0), DirectionUp), false},
		{"up filter on rise", rising, mustThresholds(t, nil, nil, DirectionUp), true},
		{"up filter on flat", flat, mustThresholds(t, nil, nil, DirectionUp), false},
		{"down filter on fall", falling, mustThresholds(t, nil, nil, DirectionDown), true},
		{"down filter on flat", flat, mustThresholds(t, nil, nil, DirectionDown), false},
		{"conjunctive", rising, mustThresholds(t, pct(1), pct(5), DirectionUp), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(tc.summary, tc.th))
		})
	}
}

func TestEvaluateReasons(t *testing.T) {
	s := analysis.Summary{OpeningPrice: 105, ClosingPrice: 100, PriceChangePct: 4.76, AvgVolatilityPct: 0.5}
	ok, reasons := Evaluate(s, mustThresholds(t, pct(10), pct(1), DirectionUp))
	assert.False(t, ok)
	assert.Len(t, reasons, 3)
}

func TestEvaluateDoesNotMutateSummary(t *testing.T) {
	s := analysis.Summary{OpeningPrice: 1, ClosingPrice: 2, PriceChangePct: 100}
	before := s
	Decide(s, mustThresholds(t, pct(500), nil, DirectionDown))
	assert.Equal(t, before, s)
}

func TestNewThresholdsValidation(t *testing.T) {
	_, err := NewThresholds(pct(-1), nil, DirectionAny)
	assert.Error(t, err)
	_, err = NewThresholds(nil, pct(math.NaN()), DirectionAny)
	assert.Error(t, err)
	_, err = NewThresholds(nil, nil, Direction(7))
	assert.Error(t, err)
}

func TestThresholdsCopyInput(t *testing.T) {
	v := 5.0
	th := mustThresholds(t, &v, nil, DirectionAny)
	v = 50
	got, ok := th.ChangePct()
	require.True(t, ok)
	assert.Equal(t, 5.0, got)

	_, ok = th.VolatilityPct()
	assert.False(t, ok)
	assert.Equal(t, "change>=5%", th.String())
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]Direction{"": DirectionAny, "ANY": DirectionAny, "up": DirectionUp, " Down ": DirectionDown} {
		got, err := ParseDirection(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseDirection("sideways")
	assert.Error(t, err)
}
