package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-frame-monitor/internal/config"
)

func TestApplyRunFlagsOnlyOverridesChanged(t *testing.T) {
	change := 3.0
	cfg := &config.Config{
		Monitor: config.MonitorConfig{
			Symbol:   "BTCUSDT",
			Duration: 15 * time.Minute,
			Interval: 5 * time.Minute,
			Cadence:  time.Second,
		},
		Alerting: config.AlertingConfig{ChangeThresholdPct: &change, Direction: "any"},
	}

	require.NoError(t, runCmd.Flags().Parse([]string{
		"--symbol", "ETHUSDT",
		"--interval", "1m",
		"--volatility-threshold", "0",
		"--dump-json", "out/price_analysis.json",
	}))
	applyRunFlags(runCmd, cfg)

	assert.Equal(t, "ETHUSDT", cfg.Monitor.Symbol)
	assert.Equal(t, time.Minute, cfg.Monitor.Interval)
	assert.Equal(t, 15*time.Minute, cfg.Monitor.Duration)
	assert.Equal(t, time.Second, cfg.Monitor.Cadence)
	require.NotNil(t, cfg.Alerting.ChangeThresholdPct)
	assert.Equal(t, 3.0, *cfg.Alerting.ChangeThresholdPct)
	require.NotNil(t, cfg.Alerting.VolatilityThresholdPct)
	assert.Equal(t, 0.0, *cfg.Alerting.VolatilityThresholdPct)
	assert.Equal(t, "any", cfg.Alerting.Direction)
	assert.Equal(t, "out/price_analysis.json", cfg.Dump.JSONPath)
}
