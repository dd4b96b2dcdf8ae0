package cli

import (
	"time"

	"github.com/spf13/cobra"

	"price-frame-monitor/internal/config"
)

var (
	runSymbol              string
	runDuration            time.Duration
	runInterval            time.Duration
	runCadence             time.Duration
	runChangeThreshold     float64
	runVolatilityThreshold float64
	runDirection           string
	runDumpJSON            string
	runDumpCSV             string
	runDumpPNG             string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one bounded monitoring window",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp()
		applyRunFlags(cmd, a.Config)
		return a.Run(cmd.Context())
	},
}

// applyRunFlags overrides configuration with flags the user actually set.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("symbol") {
		cfg.Monitor.Symbol = runSymbol
	}
	if flags.Changed("duration") {
		cfg.Monitor.Duration = runDuration
	}
	if flags.Changed("interval") {
		cfg.Monitor.Interval = runInterval
	}
	if flags.Changed("cadence") {
		cfg.Monitor.Cadence = runCadence
	}
	if flags.Changed("change-threshold") {
		v := runChangeThreshold
		cfg.Alerting.ChangeThresholdPct = &v
	}
	if flags.Changed("volatility-threshold") {
		v := runVolatilityThreshold
		cfg.Alerting.VolatilityThresholdPct = &v
	}
	if flags.Changed("direction") {
		cfg.Alerting.Direction = runDirection
	}
	if flags.Changed("dump-json") {
		cfg.Dump.JSONPath = runDumpJSON
	}
	if flags.Changed("dump-csv") {
		cfg.Dump.CSVPath = runDumpCSV
	}
	if flags.Changed("dump-png") {
		cfg.Dump.PNGPath = runDumpPNG
	}
}

func init() {
	addMonitorFlags(runCmd)
	runCmd.Flags().DurationVar(&runCadence, "cadence", time.Second, "Polling cadence")
	runCmd.Flags().Float64Var(&runChangeThreshold, "change-threshold", 0, "Minimum absolute price change (%) required to notify")
	runCmd.Flags().Float64Var(&runVolatilityThreshold, "volatility-threshold", 0, "Minimum average volatility (%) required to notify")
	runCmd.Flags().StringVar(&runDirection, "direction", "any", "Required price direction: any, up or down")
	runCmd.Flags().StringVar(&runDumpJSON, "dump-json", "", "Write frames as JSON to this path")
	runCmd.Flags().StringVar(&runDumpCSV, "dump-csv", "", "Write frames as CSV to this path")
	runCmd.Flags().StringVar(&runDumpPNG, "dump-png", "", "Render frames as a PNG chart to this path")
}

func addMonitorFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&runSymbol, "symbol", "", "Symbol to monitor (e.g. BTCUSDT)")
	cmd.Flags().DurationVar(&runDuration, "duration", 15*time.Minute, "Monitoring window length")
	cmd.Flags().DurationVar(&runInterval, "interval", 5*time.Minute, "Frame width")
}
