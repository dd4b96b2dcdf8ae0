package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"price-frame-monitor/internal/app"
)

var (
	simulateOpening float64
	simulateClosing float64
	simulatePoints  int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Run a synthetic price ramp through the alert gate and notifiers",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateOpening <= 0 || simulateClosing <= 0 {
			return errors.New("--opening and --closing must be greater than 0")
		}
		if simulatePoints < 0 {
			return errors.New("--points cannot be negative")
		}

		a := getApp()
		applyRunFlags(cmd, a.Config)
		return a.SimulateAlert(cmd.Context(), app.SimulateOptions{
			Opening: simulateOpening,
			Closing: simulateClosing,
			Points:  simulatePoints,
		})
	},
}

func init() {
	simulateCmd.Flags().Float64Var(&simulateOpening, "opening", 0, "Opening price of the ramp")
	simulateCmd.Flags().Float64Var(&simulateClosing, "closing", 0, "Closing price of the ramp")
	simulateCmd.Flags().IntVar(&simulatePoints, "points", 0, "Number of samples (defaults to duration/cadence)")
	addMonitorFlags(simulateCmd)
}
