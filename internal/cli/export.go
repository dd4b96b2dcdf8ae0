package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"price-frame-monitor/internal/app"
)

var (
	exportRunID    string
	exportJSONPath string
	exportPNGPath  string
	exportCSVPath  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the frames of a stored run as JSON, CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportRunID == "" {
			return errors.New("--run must be provided")
		}

		opts := app.ExportOptions{
			RunID:    exportRunID,
			JSONPath: exportJSONPath,
			CSVPath:  exportCSVPath,
			PNGPath:  exportPNGPath,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportRunID, "run", "", "Run ID as printed by show")
	exportCmd.Flags().StringVar(&exportJSONPath, "json", "", "Path to write JSON frames")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
}
