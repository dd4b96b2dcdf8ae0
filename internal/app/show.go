package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"price-frame-monitor/internal/storage"
)

// Show prints recent stored runs.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show runs")
	}
	if closeStore != nil {
		defer closeStore()
	}

	runs, err := store.ListRecentRuns(ctx, opts.Limit)
	if err != nil {
		return err
	}
	writeRuns(a.Out, runs)
	return nil
}

func writeRuns(out io.Writer, runs []storage.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs found")
		return
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Run\tStarted (UTC)\tSymbol\tFrames\tSamples\tSkipped\tVolatility%\tChange\tOutcome\tError")

	for _, run := range runs {
		volatility, change := "-", "-"
		if s := run.Summary; s != nil {
			volatility = s.AvgVolatilityPct.StringFixed(2)
			change = signedPct(s.ChangeSign, s.PriceChangePct.StringFixed(2))
		}
		errMsg := ""
		if run.Error != nil {
			errMsg = sanitizeInline(*run.Error)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\t%s\t%s\n",
			run.ID,
			run.StartedAt.UTC().Format(time.RFC3339),
			run.Symbol,
			run.FrameCount,
			run.SampleCount,
			run.SkippedCount,
			volatility,
			change,
			run.Outcome,
			errMsg,
		)
	}

	writer.Flush()
}

func signedPct(sign, value string) string {
	return sign + value + "%"
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
