package app

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	chart "github.com/wcharczuk/go-chart/v2"

	"price-frame-monitor/internal/analysis"
	"price-frame-monitor/internal/service"
	"price-frame-monitor/internal/storage"
)

// Export writes the frames of a stored run as JSON, CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.JSONPath == "" && opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --json, --csv or --png must be provided")
	}
	runID, err := uuid.Parse(opts.RunID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", opts.RunID, err)
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	run, err := store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	frames, err := store.ListFrames(ctx, runID)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		a.Logger.Info().Str("run_id", run.ID.String()).Str("outcome", run.Outcome).Msg("run has no frames to export")
		return nil
	}

	a.Logger.Info().Str("run_id", run.ID.String()).Int("frames", len(frames)).Msg("exporting frames")
	return writeFrames(opts.JSONPath, opts.CSVPath, opts.PNGPath, run.Symbol, frames)
}

// dump writes the configured frame files after a run. Failures are logged.
func (a *App) dump(report service.Report) {
	d := a.Config.Dump
	if d.JSONPath == "" && d.CSVPath == "" && d.PNGPath == "" {
		return
	}
	if len(report.Frames) == 0 {
		return
	}

	_, frames := report.Records()
	if d.JSONPath != "" {
		if err := writeFramesJSON(d.JSONPath, frames); err != nil {
			a.Logger.Error().Err(err).Str("path", d.JSONPath).Msg("failed to write json frame dump")
		} else {
			fmt.Fprintf(a.Out, "Results saved to %s\n", d.JSONPath)
		}
	}
	if d.CSVPath != "" {
		if err := writeFramesCSV(d.CSVPath, frames); err != nil {
			a.Logger.Error().Err(err).Str("path", d.CSVPath).Msg("failed to write csv frame dump")
		}
	}
	if d.PNGPath != "" {
		if len(frames) < 2 {
			a.Logger.Info().Int("frames", len(frames)).Msg("skipping png chart, at least two frames are required")
			return
		}
		if err := writeFramesPNG(d.PNGPath, report.Symbol, frames); err != nil {
			a.Logger.Error().Err(err).Str("path", d.PNGPath).Msg("failed to write png frame chart")
		}
	}
}

func writeFrames(jsonPath, csvPath, pngPath, symbol string, frames []storage.FrameRecord) error {
	var errs []error
	if jsonPath != "" {
		if err := writeFramesJSON(jsonPath, frames); err != nil {
			errs = append(errs, fmt.Errorf("json: %w", err))
		}
	}
	if csvPath != "" {
		if err := writeFramesCSV(csvPath, frames); err != nil {
			errs = append(errs, fmt.Errorf("csv: %w", err))
		}
	}
	if pngPath != "" {
		if err := writeFramesPNG(pngPath, symbol, frames); err != nil {
			errs = append(errs, fmt.Errorf("png: %w", err))
		}
	}
	return errors.Join(errs...)
}

type frameDump struct {
	FrameStart string  `json:"frameStart"`
	FrameEnd   string  `json:"frameEnd"`
	MinPrice   float64 `json:"minPrice"`
	MaxPrice   float64 `json:"maxPrice"`
	AvgPrice   float64 `json:"avgPrice"`
	Count      int     `json:"count"`
}

func writeFramesJSON(path string, frames []storage.FrameRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	out := make([]frameDump, 0, len(frames))
	for _, f := range frames {
		out = append(out, frameDump{
			FrameStart: f.Start.UTC().Format(time.RFC3339Nano),
			FrameEnd:   f.End.UTC().Format(time.RFC3339Nano),
			MinPrice:   f.Min.InexactFloat64(),
			MaxPrice:   f.Max.InexactFloat64(),
			AvgPrice:   f.Avg.InexactFloat64(),
			Count:      f.Count,
		})
	}

	payload, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

func writeFramesCSV(path string, frames []storage.FrameRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"frame_index", "frame_start", "frame_end", "min_price", "max_price", "avg_price", "count"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, f := range frames {
		record := []string{
			strconv.FormatInt(f.Index, 10),
			f.Start.UTC().Format(time.RFC3339Nano),
			f.End.UTC().Format(time.RFC3339Nano),
			f.Min.String(),
			f.Max.String(),
			f.Avg.String(),
			strconv.Itoa(f.Count),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeFramesPNG(path, symbol string, frames []storage.FrameRecord) error {
	if len(frames) < 2 {
		return errors.New("at least two frames are required to draw a chart")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(frames))
	minimum := make([]float64, len(frames))
	maximum := make([]float64, len(frames))
	average := make([]float64, len(frames))

	for i, f := range frames {
		x[i] = f.Start
		minimum[i] = f.Min.InexactFloat64()
		maximum[i] = f.Max.InexactFloat64()
		average[i] = f.Avg.InexactFloat64()
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Title:  symbol,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{Name: "Min", XValues: x, YValues: minimum},
			chart.TimeSeries{Name: "Max", XValues: x, YValues: maximum},
			chart.TimeSeries{Name: "Avg", XValues: x, YValues: average},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := graph.Render(chart.PNG, file); err != nil {
		file.Close()
		os.Remove(path)
		return fmt.Errorf("render chart: %w", err)
	}
	return file.Close()
}

// printReport writes the per-frame table and overall averages of a run.
func printReport(w io.Writer, report service.Report) {
	if len(report.Frames) == 0 {
		fmt.Fprintf(w, "No frames produced (%s).\n", report.Outcome)
		return
	}

	fmt.Fprintln(w, "Price analysis complete. Results:")
	for _, f := range report.Frames {
		fmt.Fprintf(w, "Time Frame: %s to %s | Min Price: $%s | Max Price: $%s | Avg Price: $%s | Samples: %d\n",
			f.Start.UTC().Format(time.RFC3339),
			f.End.UTC().Format(time.RFC3339),
			analysis.Fixed(f.Min, 2),
			analysis.Fixed(f.Max, 2),
			analysis.Fixed(f.Avg, 2),
			f.Count,
		)
	}

	s := report.Summary
	if s == nil {
		fmt.Fprintf(w, "\nNo summary (%s).\n", report.Outcome)
		return
	}
	fmt.Fprintln(w, "\nOverall Averages:")
	fmt.Fprintf(w, "Average Min Price: $%s\n", analysis.Fixed(s.AvgMinPrice, 2))
	fmt.Fprintf(w, "Average Max Price: $%s\n", analysis.Fixed(s.AvgMaxPrice, 2))
	fmt.Fprintf(w, "Average Price Diff: $%s\n", analysis.Fixed(s.AvgPriceDiff, 2))
	fmt.Fprintf(w, "Average Volatility: %s%%\n", analysis.Fixed(s.AvgVolatilityPct, 2))
	fmt.Fprintf(w, "Price Change: %s (%s -> %s)\n", s.SignedChange(), analysis.Fixed(s.OpeningPrice, 2), analysis.Fixed(s.ClosingPrice, 2))
	if s.SkippedCount > 0 {
		fmt.Fprintf(w, "Skipped samples: %d of %d\n", s.SkippedCount, s.SampleCount)
	}
	fmt.Fprintf(w, "Outcome: %s\n", report.Outcome)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
