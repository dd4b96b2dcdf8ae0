package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"price-frame-monitor/internal/alerting"
	"price-frame-monitor/internal/config"
	"price-frame-monitor/internal/fetcher"
	"price-frame-monitor/internal/sampler"
	"price-frame-monitor/internal/service"
	"price-frame-monitor/internal/storage"
	"price-frame-monitor/internal/version"
)

// ErrDegraded is returned when a run finished without a summary.
var ErrDegraded = errors.New("run finished without a summary")

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newSource() (fetcher.PriceSource, error) {
	src := a.Config.Source
	switch src.Kind {
	case "", "binance":
		ua := src.Binance.UserAgent
		if ua == "" {
			ua = version.UserAgent()
		}
		return fetcher.NewBinance(fetcher.BinanceOptions{
			BaseURL:   src.Binance.BaseURL,
			Timeout:   src.Binance.RequestTimeout,
			UserAgent: ua,
		}, a.Logger), nil
	case "vault":
		return fetcher.NewVault(fetcher.VaultOptions{
			RPCURL:        src.Vault.RPCURL,
			ShareDecimals: src.Vault.ShareDecimals,
			AssetDecimals: src.Vault.AssetDecimals,
			Timeout:       src.Vault.RequestTimeout,
		}, a.Logger), nil
	default:
		return nil, fmt.Errorf("unsupported source kind %q", src.Kind)
	}
}

// newNotifier returns nil when alerting is disabled.
func (a *App) newNotifier() (alerting.Notifier, error) {
	cfg := a.Config.Alerting
	if !cfg.Enabled {
		return nil, nil
	}

	var fanout alerting.Fanout
	for _, channel := range cfg.Channels {
		switch channel {
		case "email":
			email, err := alerting.NewEmailNotifier(alerting.EmailOptions{
				Host:     cfg.Email.Host,
				Port:     cfg.Email.Port,
				Username: cfg.Email.Username,
				Password: cfg.Email.Password,
				From:     cfg.Email.From,
				FromName: cfg.Title,
				To:       cfg.Email.To,
				TLS:      cfg.Email.TLS,
				SSL:      cfg.Email.SSL,
				Timeout:  cfg.Email.Timeout,
			}, a.Logger)
			if err != nil {
				return nil, fmt.Errorf("email notifier: %w", err)
			}
			fanout = append(fanout, email)
		case "telegram":
			tg := cfg.Telegram
			fanout = append(fanout, alerting.NewTelegramNotifier(tg.BotToken, tg.ChatID, tg.APIBase, tg.Timeout, a.Logger))
		default:
			return nil, fmt.Errorf("unsupported alerting channel %q", channel)
		}
	}

	switch len(fanout) {
	case 0:
		return nil, nil
	case 1:
		return fanout[0], nil
	default:
		return fanout, nil
	}
}

func (a *App) thresholds() (alerting.Thresholds, error) {
	cfg := a.Config.Alerting
	direction, err := alerting.ParseDirection(cfg.Direction)
	if err != nil {
		return alerting.Thresholds{}, err
	}
	return alerting.NewThresholds(cfg.ChangeThresholdPct, cfg.VolatilityThresholdPct, direction)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	store, err := storage.Open(ctx, a.Config.Database, a.Config.App.Name)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

func (a *App) newMonitor(samp service.Sampler, notifier alerting.Notifier, store storage.RunStore) (*service.Monitor, error) {
	thresholds, err := a.thresholds()
	if err != nil {
		return nil, err
	}

	return service.New(service.Options{
		Symbol:     a.Config.Monitor.Symbol,
		Interval:   a.Config.Monitor.Interval,
		Thresholds: thresholds,
		Title:      a.Config.Alerting.Title,
		Location:   a.Config.Location(),
		LockKey:    a.Config.Database.AdvisoryLockKey,
	}, samp, notifier, store, a.Logger), nil
}

// Run executes one bounded monitoring run.
func (a *App) Run(ctx context.Context) error {
	if err := a.Config.ValidateMonitor(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	source, err := a.newSource()
	if err != nil {
		return err
	}
	m := a.Config.Monitor
	samp, err := sampler.New(source, sampler.Options{
		Cadence:      m.Cadence,
		Duration:     m.Duration,
		StartupDelay: m.StartupDelay,
	}, a.Logger)
	if err != nil {
		return err
	}

	notifier, err := a.newNotifier()
	if err != nil {
		return err
	}
	if notifier == nil {
		a.Logger.Info().Msg("alerting disabled; summary will only be printed")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("database unavailable; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	var runStore storage.RunStore
	if store != nil {
		runStore = store
	}

	monitor, err := a.newMonitor(samp, notifier, runStore)
	if err != nil {
		return err
	}

	report, err := monitor.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			a.Logger.Warn().Int("samples", len(report.Samples)).Msg("monitoring interrupted")
		}
		return err
	}

	a.prune(ctx, runStore)
	return a.finish(report)
}

// prune drops stored runs past the retention window.
func (a *App) prune(ctx context.Context, store storage.RunStore) {
	retention := a.Config.Database.Retention
	if store == nil || retention <= 0 {
		return
	}

	cutoff := time.Now().Add(-retention)
	deleted, err := store.DeleteRunsBefore(ctx, cutoff)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("failed to prune old runs")
		return
	}
	if deleted > 0 {
		a.Logger.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("pruned old runs")
	}
}

func (a *App) finish(report service.Report) error {
	printReport(a.Out, report)
	a.dump(report)

	if report.Degraded() {
		return fmt.Errorf("%w: %s", ErrDegraded, report.Outcome)
	}
	return nil
}

// ExportOptions select a stored run and the files to write.
type ExportOptions struct {
	RunID    string
	JSONPath string
	CSVPath  string
	PNGPath  string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// SimulateOptions describe a synthetic price ramp.
type SimulateOptions struct {
	Opening float64
	Closing float64
	Points  int
}
