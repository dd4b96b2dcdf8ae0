package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"price-frame-monitor/internal/logging"
)

const envPrefix = "PRICEMON"

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Source   SourceConfig   `mapstructure:"source"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Database DatabaseConfig `mapstructure:"database"`
	Dump     DumpConfig     `mapstructure:"dump"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// MonitorConfig describes one monitoring run.
type MonitorConfig struct {
	Symbol       string        `mapstructure:"symbol"`
	Duration     time.Duration `mapstructure:"duration"`
	Interval     time.Duration `mapstructure:"interval"`
	Cadence      time.Duration `mapstructure:"cadence"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// SourceConfig selects and configures the price source.
type SourceConfig struct {
	Kind    string        `mapstructure:"kind"`
	Binance BinanceConfig `mapstructure:"binance"`
	Vault   VaultConfig   `mapstructure:"vault"`
}

// BinanceConfig covers the public REST API.
type BinanceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// VaultConfig covers on-chain ERC-4626 share pricing.
type VaultConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	ShareDecimals  int32         `mapstructure:"share_decimals"`
	AssetDecimals  int32         `mapstructure:"asset_decimals"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AlertingConfig defines the alert gate and routing.
type AlertingConfig struct {
	Enabled                bool           `mapstructure:"enabled"`
	Title                  string         `mapstructure:"title"`
	ChangeThresholdPct     *float64       `mapstructure:"change_threshold_pct"`
	VolatilityThresholdPct *float64       `mapstructure:"volatility_threshold_pct"`
	Direction              string         `mapstructure:"direction"`
	Timezone               string         `mapstructure:"timezone"`
	Channels               []string       `mapstructure:"channels"`
	Email                  EmailConfig    `mapstructure:"email"`
	Telegram               TelegramConfig `mapstructure:"telegram"`
}

// EmailConfig describes SMTP delivery.
type EmailConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	To       []string      `mapstructure:"to"`
	TLS      string        `mapstructure:"tls"`
	SSL      bool          `mapstructure:"ssl"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TelegramConfig describes the Telegram channel.
type TelegramConfig struct {
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	// Retention deletes stored runs older than this after each run. Zero keeps everything.
	Retention time.Duration `mapstructure:"retention"`
}

// DumpConfig names optional files written after each run.
type DumpConfig struct {
	JSONPath string `mapstructure:"json_path"`
	CSVPath  string `mapstructure:"csv_path"`
	PNGPath  string `mapstructure:"png_path"`
}

var dotenvOnce sync.Once

// loadDotenv reads .env (or ENV_FILE) once. Variables already present in the
// environment win.
func loadDotenv() {
	dotenvOnce.Do(func() {
		if os.Getenv("NO_DOTENV") == "1" {
			return
		}
		if path := os.Getenv("ENV_FILE"); path != "" {
			_ = godotenv.Load(path)
			return
		}
		_ = godotenv.Load()
	})
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	loadDotenv()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pricemon")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("monitor.duration", "15m")
	v.SetDefault("monitor.interval", "5m")
	v.SetDefault("monitor.cadence", "1s")
	v.SetDefault("monitor.startup_delay", "0s")

	v.SetDefault("source.kind", "binance")
	v.SetDefault("source.binance.base_url", "https://api.binance.com")
	v.SetDefault("source.binance.request_timeout", "5s")
	v.SetDefault("source.binance.user_agent", "")
	v.SetDefault("source.vault.share_decimals", 18)
	v.SetDefault("source.vault.asset_decimals", 18)
	v.SetDefault("source.vault.request_timeout", "10s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.title", "Binance monitor")
	v.SetDefault("alerting.direction", "any")
	v.SetDefault("alerting.timezone", "UTC")
	v.SetDefault("alerting.channels", []string{"email"})
	v.SetDefault("alerting.email.port", 587)
	v.SetDefault("alerting.email.tls", "mandatory")
	v.SetDefault("alerting.email.timeout", "15s")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.advisory_lock_key", int64(0x70726d6e))
	v.SetDefault("database.retention", "0s")
}

// bindEnvs registers keys without defaults so Unmarshal sees them, along
// with the legacy unprefixed variable names.
func bindEnvs(v *viper.Viper) error {
	bindings := map[string][]string{
		"monitor.symbol":                    {envPrefix + "_MONITOR_SYMBOL", "SYMBOL"},
		"alerting.change_threshold_pct":     {envPrefix + "_ALERTING_CHANGE_THRESHOLD_PCT", "CHANGE_THRESHOLD_PCT"},
		"alerting.volatility_threshold_pct": {envPrefix + "_ALERTING_VOLATILITY_THRESHOLD_PCT", "VOLATILITY_THRESHOLD_PCT"},
		"alerting.email.host":               {envPrefix + "_ALERTING_EMAIL_HOST"},
		"alerting.email.username":           {envPrefix + "_ALERTING_EMAIL_USERNAME", "CONTACT_EMAIL_ADDRESS"},
		"alerting.email.password":           {envPrefix + "_ALERTING_EMAIL_PASSWORD", "CONTACT_EMAIL_PASSWORD"},
		"alerting.email.from":               {envPrefix + "_ALERTING_EMAIL_FROM", "CONTACT_EMAIL_ADDRESS"},
		"alerting.email.to":                 {envPrefix + "_ALERTING_EMAIL_TO"},
		"alerting.telegram.bot_token":       {envPrefix + "_ALERTING_TELEGRAM_BOT_TOKEN"},
		"alerting.telegram.chat_id":         {envPrefix + "_ALERTING_TELEGRAM_CHAT_ID"},
		"source.vault.rpc_url":              {envPrefix + "_SOURCE_VAULT_RPC_URL"},
		"database.dsn":                      {envPrefix + "_DATABASE_DSN", "DATABASE_URL"},
		"dump.json_path":                    {envPrefix + "_DUMP_JSON_PATH"},
		"dump.csv_path":                     {envPrefix + "_DUMP_CSV_PATH"},
		"dump.png_path":                     {envPrefix + "_DUMP_PNG_PATH"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs sanity checks once, at load time. Monitor settings are
// checked separately by ValidateMonitor because CLI flags may still override them.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case "binance":
	case "vault":
		if c.Source.Vault.RPCURL == "" {
			return errors.New("source.vault.rpc_url is required for the vault source")
		}
	default:
		return fmt.Errorf("source.kind %q is not supported (binance, vault)", c.Source.Kind)
	}

	a := c.Alerting
	if a.ChangeThresholdPct != nil && *a.ChangeThresholdPct < 0 {
		return errors.New("alerting.change_threshold_pct cannot be negative")
	}
	if a.VolatilityThresholdPct != nil && *a.VolatilityThresholdPct < 0 {
		return errors.New("alerting.volatility_threshold_pct cannot be negative")
	}
	switch strings.ToLower(a.Direction) {
	case "", "any", "up", "down":
	default:
		return fmt.Errorf("alerting.direction %q must be any, up or down", a.Direction)
	}
	if _, err := time.LoadLocation(a.Timezone); err != nil {
		return fmt.Errorf("alerting.timezone: %w", err)
	}

	if c.Database.Retention < 0 {
		return errors.New("database.retention cannot be negative")
	}

	if a.Enabled {
		if len(a.Channels) == 0 {
			return errors.New("alerting.channels must list at least one channel")
		}
		for _, ch := range a.Channels {
			switch ch {
			case "email":
				if a.Email.Host == "" || a.Email.From == "" {
					return errors.New("alerting.email.host and alerting.email.from must be configured")
				}
			case "telegram":
				if a.Telegram.BotToken == "" || a.Telegram.ChatID == "" {
					return errors.New("alerting.telegram.bot_token and alerting.telegram.chat_id must be configured")
				}
			default:
				return fmt.Errorf("alerting channel %q is not supported", ch)
			}
		}
	}

	return nil
}

// ValidateMonitor checks the settings of a monitoring run.
func (c *Config) ValidateMonitor() error {
	m := c.Monitor
	if strings.TrimSpace(m.Symbol) == "" {
		return errors.New("monitor.symbol is required")
	}
	if m.Duration <= 0 {
		return errors.New("monitor.duration must be greater than zero")
	}
	if m.Interval <= 0 {
		return errors.New("monitor.interval must be greater than zero")
	}
	if m.Interval > m.Duration {
		return fmt.Errorf("monitor.interval (%s) must not exceed monitor.duration (%s)", m.Interval, m.Duration)
	}
	if m.Cadence <= 0 {
		return errors.New("monitor.cadence must be greater than zero")
	}
	if m.StartupDelay < 0 {
		return errors.New("monitor.startup_delay cannot be negative")
	}
	return nil
}

// Location returns the timezone used to render notification times.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Alerting.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
