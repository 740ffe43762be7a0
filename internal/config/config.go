package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"account-health-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Detectors DetectorConfig  `mapstructure:"detectors"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs the weekly detection cadence.
type SchedulerConfig struct {
	Days            []string      `mapstructure:"days"`
	At              string        `mapstructure:"at"`
	Timezone        string        `mapstructure:"timezone"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// BatchConfig bounds per-run resource use against downstream systems.
type BatchConfig struct {
	Size  int           `mapstructure:"size"`
	Pause time.Duration `mapstructure:"pause"`
}

// DetectorConfig holds the detection thresholds.
type DetectorConfig struct {
	RatingFloor       float64 `mapstructure:"rating_floor"`
	DropThresholdPct  float64 `mapstructure:"drop_threshold_pct"`
	ReplenishQtyFloor int     `mapstructure:"replenish_qty_floor"`
	SalesWindowDays   int     `mapstructure:"sales_window_days"`
	ReportMaxAgeDays  int     `mapstructure:"report_max_age_days"`
}

// NotifyConfig defines notification routing.
type NotifyConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	SendGrid SendGridConfig `mapstructure:"sendgrid"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// SendGridConfig covers the consolidated account email channel.
type SendGridConfig struct {
	APIKey    string `mapstructure:"api_key"`
	FromEmail string `mapstructure:"from_email"`
	FromName  string `mapstructure:"from_name"`
}

// TelegramConfig covers the operational run-report channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SELLERWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "sellerwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.days", []string{"monday", "thursday"})
	v.SetDefault("scheduler.at", "07:00")
	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.advisory_lock_key", int64(0x73656c77))

	v.SetDefault("batch.size", 10)
	v.SetDefault("batch.pause", "1s")

	v.SetDefault("detectors.rating_floor", 4.0)
	v.SetDefault("detectors.drop_threshold_pct", 40.0)
	v.SetDefault("detectors.replenish_qty_floor", 30)
	v.SetDefault("detectors.sales_window_days", 8)
	v.SetDefault("detectors.report_max_age_days", 3)

	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.sendgrid.from_name", "Seller Watch")
	v.SetDefault("notify.telegram.enabled", false)
	v.SetDefault("notify.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
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

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if len(c.Scheduler.Days) == 0 {
		return fmt.Errorf("scheduler.days must name at least one weekday")
	}
	if _, err := time.Parse("15:04", c.Scheduler.At); err != nil {
		return fmt.Errorf("scheduler.at must be HH:MM: %w", err)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("scheduler.timezone invalid: %w", err)
	}
	if c.Batch.Size <= 0 {
		return fmt.Errorf("batch.size must be greater than zero")
	}
	if c.Batch.Pause < 0 {
		return fmt.Errorf("batch.pause cannot be negative")
	}
	if c.Detectors.RatingFloor <= 0 {
		return fmt.Errorf("detectors.rating_floor must be greater than zero")
	}
	if c.Detectors.DropThresholdPct <= 0 {
		return fmt.Errorf("detectors.drop_threshold_pct must be greater than zero")
	}
	if c.Detectors.SalesWindowDays < 2 {
		return fmt.Errorf("detectors.sales_window_days must cover at least two days")
	}
	if c.Detectors.ReportMaxAgeDays <= 0 {
		return fmt.Errorf("detectors.report_max_age_days must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Notify.Enabled && c.Notify.SendGrid.APIKey == "" {
		return fmt.Errorf("notify.sendgrid.api_key required when notifications are enabled")
	}
	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" {
			return fmt.Errorf("notify.telegram.bot_token required when the ops channel is enabled")
		}
		if c.Notify.Telegram.ChatID == "" {
			return fmt.Errorf("notify.telegram.chat_id required when the ops channel is enabled")
		}
	}
	return nil
}

// RatingFloorDecimal returns the review threshold as a decimal.
func (c DetectorConfig) RatingFloorDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.RatingFloor)
}

// DropThresholdDecimal returns the drop threshold as a decimal percentage.
func (c DetectorConfig) DropThresholdDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.DropThresholdPct)
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
