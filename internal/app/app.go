package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"account-health-alerts/internal/aggregator"
	"account-health-alerts/internal/config"
	"account-health-alerts/internal/detector"
	"account-health-alerts/internal/notify"
	"account-health-alerts/internal/orchestrator"
	"account-health-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn not configured")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newAccountNotifier() notify.Notifier {
	if !a.Config.Notify.Enabled {
		return nil
	}
	cfg := a.Config.Notify.SendGrid
	return notify.NewEmailNotifier(notify.EmailOptions{
		APIKey:    cfg.APIKey,
		FromEmail: cfg.FromEmail,
		FromName:  cfg.FromName,
	}, a.Logger)
}

func (a *App) newOpsNotifier() notify.OpsNotifier {
	if !a.Config.Notify.Telegram.Enabled {
		return nil
	}
	cfg := a.Config.Notify.Telegram
	return notify.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
}

// newRunner wires detectors, aggregator, and batch runner over one store.
func (a *App) newRunner(store *storage.Store) *orchestrator.Runner {
	detectors := detector.All(detector.Deps{
		Snapshots: store,
		Alerts:    store,
		Params:    detector.ParamsFromConfig(a.Config.Detectors),
		Logger:    a.Logger,
	})

	agg := aggregator.New(detectors, a.newAccountNotifier(), a.Logger)

	return orchestrator.New(store, agg, store, orchestrator.Options{
		BatchSize:  a.Config.Batch.Size,
		BatchPause: a.Config.Batch.Pause,
		LockKey:    a.Config.Scheduler.AdvisoryLockKey,
	}, a.Logger)
}

func (a *App) newWeekly() (*orchestrator.Weekly, error) {
	days, err := orchestrator.ParseWeekdays(a.Config.Scheduler.Days)
	if err != nil {
		return nil, err
	}
	hour, minute, err := orchestrator.ParseFireTime(a.Config.Scheduler.At)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(a.Config.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}

	return orchestrator.NewWeekly(orchestrator.WeeklyOptions{
		Days:         days,
		Hour:         hour,
		Minute:       minute,
		Location:     loc,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)
}

// Run executes the long-running weekly detection service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	weekly, err := a.newWeekly()
	if err != nil {
		return err
	}

	runner := a.newRunner(store)
	ops := a.newOpsNotifier()

	a.Logger.Info().
		Strs("days", a.Config.Scheduler.Days).
		Str("at", a.Config.Scheduler.At).
		Str("timezone", a.Config.Scheduler.Timezone).
		Msg("starting detection service")

	err = weekly.Run(ctx, func(ctx context.Context, fireAt time.Time) error {
		stats, err := runner.Run(ctx)
		if errors.Is(err, orchestrator.ErrRunInProgress) {
			a.Logger.Warn().Time("fire_at", fireAt).Msg("skipping run; another instance holds the lock")
			return nil
		}
		if err != nil {
			return err
		}
		a.reportRun(ctx, ops, fireAt, stats)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("detection service terminated with error")
		return err
	}

	a.Logger.Info().Msg("detection service stopped")
	return nil
}

// RunStats is the external shape of one run's statistics.
type RunStats struct {
	ProcessedAccounts int     `json:"processedAccounts"`
	FailedAccounts    int     `json:"failedAccounts"`
	DurationSeconds   float64 `json:"durationSeconds"`
}

// RunOnce executes a single detection pass immediately and prints its stats.
func (a *App) RunOnce(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	runner := a.newRunner(store)

	stats, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	a.reportRun(ctx, a.newOpsNotifier(), time.Now().UTC(), stats)

	out := RunStats{
		ProcessedAccounts: stats.Processed,
		FailedAccounts:    stats.Failed,
		DurationSeconds:   stats.Duration.Seconds(),
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func (a *App) reportRun(ctx context.Context, ops notify.OpsNotifier, firedAt time.Time, stats orchestrator.Stats) {
	if ops == nil {
		return
	}
	report := notify.RunReport{
		FiredAt:    firedAt,
		Enumerated: stats.Enumerated,
		Processed:  stats.Processed,
		Failed:     stats.Failed,
		Duration:   stats.Duration,
	}
	if err := ops.ReportRun(ctx, report); err != nil {
		a.Logger.Error().Err(err).Msg("failed to push run report")
	}
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ExportOptions hold parameters for exporting alert history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	CSVPath   string
	PNGPath   string
	MaxPoints int
}

// PurgeOptions configure alert retention cleanup.
type PurgeOptions struct {
	RetentionDays int
}
