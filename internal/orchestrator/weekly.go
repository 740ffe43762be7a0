package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked at each scheduled fire time.
type TickFunc func(ctx context.Context, fireAt time.Time) error

// WeeklyOptions configure the weekly schedule.
type WeeklyOptions struct {
	Days         map[time.Weekday]bool
	Hour         int
	Minute       int
	Location     *time.Location
	StartupDelay time.Duration
}

// Weekly fires a tick at a fixed local time on configured weekdays.
type Weekly struct {
	opts   WeeklyOptions
	logger zerolog.Logger
}

// NewWeekly constructs a Weekly scheduler.
func NewWeekly(opts WeeklyOptions, logger zerolog.Logger) (*Weekly, error) {
	if len(opts.Days) == 0 {
		return nil, fmt.Errorf("at least one weekday is required")
	}
	if opts.Hour < 0 || opts.Hour > 23 || opts.Minute < 0 || opts.Minute > 59 {
		return nil, fmt.Errorf("invalid fire time %02d:%02d", opts.Hour, opts.Minute)
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Weekly{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}, nil
}

// Run blocks, invoking tick at each scheduled fire time until ctx is cancelled.
func (w *Weekly) Run(ctx context.Context, tick TickFunc) error {
	if w.opts.StartupDelay > 0 {
		timer := time.NewTimer(w.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	for {
		next := w.nextFire(time.Now().In(w.opts.Location))
		w.logger.Debug().Time("next_fire", next).Msg("waiting for next scheduled run")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			timer.Stop()
		}

		w.logger.Info().Time("fire_at", next).Msg("executing scheduled run")
		if err := tick(ctx, next); err != nil {
			w.logger.Error().Err(err).Time("fire_at", next).Msg("scheduled run failed")
		}
	}
}

// nextFire returns the first configured weekday fire time strictly after now.
func (w *Weekly) nextFire(now time.Time) time.Time {
	for offset := 0; offset <= 7; offset++ {
		day := now.AddDate(0, 0, offset)
		if !w.opts.Days[day.Weekday()] {
			continue
		}
		fire := time.Date(day.Year(), day.Month(), day.Day(), w.opts.Hour, w.opts.Minute, 0, 0, w.opts.Location)
		if fire.After(now) {
			return fire
		}
	}
	// unreachable with a non-empty day set, but keep the loop honest
	return now.AddDate(0, 0, 7)
}

// ParseWeekdays converts day names ("monday", "thu") into a weekday set.
func ParseWeekdays(names []string) (map[time.Weekday]bool, error) {
	long := map[string]time.Weekday{
		"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
		"wednesday": time.Wednesday, "thursday": time.Thursday,
		"friday": time.Friday, "saturday": time.Saturday,
	}
	short := map[string]time.Weekday{
		"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday,
		"wed": time.Wednesday, "thu": time.Thursday, "fri": time.Friday,
		"sat": time.Saturday,
	}

	days := make(map[time.Weekday]bool, len(names))
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if day, ok := long[key]; ok {
			days[day] = true
			continue
		}
		if day, ok := short[key]; ok {
			days[day] = true
			continue
		}
		return nil, fmt.Errorf("unknown weekday %q", name)
	}
	return days, nil
}

// ParseFireTime splits a "15:04" clock string into hour and minute.
func ParseFireTime(at string) (int, int, error) {
	parsed, err := time.Parse("15:04", at)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid fire time %q: %w", at, err)
	}
	return parsed.Hour(), parsed.Minute(), nil
}
