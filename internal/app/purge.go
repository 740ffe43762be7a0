package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Purge deletes alerts older than the retention window.
func (a *App) Purge(ctx context.Context, opts PurgeOptions) error {
	if opts.RetentionDays <= 0 {
		return errors.New("retention must be at least one day")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	cutoff := time.Now().UTC().AddDate(0, 0, -opts.RetentionDays)
	deleted, err := store.DeleteAlertsBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	a.Logger.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("purged old alerts")
	fmt.Fprintf(os.Stdout, "deleted %d alerts older than %s\n", deleted, cutoff.Format("2006-01-02"))
	return nil
}
