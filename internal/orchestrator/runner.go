// Package orchestrator drives full detection runs: it enumerates eligible
// accounts, processes them in paced batches, and reports run statistics.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"account-health-alerts/internal/aggregator"
	"account-health-alerts/internal/storage"
)

// Processor handles one account end to end.
type Processor interface {
	ProcessAccount(ctx context.Context, acct storage.Account) (aggregator.Summary, error)
}

// Options tune a detection run.
type Options struct {
	BatchSize  int
	BatchPause time.Duration
	LockKey    int64
}

// Stats summarises a completed run.
type Stats struct {
	Enumerated int
	Processed  int
	Failed     int
	Duration   time.Duration
}

// Runner executes one detection pass over all eligible accounts.
type Runner struct {
	accounts  storage.AccountSource
	processor Processor
	locker    storage.AdvisoryLocker
	opts      Options
	logger    zerolog.Logger
}

// New constructs a Runner. A nil locker disables run-level mutual exclusion.
func New(accounts storage.AccountSource, processor Processor, locker storage.AdvisoryLocker, opts Options, logger zerolog.Logger) *Runner {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	return &Runner{
		accounts:  accounts,
		processor: processor,
		locker:    locker,
		opts:      opts,
		logger:    logger.With().Str("component", "runner").Logger(),
	}
}

// ErrRunInProgress reports that another process already holds the run lock.
var ErrRunInProgress = fmt.Errorf("a detection run is already in progress")

// Run processes every eligible account in batches. Account-level failures are
// counted and logged but never abort the run; only enumeration failures or a
// held lock do.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	start := time.Now()

	if r.locker != nil && r.opts.LockKey != 0 {
		unlock, acquired, err := r.locker.TryAdvisoryLock(ctx, r.opts.LockKey)
		if err != nil {
			return Stats{}, fmt.Errorf("acquire run lock: %w", err)
		}
		if !acquired {
			return Stats{}, ErrRunInProgress
		}
		defer unlock()
	}

	accounts, err := r.accounts.ListEligibleAccounts(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("list eligible accounts: %w", err)
	}

	stats := Stats{Enumerated: len(accounts)}
	r.logger.Info().Int("accounts", len(accounts)).Int("batch_size", r.opts.BatchSize).Msg("starting detection run")

	batches := chunkAccounts(accounts, r.opts.BatchSize)
	for i, batch := range batches {
		failed := r.runBatch(ctx, batch)

		stats.Processed += len(batch)
		stats.Failed += failed

		if i < len(batches)-1 && r.opts.BatchPause > 0 {
			timer := time.NewTimer(r.opts.BatchPause)
			select {
			case <-ctx.Done():
				timer.Stop()
				stats.Duration = time.Since(start)
				return stats, ctx.Err()
			case <-timer.C:
			}
		}
	}

	stats.Duration = time.Since(start)
	r.logger.Info().
		Int("processed", stats.Processed).
		Int("failed", stats.Failed).
		Dur("duration", stats.Duration).
		Msg("detection run complete")
	return stats, nil
}

// runBatch processes one batch concurrently and returns the failure count.
func (r *Runner) runBatch(ctx context.Context, batch []storage.Account) int {
	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := 0

	for _, acct := range batch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.runAccount(ctx, acct); err != nil {
				r.logger.Error().Err(err).Str("account_id", acct.ID).Msg("account processing failed")
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return failed
}

// runAccount shields the run from a panicking processor.
func (r *Runner) runAccount(ctx context.Context, acct storage.Account) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic processing account %s: %v", acct.ID, rec)
		}
	}()

	_, err = r.processor.ProcessAccount(ctx, acct)
	return err
}

func chunkAccounts(accounts []storage.Account, size int) [][]storage.Account {
	if size <= 0 || len(accounts) == 0 {
		if len(accounts) == 0 {
			return nil
		}
		return [][]storage.Account{accounts}
	}
	var batches [][]storage.Account
	for start := 0; start < len(accounts); start += size {
		end := start + size
		if end > len(accounts) {
			end = len(accounts)
		}
		batches = append(batches, accounts[start:end])
	}
	return batches
}
