// Package aggregator runs the full detector set for one account and decides
// whether a consolidated notification goes out.
package aggregator

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"account-health-alerts/internal/alert"
	"account-health-alerts/internal/detector"
	"account-health-alerts/internal/notify"
	"account-health-alerts/internal/storage"
)

// Summary collects every detector outcome for one account run.
type Summary struct {
	AccountID string
	Outcomes  map[alert.Kind]detector.Outcome
}

// Total returns the combined finding count across kinds.
func (s Summary) Total() int {
	total := 0
	for _, out := range s.Outcomes {
		total += out.Count
	}
	return total
}

// Rows lists non-zero per-kind counts in detection order.
func (s Summary) Rows() []notify.Row {
	rows := make([]notify.Row, 0, len(s.Outcomes))
	for _, kind := range alert.Kinds() {
		out, ok := s.Outcomes[kind]
		if !ok || out.Count == 0 {
			continue
		}
		rows = append(rows, notify.Row{Kind: kind, Count: out.Count})
	}
	return rows
}

// Aggregator fans one account out over all detectors and marketplaces.
type Aggregator struct {
	detectors []detector.Detector
	notifier  notify.Notifier
	logger    zerolog.Logger
}

// New constructs an Aggregator. A nil notifier disables sending.
func New(detectors []detector.Detector, notifier notify.Notifier, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		detectors: detectors,
		notifier:  notifier,
		logger:    logger.With().Str("component", "aggregator").Logger(),
	}
}

// ProcessAccount runs every detector for every configured marketplace,
// collects all outcomes regardless of individual failure, and notifies the
// account when anything fired.
func (a *Aggregator) ProcessAccount(ctx context.Context, acct storage.Account) (Summary, error) {
	if len(acct.Regions) == 0 {
		return Summary{}, fmt.Errorf("account %s has no marketplaces configured", acct.ID)
	}

	summary := Summary{AccountID: acct.ID, Outcomes: make(map[alert.Kind]detector.Outcome, len(a.detectors))}
	var mu sync.Mutex

	for _, mp := range acct.Regions {
		target := detector.Target{AccountID: acct.ID, Region: mp.Region, Country: mp.Country}

		var group errgroup.Group
		for _, det := range a.detectors {
			group.Go(func() error {
				out := a.runOne(ctx, det, target)
				mu.Lock()
				mergeOutcome(summary.Outcomes, det.Kind(), out)
				mu.Unlock()
				return nil
			})
		}
		// detectors never return errors through the group; the barrier is the point
		_ = group.Wait()
	}

	a.maybeNotify(ctx, acct, summary)
	return summary, nil
}

// runOne executes one detector with a panic backstop; the detector contract
// says faults come back in the outcome, this is the last resort.
func (a *Aggregator) runOne(ctx context.Context, det detector.Detector, target detector.Target) (out detector.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().
				Str("account_id", target.AccountID).
				Str("kind", string(det.Kind())).
				Interface("panic", r).
				Msg("detector panicked")
			out = detector.Outcome{Err: fmt.Sprintf("panic: %v", r)}
		}
	}()

	out = det.Detect(ctx, target)
	if out.Err != "" {
		a.logger.Error().
			Str("account_id", target.AccountID).
			Str("kind", string(det.Kind())).
			Str("error", out.Err).
			Msg("detector failed")
	}
	return out
}

func (a *Aggregator) maybeNotify(ctx context.Context, acct storage.Account, summary Summary) {
	total := summary.Total()
	if total == 0 {
		return
	}
	if !acct.Subscribed {
		a.logger.Debug().Str("account_id", acct.ID).Msg("account unsubscribed; skipping notification")
		return
	}
	if a.notifier == nil {
		return
	}

	digest := notify.Summary{AccountID: acct.ID, Rows: summary.Rows(), Total: total}
	recipient := notify.Recipient{Email: acct.Email, FirstName: acct.FirstName}
	if err := a.notifier.Send(ctx, recipient, digest); err != nil {
		// delivery failures never fail the account's aggregation
		a.logger.Error().Err(err).Str("account_id", acct.ID).Msg("failed to send summary notification")
	}
}

func mergeOutcome(outcomes map[alert.Kind]detector.Outcome, kind alert.Kind, out detector.Outcome) {
	existing, ok := outcomes[kind]
	if !ok {
		outcomes[kind] = out
		return
	}
	merged := existing
	if out.Created {
		merged.Created = true
		merged.Count += out.Count
		if merged.Alert == nil {
			merged.Alert = out.Alert
		}
	}
	if out.Err != "" {
		if merged.Err != "" {
			merged.Err += "; "
		}
		merged.Err += out.Err
	}
	if merged.SkippedReason == "" {
		merged.SkippedReason = out.SkippedReason
	}
	outcomes[kind] = merged
}
