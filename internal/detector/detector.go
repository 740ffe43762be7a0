// Package detector implements the per-condition detection algorithms. Each
// detector reads one or two snapshots, flags findings, and persists at most
// one alert per run; it never sends notifications itself.
package detector

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"account-health-alerts/internal/alert"
	"account-health-alerts/internal/config"
	"account-health-alerts/internal/storage"
)

// Skip reasons distinguish a no-op from a fault.
const (
	SkipNoData              = "no data"
	SkipInsufficientHistory = "insufficient snapshot history"
	SkipStaleData           = "stale data"
)

// Target addresses one account on one marketplace.
type Target struct {
	AccountID string
	Region    string
	Country   string
}

// Outcome is the ephemeral result of one detector execution.
type Outcome struct {
	Created       bool
	Count         int
	Alert         *alert.Alert
	SkippedReason string
	Err           string
}

// Detector evaluates one alert condition for a target.
type Detector interface {
	Kind() alert.Kind
	Detect(ctx context.Context, target Target) Outcome
}

// Params carries the tunable thresholds shared by the detectors.
type Params struct {
	RatingFloor       decimal.Decimal
	DropThresholdPct  decimal.Decimal
	ReplenishQtyFloor decimal.Decimal
	SalesWindowDays   int
	ReportMaxAge      time.Duration
}

// ParamsFromConfig converts configured thresholds into detection parameters.
func ParamsFromConfig(cfg config.DetectorConfig) Params {
	return Params{
		RatingFloor:       cfg.RatingFloorDecimal(),
		DropThresholdPct:  cfg.DropThresholdDecimal(),
		ReplenishQtyFloor: decimal.NewFromInt(int64(cfg.ReplenishQtyFloor)),
		SalesWindowDays:   cfg.SalesWindowDays,
		ReportMaxAge:      time.Duration(cfg.ReportMaxAgeDays) * 24 * time.Hour,
	}
}

// Deps bundles the collaborators every detector needs.
type Deps struct {
	Snapshots storage.SnapshotStore
	Alerts    storage.AlertWriter
	Params    Params
	Now       func() time.Time
	Logger    zerolog.Logger
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// All builds the full detector set in detection order.
func All(deps Deps) []Detector {
	return []Detector{
		NewProductContentChange(deps),
		NewBuyBoxMissing(deps),
		NewNegativeReviews(deps),
		NewAPlusMissing(deps),
		NewSalesDrop(deps),
		NewConversionRates(deps),
		NewLowInventory(deps),
		NewStrandedInventory(deps),
		NewInboundShipment(deps),
	}
}

func skipped(reason string) Outcome {
	return Outcome{SkippedReason: reason}
}

func failed(err error) Outcome {
	return Outcome{Err: err.Error()}
}

// create persists a freshly built alert, translating construction and write
// failures into the outcome error channel.
func (d Deps) create(ctx context.Context, a alert.Alert, buildErr error) Outcome {
	if buildErr != nil {
		return failed(buildErr)
	}
	stored, err := d.Alerts.CreateAlert(ctx, a)
	if err != nil {
		// finding lost for this run; no retry queue in-core
		return failed(fmt.Errorf("persist %s alert: %w", a.Kind, err))
	}
	d.Logger.Info().
		Str("account_id", stored.AccountID).
		Str("kind", string(stored.Kind)).
		Int("findings", stored.Payload.Count()).
		Msg("alert created")
	return Outcome{Created: true, Count: stored.Payload.Count(), Alert: &stored}
}

// alreadyAlerted reports whether the newest alert of the kind was created at
// or after the snapshot under evaluation. Once a snapshot has been reflected
// in an alert, re-running over it must not fire again; only a fresh snapshot
// re-arms the detector.
func (d Deps) alreadyAlerted(ctx context.Context, target Target, kind alert.Kind, snapshotAt time.Time) (bool, error) {
	last, err := d.Alerts.LatestAlert(ctx, target.AccountID, kind, target.Region, target.Country)
	if err != nil {
		return false, fmt.Errorf("load latest %s alert: %w", kind, err)
	}
	return last != nil && !last.CreatedAt.Before(snapshotAt), nil
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
