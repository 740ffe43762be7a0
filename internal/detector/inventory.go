package detector

import (
	"context"
	"fmt"

	"account-health-alerts/internal/alert"
	"account-health-alerts/internal/snapshot"
)

// LowInventory flags out-of-stock products and products whose recommended
// replenishment quantity exceeds the configured floor. The restock report is
// only trusted the day it was produced.
type LowInventory struct {
	deps Deps
}

// NewLowInventory constructs the restock inventory detector.
func NewLowInventory(deps Deps) *LowInventory {
	return &LowInventory{deps: deps}
}

func (d *LowInventory) Kind() alert.Kind { return alert.KindLowInventory }

// Detect scans the latest restock snapshot if it was created today (UTC).
func (d *LowInventory) Detect(ctx context.Context, target Target) Outcome {
	snap, err := d.deps.Snapshots.GetLatestSnapshot(ctx, target.AccountID, snapshot.KindRestockInventory, target.Region, target.Country)
	if err != nil {
		return failed(fmt.Errorf("load restock snapshot: %w", err))
	}
	if snap == nil {
		return skipped(SkipNoData)
	}
	if !sameUTCDay(snap.CreatedAt, d.deps.now()) {
		return skipped(SkipStaleData)
	}
	seen, err := d.deps.alreadyAlerted(ctx, target, d.Kind(), snap.CreatedAt)
	if err != nil {
		return failed(err)
	}
	if seen {
		return Outcome{}
	}

	records, err := snapshot.DecodeRestock(*snap)
	if err != nil {
		return failed(err)
	}

	floor := d.deps.Params.ReplenishQtyFloor
	var findings []alert.ProductFinding
	for _, rec := range records {
		// out-of-stock takes precedence over the quantity threshold
		if rec.OutOfStock {
			findings = append(findings, alert.ProductFinding{
				ASIN:    rec.ASIN,
				SKU:     rec.SKU,
				Title:   rec.Title,
				Fields:  []string{"out_of_stock"},
				Message: "out of stock",
			})
			continue
		}
		if rec.RecommendedQty.GreaterThan(floor) {
			findings = append(findings, alert.ProductFinding{
				ASIN:    rec.ASIN,
				SKU:     rec.SKU,
				Title:   rec.Title,
				Fields:  []string{"recommended_qty"},
				Value:   rec.RecommendedQty.String(),
				Message: fmt.Sprintf("replenishment of %s units recommended", rec.RecommendedQty),
			})
		}
	}
	if len(findings) == 0 {
		return Outcome{}
	}

	message := fmt.Sprintf("%d product(s) running low on inventory", len(findings))
	metadata := map[string]any{
		"snapshot_id":         snap.ID,
		"snapshot_created_at": snap.CreatedAt,
		"qty_floor":           floor.String(),
	}
	a, buildErr := alert.NewProductAlert(target.AccountID, target.Region, target.Country, d.Kind(), message, findings, metadata)
	return d.deps.create(ctx, a, buildErr)
}
