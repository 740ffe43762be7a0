package detector

import (
	"context"
	"fmt"

	"account-health-alerts/internal/alert"
	"account-health-alerts/internal/snapshot"
)

// BuyBoxMissing flags ASINs with zero buy-box ownership share.
type BuyBoxMissing struct {
	deps Deps
}

// NewBuyBoxMissing constructs the buy-box detector.
func NewBuyBoxMissing(deps Deps) *BuyBoxMissing {
	return &BuyBoxMissing{deps: deps}
}

func (d *BuyBoxMissing) Kind() alert.Kind { return alert.KindBuyBoxMissing }

// Detect scans the latest buy-box snapshot; null or absent shares count as zero.
func (d *BuyBoxMissing) Detect(ctx context.Context, target Target) Outcome {
	snap, err := d.deps.Snapshots.GetLatestSnapshot(ctx, target.AccountID, snapshot.KindBuyBox, target.Region, target.Country)
	if err != nil {
		return failed(fmt.Errorf("load buy-box snapshot: %w", err))
	}
	if snap == nil {
		return skipped(SkipNoData)
	}
	seen, err := d.deps.alreadyAlerted(ctx, target, d.Kind(), snap.CreatedAt)
	if err != nil {
		return failed(err)
	}
	if seen {
		return Outcome{}
	}

	records, err := snapshot.DecodeBuyBox(*snap)
	if err != nil {
		return failed(err)
	}

	var findings []alert.ProductFinding
	for _, rec := range records {
		share := rec.ShareValue()
		if !share.IsZero() {
			continue
		}
		findings = append(findings, alert.ProductFinding{
			ASIN:    rec.ASIN,
			SKU:     rec.SKU,
			Title:   rec.Title,
			Value:   "0",
			Message: "no buy-box ownership",
		})
	}
	if len(findings) == 0 {
		return Outcome{}
	}

	message := fmt.Sprintf("%d product(s) lost the buy box", len(findings))
	metadata := map[string]any{
		"snapshot_id":         snap.ID,
		"snapshot_created_at": snap.CreatedAt,
	}
	a, buildErr := alert.NewProductAlert(target.AccountID, target.Region, target.Country, d.Kind(), message, findings, metadata)
	return d.deps.create(ctx, a, buildErr)
}
