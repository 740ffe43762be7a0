package detector

import (
	"context"
	"fmt"
	"strings"

	"account-health-alerts/internal/alert"
	"account-health-alerts/internal/snapshot"
)

// approvedAPlusStatuses are the states that count as published A+ content.
// The boolean form shows up in older snapshots.
var approvedAPlusStatuses = map[string]bool{
	"APPROVED":  true,
	"PUBLISHED": true,
	"TRUE":      true,
}

// APlusMissing flags ASINs without approved A+ content.
type APlusMissing struct {
	deps Deps
}

// NewAPlusMissing constructs the A+ content detector.
func NewAPlusMissing(deps Deps) *APlusMissing {
	return &APlusMissing{deps: deps}
}

func (d *APlusMissing) Kind() alert.Kind { return alert.KindAPlusMissing }

// Detect scans the latest A+ status snapshot; a missing status counts as missing content.
func (d *APlusMissing) Detect(ctx context.Context, target Target) Outcome {
	snap, err := d.deps.Snapshots.GetLatestSnapshot(ctx, target.AccountID, snapshot.KindAPlusStatus, target.Region, target.Country)
	if err != nil {
		return failed(fmt.Errorf("load a+ snapshot: %w", err))
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

	records, err := snapshot.DecodeAPlus(*snap)
	if err != nil {
		return failed(err)
	}

	var findings []alert.ProductFinding
	for _, rec := range records {
		status := strings.ToUpper(strings.TrimSpace(string(rec.Status)))
		if approvedAPlusStatuses[status] {
			continue
		}
		findings = append(findings, alert.ProductFinding{
			ASIN:    rec.ASIN,
			SKU:     rec.SKU,
			Title:   rec.Title,
			Value:   string(rec.Status),
			Message: "A+ content not published",
		})
	}
	if len(findings) == 0 {
		return Outcome{}
	}

	message := fmt.Sprintf("%d product(s) without A+ content", len(findings))
	metadata := map[string]any{
		"snapshot_id":         snap.ID,
		"snapshot_created_at": snap.CreatedAt,
	}
	a, buildErr := alert.NewProductAlert(target.AccountID, target.Region, target.Country, d.Kind(), message, findings, metadata)
	return d.deps.create(ctx, a, buildErr)
}
