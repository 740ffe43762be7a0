package detector

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"account-health-alerts/internal/alert"
	"account-health-alerts/internal/snapshot"
)

// NegativeReviews flags ASINs whose star rating sits below the rating floor.
type NegativeReviews struct {
	deps Deps
}

// NewNegativeReviews constructs the review rating detector.
func NewNegativeReviews(deps Deps) *NegativeReviews {
	return &NegativeReviews{deps: deps}
}

func (d *NegativeReviews) Kind() alert.Kind { return alert.KindNegativeReviews }

// Detect scans the latest review snapshot for sub-floor ratings.
func (d *NegativeReviews) Detect(ctx context.Context, target Target) Outcome {
	snap, err := d.deps.Snapshots.GetLatestSnapshot(ctx, target.AccountID, snapshot.KindReviews, target.Region, target.Country)
	if err != nil {
		return failed(fmt.Errorf("load review snapshot: %w", err))
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

	records, err := snapshot.DecodeReviews(*snap)
	if err != nil {
		return failed(err)
	}

	floor := d.deps.Params.RatingFloor
	var findings []alert.ProductFinding
	for _, rec := range records {
		rating, parseErr := decimal.NewFromString(strings.TrimSpace(rec.Rating))
		if parseErr != nil {
			// non-numeric ratings are excluded, not flagged
			continue
		}
		if rating.LessThan(floor) {
			findings = append(findings, alert.ProductFinding{
				ASIN:    rec.ASIN,
				SKU:     rec.SKU,
				Title:   rec.Title,
				Value:   rating.String(),
				Message: fmt.Sprintf("star rating %s below %s", rating, floor),
			})
		}
	}
	if len(findings) == 0 {
		return Outcome{}
	}

	message := fmt.Sprintf("%d product(s) rated below %s stars", len(findings), floor)
	metadata := map[string]any{
		"snapshot_id":         snap.ID,
		"snapshot_created_at": snap.CreatedAt,
		"rating_floor":        floor.String(),
	}
	a, buildErr := alert.NewProductAlert(target.AccountID, target.Region, target.Country, d.Kind(), message, findings, metadata)
	return d.deps.create(ctx, a, buildErr)
}
