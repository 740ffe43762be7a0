package detector

import (
	"context"
	"fmt"
	"strings"

	"account-health-alerts/internal/alert"
	"account-health-alerts/internal/snapshot"
)

// ProductContentChange flags listings whose title, description, bullets, or
// images differ between the two most recent content snapshots.
type ProductContentChange struct {
	deps Deps
}

// NewProductContentChange constructs the content diff detector.
func NewProductContentChange(deps Deps) *ProductContentChange {
	return &ProductContentChange{deps: deps}
}

// Kind returns the alert kind this detector produces.
func (d *ProductContentChange) Kind() alert.Kind { return alert.KindProductContentChange }

// Detect diffs the two most recent content snapshots per ASIN.
func (d *ProductContentChange) Detect(ctx context.Context, target Target) Outcome {
	snaps, err := d.deps.Snapshots.GetRecentSnapshots(ctx, target.AccountID, snapshot.KindProductContent, target.Region, target.Country, 2)
	if err != nil {
		return failed(fmt.Errorf("load content snapshots: %w", err))
	}
	if len(snaps) < 2 {
		return skipped(SkipInsufficientHistory)
	}
	head, base := snaps[0], snaps[1]

	// A diff already reflected in a newer alert must not re-fire until a
	// fresh snapshot advances the comparison pair.
	seen, err := d.deps.alreadyAlerted(ctx, target, d.Kind(), head.CreatedAt)
	if err != nil {
		return failed(err)
	}
	if seen {
		return Outcome{}
	}

	current, err := snapshot.DecodeContent(head)
	if err != nil {
		return failed(err)
	}
	previous, err := snapshot.DecodeContent(base)
	if err != nil {
		return failed(err)
	}

	prevByASIN := make(map[string]snapshot.ContentRecord, len(previous))
	for _, rec := range previous {
		prevByASIN[rec.ASIN] = rec
	}

	var findings []alert.ProductFinding
	for _, rec := range current {
		old, ok := prevByASIN[rec.ASIN]
		if !ok {
			continue
		}
		changed := changedFields(old, rec)
		if len(changed) == 0 {
			continue
		}
		findings = append(findings, alert.ProductFinding{
			ASIN:    rec.ASIN,
			SKU:     rec.SKU,
			Title:   rec.Title,
			Fields:  changed,
			Message: "listing content changed: " + strings.Join(changed, ", "),
		})
	}
	if len(findings) == 0 {
		return Outcome{}
	}

	message := fmt.Sprintf("%d product listing(s) changed since the previous check", len(findings))
	metadata := map[string]any{
		"base_snapshot_id": base.ID,
		"head_snapshot_id": head.ID,
		"base_created_at":  base.CreatedAt,
		"head_created_at":  head.CreatedAt,
	}
	a, buildErr := alert.NewProductAlert(target.AccountID, target.Region, target.Country, d.Kind(), message, findings, metadata)
	return d.deps.create(ctx, a, buildErr)
}

func changedFields(old, cur snapshot.ContentRecord) []string {
	var changed []string
	if normalizeText(old.Title) != normalizeText(cur.Title) {
		changed = append(changed, "title")
	}
	if !listsEqual(old.Description, cur.Description) {
		changed = append(changed, "description")
	}
	if !listsEqual(old.Bullets, cur.Bullets) {
		changed = append(changed, "bullets")
	}
	if !listsEqual(old.Images, cur.Images) {
		changed = append(changed, "images")
	}
	return changed
}

// normalizeText collapses runs of whitespace so formatting noise is not a change.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// listsEqual compares normalized lists order-sensitively.
func listsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if normalizeText(a[i]) != normalizeText(b[i]) {
			return false
		}
	}
	return true
}
