package detector

import (
	"context"
	"fmt"

	"account-health-alerts/internal/alert"
	"account-health-alerts/internal/snapshot"
)

// ReportDetector covers the report-driven conditions where every row is a
// finding: stranded inventory and inbound shipment non-compliance. The report
// must have been produced within the configured freshness window.
type ReportDetector struct {
	deps     Deps
	kind     alert.Kind
	snapKind snapshot.Kind
	message  string
}

// NewStrandedInventory constructs the stranded inventory report detector.
func NewStrandedInventory(deps Deps) *ReportDetector {
	return &ReportDetector{
		deps:     deps,
		kind:     alert.KindStrandedInventory,
		snapKind: snapshot.KindStrandedInventory,
		message:  "stranded inventory",
	}
}

// NewInboundShipment constructs the inbound non-compliance report detector.
func NewInboundShipment(deps Deps) *ReportDetector {
	return &ReportDetector{
		deps:     deps,
		kind:     alert.KindInboundShipment,
		snapKind: snapshot.KindInboundNonCompliance,
		message:  "inbound shipment problem",
	}
}

func (d *ReportDetector) Kind() alert.Kind { return d.kind }

// Detect flags every row of a sufficiently fresh report.
func (d *ReportDetector) Detect(ctx context.Context, target Target) Outcome {
	snap, err := d.deps.Snapshots.GetLatestSnapshot(ctx, target.AccountID, d.snapKind, target.Region, target.Country)
	if err != nil {
		return failed(fmt.Errorf("load %s snapshot: %w", d.snapKind, err))
	}
	if snap == nil {
		return skipped(SkipNoData)
	}
	if d.deps.now().Sub(snap.CreatedAt) > d.deps.Params.ReportMaxAge {
		return skipped(SkipStaleData)
	}
	seen, err := d.deps.alreadyAlerted(ctx, target, d.kind, snap.CreatedAt)
	if err != nil {
		return failed(err)
	}
	if seen {
		return Outcome{}
	}

	rows, err := snapshot.DecodeReportRows(*snap, d.snapKind)
	if err != nil {
		return failed(err)
	}
	if len(rows) == 0 {
		return Outcome{}
	}

	findings := make([]alert.ProductFinding, 0, len(rows))
	for _, row := range rows {
		msg := d.message
		if row.Reason != "" {
			msg = row.Reason
		}
		finding := alert.ProductFinding{
			ASIN:    row.ASIN,
			SKU:     row.SKU,
			Title:   row.Title,
			Message: msg,
		}
		if row.ShipmentID != "" {
			finding.Value = row.ShipmentID
		}
		findings = append(findings, finding)
	}

	message := fmt.Sprintf("%d product(s) flagged: %s", len(findings), d.message)
	metadata := map[string]any{
		"snapshot_id":         snap.ID,
		"snapshot_created_at": snap.CreatedAt,
		"max_age":             d.deps.Params.ReportMaxAge.String(),
	}
	a, buildErr := alert.NewProductAlert(target.AccountID, target.Region, target.Country, d.kind, message, findings, metadata)
	return d.deps.create(ctx, a, buildErr)
}
