package detector

import (
	"context"
	"fmt"

	"account-health-alerts/internal/alert"
	"account-health-alerts/internal/snapshot"
)

// SalesDrop flags days in the trailing window whose revenue or unit volume
// fell by at least the configured percentage versus the previous day.
type SalesDrop struct {
	deps Deps
}

// NewSalesDrop constructs the sales time-series detector.
func NewSalesDrop(deps Deps) *SalesDrop {
	return &SalesDrop{deps: deps}
}

func (d *SalesDrop) Kind() alert.Kind { return alert.KindSalesDrop }

// Detect compares consecutive days inside the fixed window ending yesterday.
func (d *SalesDrop) Detect(ctx context.Context, target Target) Outcome {
	snap, err := d.deps.Snapshots.GetLatestSnapshot(ctx, target.AccountID, snapshot.KindSalesTraffic, target.Region, target.Country)
	if err != nil {
		return failed(fmt.Errorf("load sales snapshot: %w", err))
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

	records, err := snapshot.DecodeSalesTraffic(*snap)
	if err != nil {
		return failed(err)
	}

	from, to := windowBounds(d.deps.now(), d.deps.Params.SalesWindowDays)
	days := daysInWindow(records, from, to)
	threshold := d.deps.Params.DropThresholdPct

	var findings []alert.DayFinding
	for i := 1; i < len(days); i++ {
		prev, curr := days[i-1], days[i]
		if !consecutiveDays(prev.Date.Time, curr.Date.Time) {
			continue
		}

		finding := alert.DayFinding{Date: curr.Date.Time}
		flagged := false
		if pct, ok := dropPct(prev.Revenue, curr.Revenue); ok && pct.GreaterThanOrEqual(threshold) {
			revenueDrop := pct
			finding.RevenueDropPct = &revenueDrop
			flagged = true
		}
		if pct, ok := dropPct(prev.Units, curr.Units); ok && pct.GreaterThanOrEqual(threshold) {
			unitsDrop := pct
			finding.UnitsDropPct = &unitsDrop
			flagged = true
		}
		if flagged {
			finding.Message = "day-over-day sales drop"
			findings = append(findings, finding)
		}
	}
	if len(findings) == 0 {
		return Outcome{}
	}

	message := fmt.Sprintf("sales dropped sharply on %d day(s)", len(findings))
	metadata := map[string]any{
		"snapshot_id":   snap.ID,
		"window_from":   from,
		"window_to":     to,
		"threshold_pct": threshold.String(),
	}
	a, buildErr := alert.NewSeriesAlert(target.AccountID, target.Region, target.Country, d.Kind(), message, from, to, findings, metadata)
	return d.deps.create(ctx, a, buildErr)
}
