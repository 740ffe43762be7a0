package detector

import (
	"context"
	"fmt"

	"account-health-alerts/internal/alert"
	"account-health-alerts/internal/snapshot"
)

// ConversionRates flags days whose unit-session percentage fell sharply
// versus the previous day, over the same trailing window as SalesDrop.
type ConversionRates struct {
	deps Deps
}

// NewConversionRates constructs the conversion-rate time-series detector.
func NewConversionRates(deps Deps) *ConversionRates {
	return &ConversionRates{deps: deps}
}

func (d *ConversionRates) Kind() alert.Kind { return alert.KindConversionRates }

// Detect compares consecutive days' conversion rates inside the fixed window.
func (d *ConversionRates) Detect(ctx context.Context, target Target) Outcome {
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
		pct, ok := dropPct(prev.UnitSessionPct, curr.UnitSessionPct)
		if !ok || pct.LessThan(threshold) {
			continue
		}
		conversionDrop := pct
		findings = append(findings, alert.DayFinding{
			Date:              curr.Date.Time,
			ConversionDropPct: &conversionDrop,
			Message:           "day-over-day conversion drop",
		})
	}
	if len(findings) == 0 {
		return Outcome{}
	}

	message := fmt.Sprintf("conversion rate dropped sharply on %d day(s)", len(findings))
	metadata := map[string]any{
		"snapshot_id":   snap.ID,
		"window_from":   from,
		"window_to":     to,
		"threshold_pct": threshold.String(),
	}
	a, buildErr := alert.NewSeriesAlert(target.AccountID, target.Region, target.Country, d.Kind(), message, from, to, findings, metadata)
	return d.deps.create(ctx, a, buildErr)
}
