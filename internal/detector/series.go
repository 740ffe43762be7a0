package detector

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"account-health-alerts/internal/snapshot"
)

var decHundred = decimal.NewFromInt(100)

// windowBounds returns the inclusive UTC day range of length days ending yesterday.
func windowBounds(now time.Time, days int) (from, to time.Time) {
	to = now.UTC().Truncate(24 * time.Hour).AddDate(0, 0, -1)
	from = to.AddDate(0, 0, -(days - 1))
	return from, to
}

// daysInWindow filters records to the window and sorts them ascending by date.
func daysInWindow(records []snapshot.DayRecord, from, to time.Time) []snapshot.DayRecord {
	filtered := make([]snapshot.DayRecord, 0, len(records))
	for _, rec := range records {
		day := rec.Date.Time
		if day.IsZero() || day.Before(from) || day.After(to) {
			continue
		}
		filtered = append(filtered, rec)
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Date.Time.Before(filtered[j].Date.Time)
	})
	return filtered
}

// dropPct computes (prev-curr)/prev*100; a non-positive prev yields no verdict.
func dropPct(prev, curr decimal.Decimal) (decimal.Decimal, bool) {
	if prev.Sign() <= 0 {
		return decimal.Decimal{}, false
	}
	return prev.Sub(curr).Div(prev).Mul(decHundred), true
}

// consecutiveDays reports whether curr is the calendar day after prev.
func consecutiveDays(prev, curr time.Time) bool {
	return prev.AddDate(0, 0, 1).Equal(curr)
}
