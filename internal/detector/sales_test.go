package detector

import (
	"context"
	"testing"
	"time"

	"account-health-alerts/internal/alert"
	"account-health-alerts/internal/snapshot"
)

func TestSalesDropWindowMath(t *testing.T) {
	snaps := newMemSnapshots()
	snaps.add(testTarget, snapshot.KindSalesTraffic,
		`[{"date":"2026-08-25","revenue":100,"units":10},
          {"date":"2026-08-26","revenue":100,"units":10},
          {"date":"2026-08-27","revenue":58,"units":10}]`,
		testNow.Add(-time.Hour))
	alerts := &memAlerts{}

	out := NewSalesDrop(testDeps(snaps, alerts)).Detect(context.Background(), testTarget)
	if !out.Created || out.Count != 1 {
		t.Fatalf("expected the 42%% drop flagged once, got %+v", out)
	}
	payload := out.Alert.Payload.(alert.SeriesPayload)
	day := payload.Days[0]
	if day.Date.Day() != 27 {
		t.Fatalf("expected 2026-08-27 flagged, got %v", day.Date)
	}
	if day.RevenueDropPct == nil || day.RevenueDropPct.String() != "42" {
		t.Fatalf("expected 42%% revenue drop, got %+v", day)
	}
	if day.UnitsDropPct != nil {
		t.Fatalf("units did not drop, got %+v", day)
	}
}

func TestSalesDropBelowThresholdNotFlagged(t *testing.T) {
	snaps := newMemSnapshots()
	snaps.add(testTarget, snapshot.KindSalesTraffic,
		`[{"date":"2026-08-26","revenue":100,"units":10},
          {"date":"2026-08-27","revenue":61,"units":10}]`,
		testNow.Add(-time.Hour))
	alerts := &memAlerts{}

	out := NewSalesDrop(testDeps(snaps, alerts)).Detect(context.Background(), testTarget)
	if out.Created {
		t.Fatalf("a 39%% drop must not flag, got %+v", out)
	}
}

func TestSalesDropZeroPreviousOnlyUnitsVerdict(t *testing.T) {
	snaps := newMemSnapshots()
	snaps.add(testTarget, snapshot.KindSalesTraffic,
		`[{"date":"2026-08-26","revenue":0,"units":10},
          {"date":"2026-08-27","revenue":0,"units":5}]`,
		testNow.Add(-time.Hour))
	alerts := &memAlerts{}

	out := NewSalesDrop(testDeps(snaps, alerts)).Detect(context.Background(), testTarget)
	if !out.Created || out.Count != 1 {
		t.Fatalf("expected a units-only finding, got %+v", out)
	}
	day := out.Alert.Payload.(alert.SeriesPayload).Days[0]
	if day.RevenueDropPct != nil {
		t.Fatalf("prev revenue 0 must yield no revenue verdict, got %+v", day)
	}
	if day.UnitsDropPct == nil || day.UnitsDropPct.String() != "50" {
		t.Fatalf("expected 50%% unit drop, got %+v", day)
	}
}

func TestSalesDropIgnoresDaysOutsideWindow(t *testing.T) {
	// 2026-08-10 -> 11 predates the 8-day window ending 2026-08-27
	snaps := newMemSnapshots()
	snaps.add(testTarget, snapshot.KindSalesTraffic,
		`[{"date":"2026-08-10","revenue":100,"units":10},
          {"date":"2026-08-11","revenue":10,"units":1}]`,
		testNow.Add(-time.Hour))
	alerts := &memAlerts{}

	out := NewSalesDrop(testDeps(snaps, alerts)).Detect(context.Background(), testTarget)
	if out.Created {
		t.Fatalf("drops outside the window must not flag, got %+v", out)
	}
}

func TestSalesDropNonConsecutiveDaysNoVerdict(t *testing.T) {
	snaps := newMemSnapshots()
	snaps.add(testTarget, snapshot.KindSalesTraffic,
		`[{"date":"2026-08-24","revenue":100,"units":10},
          {"date":"2026-08-27","revenue":10,"units":1}]`,
		testNow.Add(-time.Hour))
	alerts := &memAlerts{}

	out := NewSalesDrop(testDeps(snaps, alerts)).Detect(context.Background(), testTarget)
	if out.Created {
		t.Fatalf("a gap in the series must yield no verdict, got %+v", out)
	}
}

func TestConversionRatesDropFlagged(t *testing.T) {
	snaps := newMemSnapshots()
	snaps.add(testTarget, snapshot.KindSalesTraffic,
		`[{"date":"2026-08-26","revenue":100,"units":10,"sessions":200,"unit_session_pct":5},
          {"date":"2026-08-27","revenue":100,"units":10,"sessions":200,"unit_session_pct":2.5}]`,
		testNow.Add(-time.Hour))
	alerts := &memAlerts{}

	out := NewConversionRates(testDeps(snaps, alerts)).Detect(context.Background(), testTarget)
	if !out.Created || out.Count != 1 {
		t.Fatalf("expected the halved conversion rate flagged, got %+v", out)
	}
	day := out.Alert.Payload.(alert.SeriesPayload).Days[0]
	if day.ConversionDropPct == nil || day.ConversionDropPct.String() != "50" {
		t.Fatalf("expected 50%% conversion drop, got %+v", day)
	}
}
