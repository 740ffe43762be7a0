package detector

import (
	"context"
	"testing"
	"time"

	"account-health-alerts/internal/alert"
	"account-health-alerts/internal/snapshot"
)

func TestLowInventoryQuantityBoundary(t *testing.T) {
	snaps := newMemSnapshots()
	snaps.add(testTarget, snapshot.KindRestockInventory,
		`[{"asin":"B1","out_of_stock":false,"recommended_qty":31},
          {"asin":"B2","out_of_stock":false,"recommended_qty":30}]`,
		testNow.Add(-time.Hour))
	alerts := &memAlerts{}

	out := NewLowInventory(testDeps(snaps, alerts)).Detect(context.Background(), testTarget)
	if !out.Created || out.Count != 1 {
		t.Fatalf("expected qty 31 flagged and 30 not, got %+v", out)
	}
	if out.Alert.Payload.(alert.ProductPayload).Products[0].ASIN != "B1" {
		t.Fatalf("expected B1 flagged, got %+v", out.Alert.Payload)
	}
}

func TestLowInventoryOutOfStockPrecedence(t *testing.T) {
	snaps := newMemSnapshots()
	snaps.add(testTarget, snapshot.KindRestockInventory,
		`[{"asin":"B1","out_of_stock":true,"recommended_qty":100}]`,
		testNow.Add(-time.Hour))
	alerts := &memAlerts{}

	out := NewLowInventory(testDeps(snaps, alerts)).Detect(context.Background(), testTarget)
	if !out.Created || out.Count != 1 {
		t.Fatalf("expected one finding, got %+v", out)
	}
	finding := out.Alert.Payload.(alert.ProductPayload).Products[0]
	if finding.Message != "out of stock" {
		t.Fatalf("out-of-stock must take precedence over the quantity rule, got %+v", finding)
	}
}

func TestLowInventorySkipsYesterdaysReport(t *testing.T) {
	snaps := newMemSnapshots()
	snaps.add(testTarget, snapshot.KindRestockInventory,
		`[{"asin":"B1","out_of_stock":true}]`,
		testNow.Add(-26*time.Hour))
	alerts := &memAlerts{}

	out := NewLowInventory(testDeps(snaps, alerts)).Detect(context.Background(), testTarget)
	if out.SkippedReason != SkipStaleData {
		t.Fatalf("a report from a previous UTC day must skip as stale, got %+v", out)
	}
	if len(alerts.created) != 0 {
		t.Fatal("stale reports must not create alerts")
	}
}
