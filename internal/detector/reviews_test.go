package detector

import (
	"context"
	"testing"
	"time"

	"account-health-alerts/internal/alert"
	"account-health-alerts/internal/snapshot"
)

func TestNegativeReviewsThresholdBoundary(t *testing.T) {
	snaps := newMemSnapshots()
	snaps.add(testTarget, snapshot.KindReviews,
		`[{"asin":"B1","rating":"3.99"},{"asin":"B2","rating":"4.00"},{"asin":"B3","rating":"n/a"}]`,
		testNow.Add(-time.Hour))
	alerts := &memAlerts{}

	out := NewNegativeReviews(testDeps(snaps, alerts)).Detect(context.Background(), testTarget)
	if !out.Created || out.Count != 1 {
		t.Fatalf("expected exactly rating 3.99 flagged, got %+v", out)
	}
	payload := out.Alert.Payload.(alert.ProductPayload)
	if payload.Products[0].ASIN != "B1" {
		t.Fatalf("expected B1, got %s", payload.Products[0].ASIN)
	}
}

func TestNegativeReviewsNoSnapshotSkips(t *testing.T) {
	out := NewNegativeReviews(testDeps(newMemSnapshots(), &memAlerts{})).Detect(context.Background(), testTarget)
	if out.SkippedReason != SkipNoData {
		t.Fatalf("expected %q skip, got %+v", SkipNoData, out)
	}
}

func TestNegativeReviewsAllHealthyCreatesNothing(t *testing.T) {
	snaps := newMemSnapshots()
	snaps.add(testTarget, snapshot.KindReviews, `[{"asin":"B1","rating":"4.8"}]`, testNow.Add(-time.Hour))
	alerts := &memAlerts{}

	out := NewNegativeReviews(testDeps(snaps, alerts)).Detect(context.Background(), testTarget)
	if out.Created || out.SkippedReason != "" || out.Err != "" {
		t.Fatalf("healthy ratings must be a clean no-op, got %+v", out)
	}
	if len(alerts.created) != 0 {
		t.Fatal("no alert should be written without findings")
	}
}

func TestBuyBoxMissingFlagsZeroAndNullShares(t *testing.T) {
	snaps := newMemSnapshots()
	snaps.add(testTarget, snapshot.KindBuyBox,
		`[{"asin":"B1","buybox_share":0},{"asin":"B2","buybox_share":null},{"asin":"B3","buybox_share":87.5},{"asin":"B4"}]`,
		testNow.Add(-time.Hour))
	alerts := &memAlerts{}

	out := NewBuyBoxMissing(testDeps(snaps, alerts)).Detect(context.Background(), testTarget)
	if !out.Created || out.Count != 3 {
		t.Fatalf("expected B1, B2, B4 flagged, got %+v", out)
	}
}

func TestAPlusMissingStatusForms(t *testing.T) {
	snaps := newMemSnapshots()
	snaps.add(testTarget, snapshot.KindAPlusStatus,
		`[{"asin":"B1","status":"APPROVED"},{"asin":"B2","status":"PUBLISHED"},{"asin":"B3","status":true},
          {"asin":"B4","status":"DRAFT"},{"asin":"B5"}]`,
		testNow.Add(-time.Hour))
	alerts := &memAlerts{}

	out := NewAPlusMissing(testDeps(snaps, alerts)).Detect(context.Background(), testTarget)
	if !out.Created || out.Count != 2 {
		t.Fatalf("expected B4 and B5 flagged, got %+v", out)
	}
	payload := out.Alert.Payload.(alert.ProductPayload)
	if payload.Products[0].ASIN != "B4" || payload.Products[1].ASIN != "B5" {
		t.Fatalf("unexpected findings %+v", payload.Products)
	}
}
