package detector

import (
	"context"
	"testing"
	"time"

	"account-health-alerts/internal/alert"
	"account-health-alerts/internal/snapshot"
)

const (
	contentOld = `[{"asin":"B000X","title":"Widget  Pro","description":["line one"],"bullets":["a"],"images":["i1"]},
                   {"asin":"B000Y","title":"Gadget","description":[],"bullets":[],"images":[]}]`
	contentNew = `[{"asin":"B000X","title":"Widget Pro Max","description":["line one"],"bullets":["a"],"images":["i1"]},
                   {"asin":"B000Y","title":"Gadget","description":[],"bullets":[],"images":[]}]`
)

func TestContentChangeFlagsChangedTitle(t *testing.T) {
	snaps := newMemSnapshots()
	snaps.add(testTarget, snapshot.KindProductContent, contentOld, testNow.Add(-48*time.Hour))
	snaps.add(testTarget, snapshot.KindProductContent, contentNew, testNow.Add(-2*time.Hour))
	alerts := &memAlerts{}

	out := NewProductContentChange(testDeps(snaps, alerts)).Detect(context.Background(), testTarget)
	if !out.Created || out.Count != 1 {
		t.Fatalf("expected 1 finding, got %+v", out)
	}
	payload := out.Alert.Payload.(alert.ProductPayload)
	if payload.Products[0].ASIN != "B000X" {
		t.Fatalf("expected B000X flagged, got %s", payload.Products[0].ASIN)
	}
	if len(payload.Products[0].Fields) != 1 || payload.Products[0].Fields[0] != "title" {
		t.Fatalf("expected title field flagged, got %v", payload.Products[0].Fields)
	}
}

func TestContentChangeIdempotentOnSecondRun(t *testing.T) {
	snaps := newMemSnapshots()
	snaps.add(testTarget, snapshot.KindProductContent, contentOld, testNow.Add(-48*time.Hour))
	snaps.add(testTarget, snapshot.KindProductContent, contentNew, testNow.Add(-2*time.Hour))
	alerts := &memAlerts{}
	det := NewProductContentChange(testDeps(snaps, alerts))

	first := det.Detect(context.Background(), testTarget)
	if !first.Created {
		t.Fatalf("first run should create an alert, got %+v", first)
	}

	second := det.Detect(context.Background(), testTarget)
	if second.Created || second.Err != "" {
		t.Fatalf("second run on unchanged snapshots must be a no-op, got %+v", second)
	}
	if len(alerts.created) != 1 {
		t.Fatalf("expected exactly one stored alert, got %d", len(alerts.created))
	}
}

func TestContentChangeNormalizesWhitespace(t *testing.T) {
	snaps := newMemSnapshots()
	snaps.add(testTarget, snapshot.KindProductContent,
		`[{"asin":"B000X","title":"Widget  Pro","description":["a  b"],"bullets":[],"images":[]}]`,
		testNow.Add(-48*time.Hour))
	snaps.add(testTarget, snapshot.KindProductContent,
		`[{"asin":"B000X","title":"Widget Pro","description":["a b"],"bullets":[],"images":[]}]`,
		testNow.Add(-2*time.Hour))
	alerts := &memAlerts{}

	out := NewProductContentChange(testDeps(snaps, alerts)).Detect(context.Background(), testTarget)
	if out.Created {
		t.Fatalf("whitespace-only differences must not flag, got %+v", out)
	}
}

func TestContentChangeOrderSensitiveLists(t *testing.T) {
	snaps := newMemSnapshots()
	snaps.add(testTarget, snapshot.KindProductContent,
		`[{"asin":"B000X","title":"W","description":[],"bullets":["a","b"],"images":[]}]`,
		testNow.Add(-48*time.Hour))
	snaps.add(testTarget, snapshot.KindProductContent,
		`[{"asin":"B000X","title":"W","description":[],"bullets":["b","a"],"images":[]}]`,
		testNow.Add(-2*time.Hour))
	alerts := &memAlerts{}

	out := NewProductContentChange(testDeps(snaps, alerts)).Detect(context.Background(), testTarget)
	if !out.Created {
		t.Fatalf("reordered bullets must flag, got %+v", out)
	}
}

func TestContentChangeSkipsWithSingleSnapshot(t *testing.T) {
	snaps := newMemSnapshots()
	snaps.add(testTarget, snapshot.KindProductContent, contentNew, testNow.Add(-2*time.Hour))
	alerts := &memAlerts{}

	out := NewProductContentChange(testDeps(snaps, alerts)).Detect(context.Background(), testTarget)
	if out.SkippedReason != SkipInsufficientHistory {
		t.Fatalf("expected %q skip, got %+v", SkipInsufficientHistory, out)
	}
}

func TestContentChangeReportsWriteFailure(t *testing.T) {
	snaps := newMemSnapshots()
	snaps.add(testTarget, snapshot.KindProductContent, contentOld, testNow.Add(-48*time.Hour))
	snaps.add(testTarget, snapshot.KindProductContent, contentNew, testNow.Add(-2*time.Hour))
	alerts := &memAlerts{failWith: errStoreDown}

	out := NewProductContentChange(testDeps(snaps, alerts)).Detect(context.Background(), testTarget)
	if out.Created || out.Err == "" {
		t.Fatalf("write failure must surface in Err, got %+v", out)
	}
}
