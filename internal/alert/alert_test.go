package alert

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewProductAlertRejectsEmptyFindings(t *testing.T) {
	_, err := NewProductAlert("acc-1", "NA", "US", KindBuyBoxMissing, "msg", nil, nil)
	if !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("expected ErrEmptyPayload, got %v", err)
	}
}

func TestNewSeriesAlertRejectsEmptyDays(t *testing.T) {
	now := time.Now().UTC()
	_, err := NewSeriesAlert("acc-1", "NA", "US", KindSalesDrop, "msg", now.AddDate(0, 0, -7), now, nil, nil)
	if !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("expected ErrEmptyPayload, got %v", err)
	}
}

func TestNewProductAlertDefaults(t *testing.T) {
	a, err := NewProductAlert("acc-1", "NA", "US", KindNegativeReviews, "1 product below rating floor",
		[]ProductFinding{{ASIN: "B000X", Value: "3.2"}}, map[string]any{"snapshot_id": int64(7)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != StatusActive {
		t.Fatalf("new alerts must start active, got %q", a.Status)
	}
	if a.Viewed {
		t.Fatal("new alerts must start unviewed")
	}
	if a.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Fatal("alert id not assigned")
	}
	if a.Payload.Count() != 1 {
		t.Fatalf("expected count 1, got %d", a.Payload.Count())
	}
}

func TestPayloadKindMismatch(t *testing.T) {
	if _, err := NewProductAlert("a", "NA", "US", KindSalesDrop, "m", []ProductFinding{{ASIN: "B"}}, nil); err == nil {
		t.Fatal("series kind must reject product payload")
	}
	days := []DayFinding{{Date: time.Now()}}
	if _, err := NewSeriesAlert("a", "NA", "US", KindBuyBoxMissing, "m", time.Now(), time.Now(), days, nil); err == nil {
		t.Fatal("product kind must reject series payload")
	}
}

func TestDecodePayloadBothFamilies(t *testing.T) {
	products := ProductPayload{Products: []ProductFinding{{ASIN: "B000X", Fields: []string{"title"}}}}
	raw, _ := json.Marshal(products)
	decoded, err := DecodePayload(KindProductContentChange, raw)
	if err != nil {
		t.Fatalf("decode product payload: %v", err)
	}
	if decoded.Count() != 1 {
		t.Fatalf("expected 1 product, got %d", decoded.Count())
	}

	pct := decimal.NewFromInt(42)
	series := SeriesPayload{
		From: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC),
		Days: []DayFinding{{Date: time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC), RevenueDropPct: &pct}},
	}
	raw, _ = json.Marshal(series)
	decoded, err = DecodePayload(KindSalesDrop, raw)
	if err != nil {
		t.Fatalf("decode series payload: %v", err)
	}
	got, ok := decoded.(SeriesPayload)
	if !ok || got.Count() != 1 {
		t.Fatalf("expected series payload with 1 day, got %#v", decoded)
	}
	if got.Days[0].RevenueDropPct == nil || !got.Days[0].RevenueDropPct.Equal(pct) {
		t.Fatalf("revenue drop pct lost in roundtrip: %#v", got.Days[0])
	}
}

func TestKindLabels(t *testing.T) {
	for _, k := range Kinds() {
		if !k.Valid() {
			t.Fatalf("kind %q should be valid", k)
		}
		if k.Label() == string(k) {
			t.Fatalf("kind %q has no human label", k)
		}
	}
	if Kind("Bogus").Valid() {
		t.Fatal("unknown kind must not validate")
	}
}
