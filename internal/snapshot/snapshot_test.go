package snapshot

import (
	"encoding/json"
	"testing"
)

func TestFlexStringAcceptsBool(t *testing.T) {
	var rec APlusRecord
	if err := json.Unmarshal([]byte(`{"asin":"B1","status":true}`), &rec); err != nil {
		t.Fatalf("unmarshal bool status: %v", err)
	}
	if rec.Status != "true" {
		t.Fatalf("expected status \"true\", got %q", rec.Status)
	}

	if err := json.Unmarshal([]byte(`{"asin":"B1","status":"APPROVED"}`), &rec); err != nil {
		t.Fatalf("unmarshal string status: %v", err)
	}
	if rec.Status != "APPROVED" {
		t.Fatalf("expected APPROVED, got %q", rec.Status)
	}
}

func TestShareValueZeroCases(t *testing.T) {
	cases := map[string]string{
		"absent":      `{"asin":"B1"}`,
		"null":        `{"asin":"B1","buybox_share":null}`,
		"non-numeric": `{"asin":"B1","buybox_share":"n/a"}`,
		"zero string": `{"asin":"B1","buybox_share":"0"}`,
	}
	for name, raw := range cases {
		var rec BuyBoxRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			t.Fatalf("%s: unmarshal: %v", name, err)
		}
		if !rec.ShareValue().IsZero() {
			t.Fatalf("%s: expected zero share, got %s", name, rec.ShareValue())
		}
	}

	var rec BuyBoxRecord
	if err := json.Unmarshal([]byte(`{"asin":"B1","buybox_share":12.5}`), &rec); err != nil {
		t.Fatalf("unmarshal numeric share: %v", err)
	}
	if rec.ShareValue().String() != "12.5" {
		t.Fatalf("expected 12.5, got %s", rec.ShareValue())
	}
}

func TestDateUnmarshal(t *testing.T) {
	var day DayRecord
	if err := json.Unmarshal([]byte(`{"date":"2026-08-20","revenue":101.5,"units":3}`), &day); err != nil {
		t.Fatalf("unmarshal day record: %v", err)
	}
	if day.Date.Year() != 2026 || day.Date.Month() != 8 || day.Date.Day() != 20 {
		t.Fatalf("unexpected date %v", day.Date)
	}
	if day.Revenue.String() != "101.5" {
		t.Fatalf("unexpected revenue %s", day.Revenue)
	}
}

func TestDecodeListKindMismatch(t *testing.T) {
	s := Snapshot{Kind: KindReviews, Payload: []byte(`[]`)}
	if _, err := DecodeContent(s); err == nil {
		t.Fatal("decoding a reviews snapshot as content must fail")
	}
}
