// Package snapshot defines the point-in-time marketplace reads the detectors
// evaluate. Snapshots are collected by external jobs; this package only models
// their stored shape and typed payload decoding.
package snapshot

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies one snapshot family.
type Kind string

const (
	KindProductContent       Kind = "product_content"
	KindReviews              Kind = "reviews"
	KindAPlusStatus          Kind = "aplus_status"
	KindBuyBox               Kind = "buybox"
	KindSalesTraffic         Kind = "sales_traffic"
	KindRestockInventory     Kind = "restock_inventory"
	KindStrandedInventory    Kind = "stranded_inventory"
	KindInboundNonCompliance Kind = "inbound_noncompliance"
)

// Snapshot is one stored observation for an account and marketplace.
type Snapshot struct {
	ID        int64
	AccountID string
	Kind      Kind
	Region    string
	Country   string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// ContentRecord is one listing inside a product content snapshot.
type ContentRecord struct {
	ASIN        string   `json:"asin"`
	SKU         string   `json:"sku,omitempty"`
	Title       string   `json:"title"`
	Description []string `json:"description"`
	Bullets     []string `json:"bullets"`
	Images      []string `json:"images"`
}

// ReviewRecord carries the review aggregate for one ASIN. Rating arrives as a
// string from the upstream report and is parsed at detection time.
type ReviewRecord struct {
	ASIN   string `json:"asin"`
	SKU    string `json:"sku,omitempty"`
	Title  string `json:"title,omitempty"`
	Rating string `json:"rating"`
}

// FlexString accepts JSON strings and booleans; upstream mixes both for
// content approval status.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		*f = FlexString(strconv.FormatBool(v))
		return nil
	}
	*f = FlexString(strings.TrimSpace(string(b)))
	return nil
}

// APlusRecord carries the A+ content state for one ASIN.
type APlusRecord struct {
	ASIN   string     `json:"asin"`
	SKU    string     `json:"sku,omitempty"`
	Title  string     `json:"title,omitempty"`
	Status FlexString `json:"status"`
}

// BuyBoxRecord carries the buy-box ownership share for one ASIN.
type BuyBoxRecord struct {
	ASIN  string          `json:"asin"`
	SKU   string          `json:"sku,omitempty"`
	Title string          `json:"title,omitempty"`
	Share json.RawMessage `json:"buybox_share"`
}

// ShareValue parses the share; null, absent, and unparseable values count as zero.
func (r BuyBoxRecord) ShareValue() decimal.Decimal {
	raw := strings.Trim(strings.TrimSpace(string(r.Share)), `"`)
	if raw == "" || raw == "null" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// DayRecord is one day of the sales and traffic series.
type DayRecord struct {
	Date           Date            `json:"date"`
	Revenue        decimal.Decimal `json:"revenue"`
	Units          decimal.Decimal `json:"units"`
	Sessions       decimal.Decimal `json:"sessions"`
	UnitSessionPct decimal.Decimal `json:"unit_session_pct"`
}

// Date unmarshals bare YYYY-MM-DD day stamps as UTC midnights.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("parse day stamp %q: %w", s, err)
		}
	}
	d.Time = t.UTC()
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.UTC().Format("2006-01-02") + `"`), nil
}

// RestockRecord is one product row of the restock inventory report.
type RestockRecord struct {
	ASIN           string          `json:"asin"`
	SKU            string          `json:"sku,omitempty"`
	Title          string          `json:"title,omitempty"`
	OutOfStock     bool            `json:"out_of_stock"`
	RecommendedQty decimal.Decimal `json:"recommended_qty"`
}

// ReportRow is one row of the stranded inventory or inbound non-compliance report.
type ReportRow struct {
	ASIN       string `json:"asin"`
	SKU        string `json:"sku,omitempty"`
	Title      string `json:"title,omitempty"`
	Reason     string `json:"reason,omitempty"`
	ShipmentID string `json:"shipment_id,omitempty"`
}

func decodeList[T any](s Snapshot, want Kind) ([]T, error) {
	if s.Kind != want {
		return nil, fmt.Errorf("snapshot kind %q, want %q", s.Kind, want)
	}
	var out []T
	if err := json.Unmarshal(s.Payload, &out); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", want, err)
	}
	return out, nil
}

// DecodeContent unmarshals a product content snapshot payload.
func DecodeContent(s Snapshot) ([]ContentRecord, error) {
	return decodeList[ContentRecord](s, KindProductContent)
}

// DecodeReviews unmarshals a reviews snapshot payload.
func DecodeReviews(s Snapshot) ([]ReviewRecord, error) {
	return decodeList[ReviewRecord](s, KindReviews)
}

// DecodeAPlus unmarshals an A+ status snapshot payload.
func DecodeAPlus(s Snapshot) ([]APlusRecord, error) {
	return decodeList[APlusRecord](s, KindAPlusStatus)
}

// DecodeBuyBox unmarshals a buy-box snapshot payload.
func DecodeBuyBox(s Snapshot) ([]BuyBoxRecord, error) {
	return decodeList[BuyBoxRecord](s, KindBuyBox)
}

// DecodeSalesTraffic unmarshals a sales and traffic snapshot payload.
func DecodeSalesTraffic(s Snapshot) ([]DayRecord, error) {
	return decodeList[DayRecord](s, KindSalesTraffic)
}

// DecodeRestock unmarshals a restock inventory snapshot payload.
func DecodeRestock(s Snapshot) ([]RestockRecord, error) {
	return decodeList[RestockRecord](s, KindRestockInventory)
}

// DecodeReportRows unmarshals a stranded or inbound report snapshot payload.
func DecodeReportRows(s Snapshot, want Kind) ([]ReportRow, error) {
	return decodeList[ReportRow](s, want)
}
