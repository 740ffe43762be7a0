package alert

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind tags one alert condition.
type Kind string

const (
	KindProductContentChange Kind = "ProductContentChange"
	KindBuyBoxMissing        Kind = "BuyBoxMissing"
	KindNegativeReviews      Kind = "NegativeReviews"
	KindAPlusMissing         Kind = "APlusMissing"
	KindSalesDrop            Kind = "SalesDrop"
	KindConversionRates      Kind = "ConversionRates"
	KindLowInventory         Kind = "LowInventory"
	KindStrandedInventory    Kind = "StrandedInventory"
	KindInboundShipment      Kind = "InboundShipment"
)

// Kinds lists every alert kind in detection order.
func Kinds() []Kind {
	return []Kind{
		KindProductContentChange,
		KindBuyBoxMissing,
		KindNegativeReviews,
		KindAPlusMissing,
		KindSalesDrop,
		KindConversionRates,
		KindLowInventory,
		KindStrandedInventory,
		KindInboundShipment,
	}
}

// Valid reports whether k belongs to the closed kind set.
func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Series reports whether the kind carries a day-series payload instead of a product list.
func (k Kind) Series() bool {
	return k == KindSalesDrop || k == KindConversionRates
}

// Label returns the human heading used in notifications.
func (k Kind) Label() string {
	switch k {
	case KindProductContentChange:
		return "Product content change"
	case KindBuyBoxMissing:
		return "Buy box missing"
	case KindNegativeReviews:
		return "Negative reviews"
	case KindAPlusMissing:
		return "A+ content missing"
	case KindSalesDrop:
		return "Sales drop"
	case KindConversionRates:
		return "Conversion rate drop"
	case KindLowInventory:
		return "Low inventory"
	case KindStrandedInventory:
		return "Stranded inventory"
	case KindInboundShipment:
		return "Inbound shipment problem"
	default:
		return string(k)
	}
}

// Status tracks the alert review lifecycle driven by the UI layer.
type Status string

const (
	StatusActive       Status = "active"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
)

// ProductFinding is one flagged product inside an alert payload.
type ProductFinding struct {
	ASIN    string   `json:"asin"`
	SKU     string   `json:"sku,omitempty"`
	Title   string   `json:"title,omitempty"`
	Fields  []string `json:"fields,omitempty"`
	Value   string   `json:"value,omitempty"`
	Message string   `json:"message,omitempty"`
}

// DayFinding is one flagged day inside a series payload.
type DayFinding struct {
	Date              time.Time        `json:"date"`
	RevenueDropPct    *decimal.Decimal `json:"revenue_drop_pct,omitempty"`
	UnitsDropPct      *decimal.Decimal `json:"units_drop_pct,omitempty"`
	ConversionDropPct *decimal.Decimal `json:"conversion_drop_pct,omitempty"`
	Message           string           `json:"message,omitempty"`
}

// Payload is the kind-specific alert body. Exactly two shapes exist: an
// ordered product list, or a date range with day-level findings.
type Payload interface {
	Count() int
	payload()
}

// ProductPayload carries per-product findings.
type ProductPayload struct {
	Products []ProductFinding `json:"products"`
}

func (p ProductPayload) Count() int { return len(p.Products) }
func (p ProductPayload) payload()  {}

// SeriesPayload carries a date range plus day-level findings.
type SeriesPayload struct {
	From time.Time    `json:"from"`
	To   time.Time    `json:"to"`
	Days []DayFinding `json:"days"`
}

func (p SeriesPayload) Count() int { return len(p.Days) }
func (p SeriesPayload) payload()  {}

// ErrEmptyPayload rejects alert construction without at least one finding.
var ErrEmptyPayload = errors.New("alert: payload must contain at least one finding")

// Alert is the persisted record of one fired condition.
type Alert struct {
	ID        uuid.UUID
	AccountID string
	Region    string
	Country   string
	Kind      Kind
	Status    Status
	Viewed    bool
	Message   string
	Payload   Payload
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProductAlert builds an active alert carrying a non-empty product list.
func NewProductAlert(accountID, region, country string, kind Kind, message string, products []ProductFinding, metadata map[string]any) (Alert, error) {
	if len(products) == 0 {
		return Alert{}, ErrEmptyPayload
	}
	if !kind.Valid() || kind.Series() {
		return Alert{}, fmt.Errorf("alert: kind %q does not take a product payload", kind)
	}
	return newAlert(accountID, region, country, kind, message, ProductPayload{Products: products}, metadata), nil
}

// NewSeriesAlert builds an active alert carrying a non-empty day series.
func NewSeriesAlert(accountID, region, country string, kind Kind, message string, from, to time.Time, days []DayFinding, metadata map[string]any) (Alert, error) {
	if len(days) == 0 {
		return Alert{}, ErrEmptyPayload
	}
	if !kind.Series() {
		return Alert{}, fmt.Errorf("alert: kind %q does not take a series payload", kind)
	}
	return newAlert(accountID, region, country, kind, message, SeriesPayload{From: from, To: to, Days: days}, metadata), nil
}

func newAlert(accountID, region, country string, kind Kind, message string, payload Payload, metadata map[string]any) Alert {
	return Alert{
		ID:        uuid.New(),
		AccountID: accountID,
		Region:    region,
		Country:   country,
		Kind:      kind,
		Status:    StatusActive,
		Message:   message,
		Payload:   payload,
		Metadata:  metadata,
	}
}

// DecodePayload rebuilds the payload union from its stored JSON form.
func DecodePayload(kind Kind, raw []byte) (Payload, error) {
	if kind.Series() {
		var p SeriesPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode series payload: %w", err)
		}
		return p, nil
	}
	var p ProductPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode product payload: %w", err)
	}
	return p, nil
}
