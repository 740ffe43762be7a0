package storage

import (
	"time"

	"account-health-alerts/internal/alert"
)

// Marketplace is one monitored region/country pair.
type Marketplace struct {
	Region  string `json:"region"`
	Country string `json:"country"`
}

// Account is one enumerated seller account eligible for detection.
type Account struct {
	ID         string
	Email      string
	FirstName  string
	Subscribed bool
	Verified   bool
	OptedOut   bool
	Regions    []Marketplace
}

// AlertFilter narrows alert listing.
type AlertFilter struct {
	Region  string
	Country string
	Status  alert.Status
	Kind    alert.Kind
}

// DayCount is the number of alerts created on one UTC day.
type DayCount struct {
	Day   time.Time
	Count int64
}
