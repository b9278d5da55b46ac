// Package domain contains the core data types for the cruise price tracker.
// This package has no dependencies on other internal packages and is
// imported by every other internal package (repo, service, handler, vendor).
package domain

import "time"

// RecordType distinguishes cabin fare observations from add-on observations.
type RecordType string

const (
	RecordCruise RecordType = "cruise"
	RecordAddon  RecordType = "addon"
)

// DefaultCurrency is used when neither the vendor nor the settings name one.
const DefaultCurrency = "USD"

// PriceRecord is one observation of a price at a point in time.
// Records are immutable once inserted; history for an identity is the ordered
// sequence of records sharing the same PriceIdentity.
//
// Optional fields are pointers: nil is stored as NULL and only ever matches
// another NULL during identity lookups.
type PriceRecord struct {
	ID              int64      `json:"id"`
	CheckedAt       time.Time  `json:"checked_at"`
	RecordType      RecordType `json:"record_type"`
	AccountIdentity *string    `json:"account,omitempty"`
	ReservationID   *string    `json:"reservation_id,omitempty"`
	ProductCode     string     `json:"product_code"`
	ProductName     string     `json:"product_name"`
	PassengerName   *string    `json:"passenger_name,omitempty"`
	SailDate        *string    `json:"sail_date,omitempty"`
	ShipCode        *string    `json:"ship_code,omitempty"`
	PaidPrice       *float64   `json:"paid_price,omitempty"` // nil when browsing the catalog
	CurrentPrice    float64    `json:"current_price"`
	Currency        string     `json:"currency"`
	Notified        bool       `json:"notified"`
	Label           *string    `json:"label,omitempty"`
}

// Identity returns the lookup key of the record, scoped to its account.
func (r PriceRecord) Identity() PriceIdentity {
	return PriceIdentity{
		ProductCode:     r.ProductCode,
		ReservationID:   r.ReservationID,
		PassengerName:   r.PassengerName,
		AccountIdentity: r.AccountIdentity,
	}
}

// PriceIdentity is the key used to find the previous observation of the same
// thing. ReservationID and PassengerName match strictly: nil matches only
// NULL. AccountIdentity narrows the match when set; nil matches every account,
// which is what fare tracking uses since fares have no account scope.
type PriceIdentity struct {
	ProductCode     string
	ReservationID   *string
	PassengerName   *string
	AccountIdentity *string
}

// PriceFilter narrows history listings. Zero values mean "no filter".
type PriceFilter struct {
	RecordType RecordType
	Account    string
}

// PriceSummary aggregates price history for the dashboard.
type PriceSummary struct {
	Records    int64            `json:"price_records"`
	AlertsSent int64            `json:"alerts_sent"`
	Accounts   []AccountSummary `json:"accounts"`
}

// AccountSummary is the per-account roll-up of add-on checks and offers.
type AccountSummary struct {
	Account      string     `json:"account"`
	AddonChecks  int64      `json:"addon_checks"`
	AddonAlerts  int64      `json:"addon_alerts"`
	OfferCount   int64      `json:"offer_count"`
	NewOffers    int64      `json:"new_offers"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// Ptr returns a pointer to v. Empty strings are still real values here;
// callers that want "" to mean NULL should use OptString.
func Ptr[T any](v T) *T {
	return &v
}

// OptString returns nil for an empty string, or a pointer to s.
func OptString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string, or "" when p is nil.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
