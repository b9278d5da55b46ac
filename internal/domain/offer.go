package domain

import (
	"encoding/json"
	"time"
)

// OfferRecord is one promotional offer snapshot keyed by (OfferCode, AccountIdentity).
// Unlike PriceRecord it is mutable by key: re-sighting an offer refreshes
// CheckedAt, OfferDetails and ExpiryDate in place and leaves IsNew untouched.
type OfferRecord struct {
	ID              int64           `json:"id"`
	CheckedAt       time.Time       `json:"checked_at"`
	AccountIdentity *string         `json:"account,omitempty"`
	OfferCode       string          `json:"offer_code"`
	OfferType       string          `json:"offer_type"`
	OfferDetails    json.RawMessage `json:"offer_details,omitempty"`
	ExpiryDate      *string         `json:"expiry_date,omitempty"`
	IsNew           bool            `json:"is_new"`
}
