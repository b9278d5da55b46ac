package domain

import "encoding/json"

// Account is one vendor login the tracker sweeps for add-ons and offers.
type Account struct {
	Username   string
	Password   string
	CruiseLine string // "royal" or "celebrity"
}

// PriceSample is the typed result of a successful price fetch. Everything
// the orchestrator needs crosses the fetch boundary in this shape; untyped
// vendor payloads never reach the detector or the store.
type PriceSample struct {
	ProductCode  string // canonical identity of the fetched item, e.g. the fare URL
	CurrentPrice float64
	Currency     string // empty when the page does not state one
	SailDate     string
	ShipCode     string
}

// Booking is a reservation returned by the vendor's profile bookings endpoint.
type Booking struct {
	ReservationID string
	ShipCode      string
	SailDate      string
	Stateroom     string
	Nights        int
	PassengerIDs  []string // distinct, in first-seen order
	GuestCount    int
	Raw           json.RawMessage
}

// PrimaryPassenger returns the passenger used for catalog searches.
func (b Booking) PrimaryPassenger() string {
	if len(b.PassengerIDs) == 0 {
		return ""
	}
	return b.PassengerIDs[0]
}

// PurchasedItem is one ordered add-on line, with the guests it was bought for.
type PurchasedItem struct {
	ProductCode string
	Category    string // productTypeCategory id, e.g. "pt_beverage"
	Title       string
	SalesUnit   string // "PER_NIGHT", "PER_DAY" or empty
	Guests      []Guest
}

// Guest is one passenger's share of a purchased item.
type Guest struct {
	ID            string
	ReservationID string
	FirstName     string
	OrderStatus   string
	Subtotal      float64
	Quantity      int
	Currency      string
}

// Cancelled reports whether the guest's order line was cancelled.
func (g Guest) Cancelled() bool {
	return g.OrderStatus == "CANCELLED"
}

// CatalogItem is a product offered for sale but not necessarily purchased.
// CurrentPrice is nil when the catalog entry carries no usable price.
type CatalogItem struct {
	ProductCode  string
	Title        string
	CurrentPrice *float64
}

// Offer is a promotional offer as discovered upstream. Code may be empty
// when no identifier could be derived; such offers are skipped.
type Offer struct {
	Code       string
	Type       string
	ExpiryDate string
	Sailings   int
	Details    json.RawMessage
}

// Loyalty is the account's loyalty programme status.
type Loyalty struct {
	LoyaltyID    string
	Tier         string
	Points       *int
	CasinoTier   string
	CasinoPoints *int
}
