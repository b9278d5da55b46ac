package domain

import (
	"encoding/json"
	"time"
)

// BookedCruise is a denormalized snapshot of a reservation, appended every
// time the booking is observed. The current state of a booking is the latest
// row per (AccountIdentity, ReservationID).
type BookedCruise struct {
	ID              int64           `json:"id"`
	CheckedAt       time.Time       `json:"checked_at"`
	AccountIdentity string          `json:"account"`
	CruiseLine      string          `json:"cruise_line"`
	ReservationID   string          `json:"reservation_id"`
	SailDate        string          `json:"sail_date"`
	ShipCode        string          `json:"ship_code"`
	ShipName        string          `json:"ship_name"`
	Stateroom       string          `json:"stateroom_number"`
	GuestCount      int             `json:"guest_count"`
	RawDetails      json.RawMessage `json:"raw_details,omitempty"`
}
