// Package service contains the business logic of the tracker: the run
// orchestrator, the run gate, the run state exposed to the dashboard, and the
// scheduler. No SQL or HTTP lives here; services depend on consumer-side
// interfaces so every collaborator can be replaced by a test double.
package service

import (
	"context"
	"errors"

	"github.com/pkordes/cruise-price-tracker/internal/domain"
)

// ErrRunInProgress is returned when a run is requested while another holds the gate.
var ErrRunInProgress = errors.New("run already in progress")

// BusyMessage is shown to operators whose run request was turned away.
const BusyMessage = "A run is already in progress."

// Run selectors accepted by Tracker.Run and the API.
const (
	ModuleAll = "all"
)

// FareFetcher loads the current cabin fare of a watched booking URL.
// domain.ErrUnavailable means the fare page carries no price.
type FareFetcher interface {
	FetchFare(ctx context.Context, url string) (domain.PriceSample, error)
}

// AccountClient is an authenticated view of one vendor account.
type AccountClient interface {
	AccountID() string
	Loyalty(ctx context.Context) (domain.Loyalty, error)
	Bookings(ctx context.Context) ([]domain.Booking, error)
	PurchasedItems(ctx context.Context, b domain.Booking, passengerID, currency string) ([]domain.PurchasedItem, error)
	AddonPrice(ctx context.Context, b domain.Booking, item domain.PurchasedItem, g domain.Guest) (float64, error)
	Catalog(ctx context.Context, b domain.Booking, categoryID, currency string) ([]domain.CatalogItem, error)
	Offers(ctx context.Context, loyaltyID string) ([]domain.Offer, error)
}

// Authenticator logs an account in.
type Authenticator interface {
	Login(ctx context.Context, acct domain.Account) (AccountClient, error)
}

// AuthenticatorFunc adapts an ordinary function to the Authenticator interface.
type AuthenticatorFunc func(ctx context.Context, acct domain.Account) (AccountClient, error)

// Login calls f(ctx, acct).
func (f AuthenticatorFunc) Login(ctx context.Context, acct domain.Account) (AccountClient, error) {
	return f(ctx, acct)
}

// Notifier delivers an alert. Failures are logged by the caller and never
// stop a run.
type Notifier interface {
	Send(ctx context.Context, title, body string) error
}

// ShipNamer resolves a ship code to its display name.
type ShipNamer interface {
	ShipName(ctx context.Context, code string) string
}

// ValidModule reports whether m names a run selector.
func ValidModule(m string) bool {
	switch m {
	case ModuleAll, domain.ModuleCruise, domain.ModuleAddons, domain.ModuleCasino:
		return true
	}
	return false
}
