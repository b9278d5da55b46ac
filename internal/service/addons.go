package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/pkordes/cruise-price-tracker/internal/domain"
	"github.com/pkordes/cruise-price-tracker/internal/pricing"
)

// CatalogPassenger is the passenger name of catalog items nobody bought.
const CatalogPassenger = "Available"

// CatalogCategory is one browsable add-on category.
type CatalogCategory struct {
	ID   string
	Name string
}

// CatalogCategories are scanned for every booking after its purchased items.
var CatalogCategories = []CatalogCategory{
	{ID: "1000000002", Name: "Beverage"},
	{ID: "1000000003", Name: "Internet"},
	{ID: "1000000004", Name: "Dining"},
}

// checkAddons sweeps one account's bookings: purchased items per passenger
// are priced against the live catalog, then each category listing is
// recorded for items not already seen on the booking.
func (t *Tracker) checkAddons(ctx context.Context, r *run, logger *slog.Logger, acct domain.Account, client AccountClient) error {
	account := acct.Username

	vctx, cancel := t.vendorContext(ctx)
	loyalty, err := client.Loyalty(vctx)
	cancel()
	if err != nil {
		logger.WarnContext(ctx, "loyalty status lookup failed", "error", err)
	} else {
		logger.InfoContext(ctx, "loyalty status",
			"loyalty_id", loyalty.LoyaltyID, "tier", loyalty.Tier, "points", optInt(loyalty.Points),
			"casino_tier", loyalty.CasinoTier, "casino_points", optInt(loyalty.CasinoPoints))
	}

	vctx, cancel = t.vendorContext(ctx)
	bookings, err := client.Bookings(vctx)
	cancel()
	if err != nil {
		return fmt.Errorf("fetch bookings: %w", err)
	}
	if len(bookings) == 0 {
		logger.InfoContext(ctx, "no booked reservations found")
		return nil
	}

	// reservation|product keys already recorded this run
	processed := make(map[string]struct{})

	for _, b := range bookings {
		if err := ctx.Err(); err != nil {
			return err
		}
		if b.ReservationID == "" {
			logger.WarnContext(ctx, "skipping booking with no reservation id")
			continue
		}
		blog := logger.With("reservation_id", b.ReservationID)

		if err := t.recordBooking(ctx, acct, b); err != nil {
			return err
		}
		if len(b.PassengerIDs) == 0 {
			blog.WarnContext(ctx, "no passenger ids; skipping reservation")
			continue
		}

		if err := t.checkPurchased(ctx, r, blog, account, client, b, processed); err != nil {
			return err
		}
		if err := t.scanCatalog(ctx, r, blog, account, client, b, processed); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tracker) recordBooking(ctx context.Context, acct domain.Account, b domain.Booking) error {
	vctx, cancel := t.vendorContext(ctx)
	shipName := t.ships.ShipName(vctx, b.ShipCode)
	cancel()

	_, err := t.bookings.Insert(ctx, domain.BookedCruise{
		AccountIdentity: acct.Username,
		CruiseLine:      acct.CruiseLine,
		ReservationID:   b.ReservationID,
		SailDate:        b.SailDate,
		ShipCode:        b.ShipCode,
		ShipName:        shipName,
		Stateroom:       b.Stateroom,
		GuestCount:      b.GuestCount,
		RawDetails:      b.Raw,
	})
	if err != nil {
		return fmt.Errorf("insert booking %s: %w: %w", b.ReservationID, domain.ErrStore, err)
	}
	return nil
}

func optInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func processedKey(reservationID, productCode string) string {
	return reservationID + "|" + productCode
}

// checkPurchased prices every ordered item of every passenger. Lookups that
// fail are logged and skipped; only store failures and cancellation stop it.
func (t *Tracker) checkPurchased(ctx context.Context, r *run, logger *slog.Logger, account string, client AccountClient, b domain.Booking, processed map[string]struct{}) error {
	filter := r.cfg.AddonTracking.Categories

	for _, pid := range b.PassengerIDs {
		vctx, cancel := t.vendorContext(ctx)
		items, err := client.PurchasedItems(vctx, b, pid, r.currency)
		cancel()
		if err != nil {
			logger.WarnContext(ctx, "order history failed", "passenger_id", pid, "error", err)
			continue
		}

		for _, item := range items {
			processed[processedKey(b.ReservationID, item.ProductCode)] = struct{}{}
			if len(filter) > 0 && !slices.Contains(filter, item.Category) {
				continue
			}
			for _, g := range item.Guests {
				if g.Cancelled() {
					continue
				}
				if err := ctx.Err(); err != nil {
					return err
				}
				err := t.checkGuestItem(ctx, r, logger, account, client, b, item, g)
				if errors.Is(err, domain.ErrStore) {
					return err
				}
				if err != nil {
					logger.WarnContext(ctx, "price lookup failed",
						"product_code", item.ProductCode, "guest_id", g.ID, "error", err)
				}
			}
		}
	}
	return nil
}

// checkGuestItem records one guest's share of a purchased item.
func (t *Tracker) checkGuestItem(ctx context.Context, r *run, logger *slog.Logger, account string, client AccountClient, b domain.Booking, item domain.PurchasedItem, g domain.Guest) error {
	paid := pricing.Normalize(g.Subtotal, item.SalesUnit, g.Quantity, b.Nights)
	passenger := g.FirstName
	if passenger == "" {
		passenger = g.ID
	}
	currency := g.Currency
	if currency == "" {
		currency = r.currency
	}

	rec := domain.PriceRecord{
		RecordType:      domain.RecordAddon,
		AccountIdentity: &account,
		ReservationID:   domain.OptString(g.ReservationID),
		ProductCode:     item.ProductCode,
		ProductName:     item.Title,
		PassengerName:   &passenger,
		SailDate:        domain.OptString(b.SailDate),
		ShipCode:        domain.OptString(b.ShipCode),
		PaidPrice:       &paid,
		Currency:        currency,
		Label:           &account,
	}

	vctx, cancel := t.vendorContext(ctx)
	current, err := client.AddonPrice(vctx, b, item, g)
	cancel()
	switch {
	case errors.Is(err, domain.ErrUnavailable):
		logger.WarnContext(ctx, "add-on no longer for sale", "product_code", item.ProductCode, "passenger", passenger)
		rec.ProductName = item.Title + " (unavailable)"
		rec.CurrentPrice = paid
		return t.insertPrice(ctx, rec)
	case err != nil:
		return err
	}

	verdict, err := t.evaluate(ctx, r, rec, paid, current)
	if err != nil {
		return err
	}
	rec.CurrentPrice = current
	rec.Notified = verdict.IsDrop
	if err := t.insertPrice(ctx, rec); err != nil {
		return err
	}

	if verdict.IsDrop {
		logger.InfoContext(ctx, "add-on price drop",
			"product_code", item.ProductCode, "passenger", passenger, "current", current, "paid", paid, "savings", verdict.Savings)
		t.metrics.Drop(string(domain.RecordAddon))
		t.alert(ctx, r, logger, addonDropMessage(item.Title, passenger, currency, current, paid, verdict.Savings))
	}
	return nil
}

// scanCatalog records browsable products the booking has not bought, with
// no paid price, so the dashboard can show what they cost now.
func (t *Tracker) scanCatalog(ctx context.Context, r *run, logger *slog.Logger, account string, client AccountClient, b domain.Booking, processed map[string]struct{}) error {
	passenger := CatalogPassenger
	for _, cat := range CatalogCategories {
		if err := ctx.Err(); err != nil {
			return err
		}
		vctx, cancel := t.vendorContext(ctx)
		items, err := client.Catalog(vctx, b, cat.ID, r.currency)
		cancel()
		if err != nil {
			logger.WarnContext(ctx, "catalog scan failed", "category", cat.Name, "error", err)
			continue
		}

		added := 0
		for _, it := range items {
			key := processedKey(b.ReservationID, it.ProductCode)
			if _, seen := processed[key]; seen || it.CurrentPrice == nil {
				continue
			}
			if err := t.insertPrice(ctx, domain.PriceRecord{
				RecordType:      domain.RecordAddon,
				AccountIdentity: &account,
				ReservationID:   &b.ReservationID,
				ProductCode:     it.ProductCode,
				ProductName:     it.Title,
				PassengerName:   &passenger,
				SailDate:        domain.OptString(b.SailDate),
				ShipCode:        domain.OptString(b.ShipCode),
				CurrentPrice:    *it.CurrentPrice,
				Currency:        r.currency,
				Label:           &account,
			}); err != nil {
				return err
			}
			processed[key] = struct{}{}
			added++
		}
		if added > 0 {
			logger.InfoContext(ctx, "recorded available catalog items", "category", cat.Name, "count", added)
		}
	}
	return nil
}
