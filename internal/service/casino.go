package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkordes/cruise-price-tracker/internal/domain"
)

// checkCasino records the account's promotional offers. First sightings are
// inserted as new (and announced when enabled); known offers are refreshed
// in place.
func (t *Tracker) checkCasino(ctx context.Context, r *run, logger *slog.Logger, acct domain.Account, client AccountClient) error {
	account := acct.Username

	vctx, cancel := t.vendorContext(ctx)
	loyalty, err := client.Loyalty(vctx)
	cancel()
	if err != nil {
		return fmt.Errorf("loyalty lookup: %w", err)
	}
	if loyalty.LoyaltyID == "" {
		logger.WarnContext(ctx, "no loyalty id found; cannot fetch offers")
		return nil
	}

	vctx, cancel = t.vendorContext(ctx)
	offers, err := client.Offers(vctx, loyalty.LoyaltyID)
	cancel()
	if err != nil {
		return fmt.Errorf("fetch offers: %w", err)
	}

	notifyNew := r.cfg.CasinoTracking.NotifyNew()
	for _, o := range offers {
		if o.Code == "" {
			logger.WarnContext(ctx, "skipping offer without a code", "offer_type", o.Type)
			continue
		}

		exists, err := t.offers.Exists(ctx, o.Code, &account)
		if err != nil {
			return fmt.Errorf("offer %s: %w: %w", o.Code, domain.ErrStore, err)
		}
		rec := domain.OfferRecord{
			AccountIdentity: &account,
			OfferCode:       o.Code,
			OfferType:       o.Type,
			OfferDetails:    o.Details,
			ExpiryDate:      domain.OptString(o.ExpiryDate),
		}

		if exists {
			if err := t.offers.UpdateInPlace(ctx, rec); err != nil {
				return fmt.Errorf("update offer %s: %w: %w", o.Code, domain.ErrStore, err)
			}
			continue
		}

		rec.IsNew = true
		if _, err := t.offers.Insert(ctx, rec); err != nil {
			return fmt.Errorf("insert offer %s: %w: %w", o.Code, domain.ErrStore, err)
		}
		t.metrics.NewOffer()
		logger.InfoContext(ctx, "new offer", "offer_code", o.Code, "offer_type", o.Type)
		if notifyNew {
			t.alert(ctx, r, logger, newOfferMessage(account, o))
		}
	}
	return nil
}
