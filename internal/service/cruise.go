package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkordes/cruise-price-tracker/internal/config"
	"github.com/pkordes/cruise-price-tracker/internal/domain"
	"github.com/pkordes/cruise-price-tracker/internal/pricing"
)

// checkFare fetches one watched fare and records it. Fares have no account
// scope, so the previous observation is looked up across all accounts.
func (t *Tracker) checkFare(ctx context.Context, r *run, logger *slog.Logger, w config.WatchlistEntry) error {
	if strings.TrimSpace(w.URL) == "" {
		return fmt.Errorf("empty url: %w", domain.ErrValidation)
	}
	label := w.DisplayLabel()
	paid := float64(w.PaidPrice)

	vctx, cancel := t.vendorContext(ctx)
	sample, err := t.fares.FetchFare(vctx, w.URL)
	cancel()

	currency := r.currency
	if sample.Currency != "" {
		currency = sample.Currency
	}
	rec := domain.PriceRecord{
		RecordType:  domain.RecordCruise,
		ProductCode: sample.ProductCode,
		ProductName: label,
		SailDate:    domain.OptString(sample.SailDate),
		ShipCode:    domain.OptString(sample.ShipCode),
		PaidPrice:   &paid,
		Currency:    currency,
		Label:       &label,
	}

	switch {
	case errors.Is(err, domain.ErrUnavailable) && sample.ProductCode != "":
		logger.WarnContext(ctx, "cabin unavailable or price not found")
		rec.ProductName = label + " (unavailable)"
		rec.CurrentPrice = pricing.FareUnavailable
		return t.insertPrice(ctx, rec)
	case err != nil:
		return err
	}

	verdict, err := t.evaluate(ctx, r, rec, paid, sample.CurrentPrice)
	if err != nil {
		return err
	}
	rec.CurrentPrice = sample.CurrentPrice
	rec.Notified = verdict.IsDrop
	if err := t.insertPrice(ctx, rec); err != nil {
		return err
	}

	logger.InfoContext(ctx, "fare checked",
		"current", sample.CurrentPrice, "paid", paid, "savings", verdict.Savings, "drop", verdict.IsDrop)
	if verdict.IsDrop {
		t.metrics.Drop(string(domain.RecordCruise))
		t.alert(ctx, r, logger, cruiseDropMessage(label, currency, sample.CurrentPrice, paid, verdict.Savings))
	}
	return nil
}
