package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/pkordes/cruise-price-tracker/internal/domain"
	"github.com/pkordes/cruise-price-tracker/internal/repo"
)

// DefaultOfferLimit and DefaultRunLogLimit cap the dashboard lists.
const (
	DefaultOfferLimit  = 100
	DefaultRunLogLimit = 100
	maxListLimit       = 500
)

// Dashboard serves the read side of the API.
type Dashboard struct {
	prices   repo.PriceRepo
	offers   repo.OfferRepo
	runLog   repo.RunLogRepo
	bookings repo.BookingRepo
}

// NewDashboard constructs a Dashboard over the given repos.
func NewDashboard(prices repo.PriceRepo, offers repo.OfferRepo, runLog repo.RunLogRepo, bookings repo.BookingRepo) *Dashboard {
	return &Dashboard{prices: prices, offers: offers, runLog: runLog, bookings: bookings}
}

// PricePage is one page of price history.
type PricePage struct {
	Items []domain.PriceRecord `json:"items"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}

// Summary is the dashboard header.
type Summary struct {
	domain.PriceSummary
	Offers  int64               `json:"offers"`
	LastRun *domain.RunLogEntry `json:"last_run"`
}

// Prices lists price history, newest first.
func (d *Dashboard) Prices(ctx context.Context, f domain.PriceFilter, p domain.ListParams) (PricePage, error) {
	switch f.RecordType {
	case "", domain.RecordCruise, domain.RecordAddon:
	default:
		return PricePage{}, fmt.Errorf("service.Dashboard.Prices: record_type %q: %w", f.RecordType, domain.ErrValidation)
	}
	items, total, err := d.prices.ListRecent(ctx, f, p)
	if err != nil {
		return PricePage{}, fmt.Errorf("service.Dashboard.Prices: %w", err)
	}
	if items == nil {
		items = []domain.PriceRecord{}
	}
	return PricePage{Items: items, Total: total, Page: p.Page, Limit: p.Limit}, nil
}

// Offers lists the latest sighting of each offer.
func (d *Dashboard) Offers(ctx context.Context, limit int) ([]domain.OfferRecord, error) {
	offers, err := d.offers.ListCurrent(ctx, clampLimit(limit, DefaultOfferLimit))
	if err != nil {
		return nil, fmt.Errorf("service.Dashboard.Offers: %w", err)
	}
	if offers == nil {
		offers = []domain.OfferRecord{}
	}
	return offers, nil
}

// Bookings lists the latest snapshot of each reservation.
func (d *Dashboard) Bookings(ctx context.Context) ([]domain.BookedCruise, error) {
	bookings, err := d.bookings.ListCurrent(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.Dashboard.Bookings: %w", err)
	}
	if bookings == nil {
		bookings = []domain.BookedCruise{}
	}
	return bookings, nil
}

// RunLog lists recent unit outcomes, newest first.
func (d *Dashboard) RunLog(ctx context.Context, limit int) ([]domain.RunLogEntry, error) {
	entries, err := d.runLog.ListRecent(ctx, clampLimit(limit, DefaultRunLogLimit))
	if err != nil {
		return nil, fmt.Errorf("service.Dashboard.RunLog: %w", err)
	}
	if entries == nil {
		entries = []domain.RunLogEntry{}
	}
	return entries, nil
}

// Summary returns counts, the per-account roll-up and the last run-log entry.
func (d *Dashboard) Summary(ctx context.Context) (Summary, error) {
	ps, err := d.prices.Summary(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("service.Dashboard.Summary: %w", err)
	}
	s := Summary{PriceSummary: ps}
	for _, a := range ps.Accounts {
		s.Offers += a.OfferCount
	}

	last, err := d.runLog.Last(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return Summary{}, fmt.Errorf("service.Dashboard.Summary: %w", err)
	default:
		s.LastRun = &last
	}
	return s, nil
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, maxListLimit)
}
