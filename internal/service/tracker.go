package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/cruise-price-tracker/internal/config"
	"github.com/pkordes/cruise-price-tracker/internal/domain"
	"github.com/pkordes/cruise-price-tracker/internal/metrics"
	"github.com/pkordes/cruise-price-tracker/internal/pricing"
	"github.com/pkordes/cruise-price-tracker/internal/repo"
)

// DefaultVendorTimeout bounds one vendor call when TrackerDeps leaves it zero.
const DefaultVendorTimeout = 30 * time.Second

// TrackerDeps wires a Tracker. Ships, Metrics and Logger may be nil.
type TrackerDeps struct {
	Prices        repo.PriceRepo
	Offers        repo.OfferRepo
	RunLog        repo.RunLogRepo
	Bookings      repo.BookingRepo
	Fares         FareFetcher
	Auth          Authenticator
	Ships         ShipNamer
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
	VendorTimeout time.Duration
}

// Tracker runs the price sweeps. It is stateless between runs; everything a
// run needs arrives in its Plan.
type Tracker struct {
	prices        repo.PriceRepo
	offers        repo.OfferRepo
	runLog        repo.RunLogRepo
	bookings      repo.BookingRepo
	fares         FareFetcher
	auth          Authenticator
	ships         ShipNamer
	metrics       *metrics.Metrics
	logger        *slog.Logger
	vendorTimeout time.Duration
	now           func() time.Time
}

// NewTracker constructs a Tracker.
func NewTracker(d TrackerDeps) *Tracker {
	t := &Tracker{
		prices:        d.Prices,
		offers:        d.Offers,
		runLog:        d.RunLog,
		bookings:      d.Bookings,
		fares:         d.Fares,
		auth:          d.Auth,
		ships:         d.Ships,
		metrics:       d.Metrics,
		logger:        d.Logger,
		vendorTimeout: d.VendorTimeout,
		now:           time.Now,
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.vendorTimeout <= 0 {
		t.vendorTimeout = DefaultVendorTimeout
	}
	if t.ships == nil {
		t.ships = codeShipNamer{}
	}
	return t
}

// Plan is the input of one run: the selected module, the tracker file as
// read at the start of the run, and the notifier built from it.
type Plan struct {
	Module   string
	Config   config.TrackerFile
	Notifier Notifier
}

// run carries per-run settings through the sweeps.
type run struct {
	id        string
	cfg       config.TrackerFile
	notifier  Notifier
	logger    *slog.Logger
	threshold float64
	currency  string
}

// Run executes one sweep: purge, then the account sweeps (auth, addons,
// casino), then the fare watchlist. Unit failures are recorded in the run
// log and the sweep moves on. A store failure aborts the run and is
// returned wrapped with domain.ErrStore, as is cancellation of ctx between
// units.
func (t *Tracker) Run(ctx context.Context, p Plan) error {
	module := p.Module
	if module == "" {
		module = ModuleAll
	}
	if !ValidModule(module) {
		return fmt.Errorf("service.Tracker.Run: unknown module %q: %w", module, domain.ErrValidation)
	}
	notifier := p.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}

	id := uuid.NewString()
	r := &run{
		id:        id,
		cfg:       p.Config,
		notifier:  notifier,
		logger:    t.logger.With("run_id", id, "run_module", module),
		threshold: p.Config.Settings.Threshold(),
		currency:  p.Config.Settings.CurrencyCode(),
	}
	r.logger.InfoContext(ctx, "run started")

	if _, err := t.Purge(ctx, p.Config.Settings.HistoryDays()); err != nil {
		return fmt.Errorf("service.Tracker.Run: %w", err)
	}

	if module == ModuleAll || module == domain.ModuleAddons || module == domain.ModuleCasino {
		if err := t.sweepAccounts(ctx, r, module); err != nil {
			return fmt.Errorf("service.Tracker.Run: %w", err)
		}
	}
	if module == ModuleAll || module == domain.ModuleCruise {
		if err := t.sweepFares(ctx, r); err != nil {
			return fmt.Errorf("service.Tracker.Run: %w", err)
		}
	}

	r.logger.InfoContext(ctx, "run finished")
	return nil
}

// PurgeResult counts the rows removed from each table.
type PurgeResult struct {
	Prices   int64
	Offers   int64
	RunLog   int64
	Bookings int64
}

// Purge removes every record older than days.
func (t *Tracker) Purge(ctx context.Context, days int) (PurgeResult, error) {
	if days <= 0 {
		days = config.DefaultHistoryDays
	}
	cutoff := t.now().AddDate(0, 0, -days)

	var res PurgeResult
	steps := []struct {
		table string
		purge func(context.Context, time.Time) (int64, error)
		dst   *int64
	}{
		{"price_history", t.prices.PurgeOlderThan, &res.Prices},
		{"casino_offers", t.offers.PurgeOlderThan, &res.Offers},
		{"run_log", t.runLog.PurgeOlderThan, &res.RunLog},
		{"booked_cruises", t.bookings.PurgeOlderThan, &res.Bookings},
	}
	for _, s := range steps {
		n, err := s.purge(ctx, cutoff)
		if err != nil {
			return res, fmt.Errorf("service.Tracker.Purge: %s: %w: %w", s.table, domain.ErrStore, err)
		}
		*s.dst = n
		t.metrics.Purged(s.table, n)
	}
	t.logger.InfoContext(ctx, "purged old records",
		"days", days, "prices", res.Prices, "offers", res.Offers, "run_log", res.RunLog, "bookings", res.Bookings)
	return res, nil
}

// sweepAccounts logs each account in and runs the add-on and casino checks
// the module selects.
func (t *Tracker) sweepAccounts(ctx context.Context, r *run, module string) error {
	wantAddons := (module == ModuleAll || module == domain.ModuleAddons) && r.cfg.AddonTracking.IsEnabled()
	wantCasino := (module == ModuleAll || module == domain.ModuleCasino) && r.cfg.CasinoTracking.IsEnabled()

	for _, acct := range r.cfg.DomainAccounts() {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger := r.logger.With("account", acct.Username)

		vctx, cancel := t.vendorContext(ctx)
		client, err := t.auth.Login(vctx, acct)
		cancel()
		if err != nil {
			logger.ErrorContext(ctx, "authentication failed", "error", err)
			if err := t.logUnit(ctx, domain.ModuleAuth, domain.StatusError,
				fmt.Sprintf("Authentication failed for %s: %v", acct.Username, err)); err != nil {
				return err
			}
			continue
		}
		if err := t.logUnit(ctx, domain.ModuleAuth, domain.StatusSuccess,
			fmt.Sprintf("Authenticated account %s", acct.Username)); err != nil {
			return err
		}

		if wantAddons {
			err := t.checkAddons(ctx, r, logger, acct, client)
			if err := t.finishUnit(ctx, logger, domain.ModuleAddons, err,
				"Add-on check complete for "+acct.Username,
				"Add-on check failed for "+acct.Username); err != nil {
				return err
			}
		}
		if wantCasino {
			err := t.checkCasino(ctx, r, logger, acct, client)
			if err := t.finishUnit(ctx, logger, domain.ModuleCasino, err,
				"Casino check complete for "+acct.Username,
				"Casino check failed for "+acct.Username); err != nil {
				return err
			}
		}
	}
	return nil
}

// sweepFares checks every watchlist entry.
func (t *Tracker) sweepFares(ctx context.Context, r *run) error {
	for _, w := range r.cfg.CruiseWatchlist {
		if err := ctx.Err(); err != nil {
			return err
		}
		label := w.DisplayLabel()
		logger := r.logger.With("label", label)
		err := t.checkFare(ctx, r, logger, w)
		if err := t.finishUnit(ctx, logger, domain.ModuleCruise, err,
			"Cruise check complete for "+label,
			"Cruise check failed for "+label); err != nil {
			return err
		}
	}
	return nil
}

// finishUnit records the outcome of one unit. It returns an error only when
// the run must stop: a store failure, or cancellation of ctx.
func (t *Tracker) finishUnit(ctx context.Context, logger *slog.Logger, module string, unitErr error, okMsg, failMsg string) error {
	if unitErr != nil && errors.Is(unitErr, domain.ErrStore) {
		return unitErr
	}
	if unitErr != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if unitErr != nil {
		logger.ErrorContext(ctx, "unit failed", "module", module, "error", unitErr)
		return t.logUnit(ctx, module, domain.StatusError, fmt.Sprintf("%s: %v", failMsg, unitErr))
	}
	return t.logUnit(ctx, module, domain.StatusSuccess, okMsg)
}

func (t *Tracker) logUnit(ctx context.Context, module string, status domain.RunStatus, msg string) error {
	t.metrics.Unit(module, string(status))
	if err := t.runLog.Insert(ctx, domain.RunLogEntry{
		RanAt:   t.now().UTC(),
		Module:  module,
		Status:  status,
		Message: msg,
	}); err != nil {
		return fmt.Errorf("log %s unit: %w: %w", module, domain.ErrStore, err)
	}
	return nil
}

// vendorContext bounds one vendor call. It is detached from ctx's
// cancellation so a call already in flight completes and its result is
// persisted; the sweep checks ctx between units instead.
func (t *Tracker) vendorContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), t.vendorTimeout)
}

// insertPrice persists rec, wrapping failures with domain.ErrStore.
func (t *Tracker) insertPrice(ctx context.Context, rec domain.PriceRecord) error {
	if _, err := t.prices.Insert(ctx, rec); err != nil {
		return fmt.Errorf("insert %s price %s: %w: %w", rec.RecordType, rec.ProductCode, domain.ErrStore, err)
	}
	return nil
}

// lastPrice returns the current price of the newest record for id, or nil
// when the identity has no history.
func (t *Tracker) lastPrice(ctx context.Context, id domain.PriceIdentity) (*float64, error) {
	last, err := t.prices.GetLast(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last price %s: %w: %w", id.ProductCode, domain.ErrStore, err)
	}
	return &last.CurrentPrice, nil
}

// alert sends a notification. Delivery failures are logged and counted but
// never fail the unit: the observation is already persisted.
func (t *Tracker) alert(ctx context.Context, r *run, logger *slog.Logger, msg message) {
	vctx, cancel := t.vendorContext(ctx)
	defer cancel()
	if err := r.notifier.Send(vctx, msg.title, msg.body); err != nil {
		t.metrics.NotifyFailed()
		logger.WarnContext(ctx, "notification failed", "title", msg.title, "error", err)
	}
}

// evaluate runs the drop detector against the identity's last observation.
func (t *Tracker) evaluate(ctx context.Context, r *run, rec domain.PriceRecord, paid, current float64) (pricing.Verdict, error) {
	last, err := t.lastPrice(ctx, rec.Identity())
	if err != nil {
		return pricing.Verdict{}, err
	}
	return pricing.Evaluate(paid, current, last, r.threshold), nil
}

type nopNotifier struct{}

func (nopNotifier) Send(context.Context, string, string) error { return nil }

// codeShipNamer is used when no ship directory is wired.
type codeShipNamer struct{}

func (codeShipNamer) ShipName(_ context.Context, code string) string {
	if code == "" {
		return "Unknown Ship"
	}
	return code
}
