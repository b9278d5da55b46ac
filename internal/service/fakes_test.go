package service_test

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/pkordes/cruise-price-tracker/internal/config"
	"github.com/pkordes/cruise-price-tracker/internal/domain"
	"github.com/pkordes/cruise-price-tracker/internal/repo"
	"github.com/pkordes/cruise-price-tracker/internal/service"
)

// ---- in-memory repos --------------------------------------------------------
// The tracker is exercised against in-memory stores that follow the same
// identity rules as the Postgres repos, so multi-run behaviour (no
// re-alerting, first sightings) can be tested without a database.

type memPrices struct {
	mu        sync.Mutex
	records   []domain.PriceRecord
	insertErr error
	cutoff    time.Time
}

func sameOpt(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m *memPrices) Insert(_ context.Context, rec domain.PriceRecord) (domain.PriceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return domain.PriceRecord{}, m.insertErr
	}
	rec.ID = int64(len(m.records) + 1)
	if rec.CheckedAt.IsZero() {
		rec.CheckedAt = time.Now()
	}
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *memPrices) GetLast(_ context.Context, id domain.PriceIdentity) (domain.PriceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.records) - 1; i >= 0; i-- {
		r := m.records[i]
		if r.ProductCode != id.ProductCode || !sameOpt(r.ReservationID, id.ReservationID) || !sameOpt(r.PassengerName, id.PassengerName) {
			continue
		}
		if id.AccountIdentity != nil && !sameOpt(r.AccountIdentity, id.AccountIdentity) {
			continue
		}
		return r, nil
	}
	return domain.PriceRecord{}, domain.ErrNotFound
}

func (m *memPrices) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoff = cutoff
	return 0, nil
}

func (m *memPrices) ListRecent(_ context.Context, _ domain.PriceFilter, _ domain.ListParams) ([]domain.PriceRecord, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.records), int64(len(m.records)), nil
}

func (m *memPrices) Summary(context.Context) (domain.PriceSummary, error) {
	return domain.PriceSummary{}, nil
}

func (m *memPrices) all() []domain.PriceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.records)
}

type memOffers struct {
	offers []domain.OfferRecord
}

func (m *memOffers) find(code string, account *string) int {
	for i, o := range m.offers {
		if o.OfferCode == code && (account == nil || sameOpt(o.AccountIdentity, account)) {
			return i
		}
	}
	return -1
}

func (m *memOffers) Exists(_ context.Context, code string, account *string) (bool, error) {
	return code != "" && m.find(code, account) >= 0, nil
}

func (m *memOffers) Insert(_ context.Context, o domain.OfferRecord) (domain.OfferRecord, error) {
	o.ID = int64(len(m.offers) + 1)
	m.offers = append(m.offers, o)
	return o, nil
}

func (m *memOffers) UpdateInPlace(_ context.Context, o domain.OfferRecord) error {
	i := m.find(o.OfferCode, o.AccountIdentity)
	if i < 0 {
		return domain.ErrNotFound
	}
	m.offers[i].OfferDetails = o.OfferDetails
	m.offers[i].ExpiryDate = o.ExpiryDate
	m.offers[i].CheckedAt = time.Now()
	return nil
}

func (m *memOffers) PurgeOlderThan(context.Context, time.Time) (int64, error) { return 0, nil }

func (m *memOffers) ListCurrent(context.Context, int) ([]domain.OfferRecord, error) {
	return m.offers, nil
}

type memRunLog struct {
	mu      sync.Mutex
	entries []domain.RunLogEntry
}

func (m *memRunLog) Insert(_ context.Context, e domain.RunLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memRunLog) ListRecent(context.Context, int) ([]domain.RunLogEntry, error) {
	return m.all(), nil
}

func (m *memRunLog) Last(context.Context) (domain.RunLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return domain.RunLogEntry{}, domain.ErrNotFound
	}
	return m.entries[len(m.entries)-1], nil
}

func (m *memRunLog) PurgeOlderThan(context.Context, time.Time) (int64, error) { return 0, nil }

func (m *memRunLog) all() []domain.RunLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.entries)
}

type memBookings struct {
	bookings []domain.BookedCruise
}

func (m *memBookings) Insert(_ context.Context, b domain.BookedCruise) (domain.BookedCruise, error) {
	b.ID = int64(len(m.bookings) + 1)
	m.bookings = append(m.bookings, b)
	return b, nil
}

func (m *memBookings) ListCurrent(context.Context) ([]domain.BookedCruise, error) {
	return m.bookings, nil
}

func (m *memBookings) PurgeOlderThan(context.Context, time.Time) (int64, error) { return 0, nil }

var (
	_ repo.PriceRepo   = (*memPrices)(nil)
	_ repo.OfferRepo   = (*memOffers)(nil)
	_ repo.RunLogRepo  = (*memRunLog)(nil)
	_ repo.BookingRepo = (*memBookings)(nil)
)

// ---- vendor doubles ---------------------------------------------------------

type mockFares struct {
	fetch func(ctx context.Context, url string) (domain.PriceSample, error)
	calls []string
}

func (m *mockFares) FetchFare(ctx context.Context, url string) (domain.PriceSample, error) {
	m.calls = append(m.calls, url)
	return m.fetch(ctx, url)
}

// mockAccount is a func-field double of service.AccountClient. Unset fields
// behave like an account with nothing on it.
type mockAccount struct {
	id             string
	loyalty        func(ctx context.Context) (domain.Loyalty, error)
	bookings       func(ctx context.Context) ([]domain.Booking, error)
	purchasedItems func(ctx context.Context, b domain.Booking, passengerID, currency string) ([]domain.PurchasedItem, error)
	addonPrice     func(ctx context.Context, b domain.Booking, item domain.PurchasedItem, g domain.Guest) (float64, error)
	catalog        func(ctx context.Context, b domain.Booking, categoryID, currency string) ([]domain.CatalogItem, error)
	offers         func(ctx context.Context, loyaltyID string) ([]domain.Offer, error)
}

func (m *mockAccount) AccountID() string { return m.id }

func (m *mockAccount) Loyalty(ctx context.Context) (domain.Loyalty, error) {
	if m.loyalty == nil {
		return domain.Loyalty{}, nil
	}
	return m.loyalty(ctx)
}

func (m *mockAccount) Bookings(ctx context.Context) ([]domain.Booking, error) {
	if m.bookings == nil {
		return nil, nil
	}
	return m.bookings(ctx)
}

func (m *mockAccount) PurchasedItems(ctx context.Context, b domain.Booking, passengerID, currency string) ([]domain.PurchasedItem, error) {
	if m.purchasedItems == nil {
		return nil, nil
	}
	return m.purchasedItems(ctx, b, passengerID, currency)
}

func (m *mockAccount) AddonPrice(ctx context.Context, b domain.Booking, item domain.PurchasedItem, g domain.Guest) (float64, error) {
	return m.addonPrice(ctx, b, item, g)
}

func (m *mockAccount) Catalog(ctx context.Context, b domain.Booking, categoryID, currency string) ([]domain.CatalogItem, error) {
	if m.catalog == nil {
		return nil, nil
	}
	return m.catalog(ctx, b, categoryID, currency)
}

func (m *mockAccount) Offers(ctx context.Context, loyaltyID string) ([]domain.Offer, error) {
	if m.offers == nil {
		return nil, nil
	}
	return m.offers(ctx, loyaltyID)
}

var _ service.AccountClient = (*mockAccount)(nil)

type sent struct {
	title string
	body  string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{title: title, body: body})
	return n.err
}

func (n *recordingNotifier) all() []sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.sent)
}

type shipMap map[string]string

func (s shipMap) ShipName(_ context.Context, code string) string {
	if name, ok := s[code]; ok {
		return name
	}
	return code
}

// ---- fixture ----------------------------------------------------------------

type fixture struct {
	prices   *memPrices
	offers   *memOffers
	runLog   *memRunLog
	bookings *memBookings
	fares    *mockFares
	accounts map[string]*mockAccount
	logins   []string
	notifier *recordingNotifier
	tracker  *service.Tracker
}

func newFixture() *fixture {
	f := &fixture{
		prices:   &memPrices{},
		offers:   &memOffers{},
		runLog:   &memRunLog{},
		bookings: &memBookings{},
		fares: &mockFares{fetch: func(context.Context, string) (domain.PriceSample, error) {
			return domain.PriceSample{}, domain.ErrUnavailable
		}},
		accounts: map[string]*mockAccount{},
		notifier: &recordingNotifier{},
	}
	auth := service.AuthenticatorFunc(func(_ context.Context, acct domain.Account) (service.AccountClient, error) {
		f.logins = append(f.logins, acct.Username)
		a, ok := f.accounts[acct.Username]
		if !ok {
			return nil, errBadPassword
		}
		return a, nil
	})
	f.tracker = service.NewTracker(service.TrackerDeps{
		Prices:        f.prices,
		Offers:        f.offers,
		RunLog:        f.runLog,
		Bookings:      f.bookings,
		Fares:         f.fares,
		Auth:          auth,
		Ships:         shipMap{"WN": "Wonder of the Seas"},
		VendorTimeout: time.Second,
	})
	return f
}

func (f *fixture) run(ctx context.Context, module string, cfg config.TrackerFile) error {
	return f.tracker.Run(ctx, service.Plan{Module: module, Config: cfg, Notifier: f.notifier})
}

func threshold(v float64) *config.Number {
	n := config.Number(v)
	return &n
}

func baseConfig() config.TrackerFile {
	return config.TrackerFile{
		Settings: config.Settings{Currency: "USD", MinSavingsThreshold: threshold(5)},
	}
}

func rawJSON(s string) json.RawMessage { return json.RawMessage(s) }
