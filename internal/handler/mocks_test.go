package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pkordes/cruise-price-tracker/internal/cache"
	"github.com/pkordes/cruise-price-tracker/internal/config"
	"github.com/pkordes/cruise-price-tracker/internal/domain"
	"github.com/pkordes/cruise-price-tracker/internal/handler"
	"github.com/pkordes/cruise-price-tracker/internal/service"
)

// Test doubles for the handler's consumer-side interfaces.
// Set only the method fields your test needs.

type mockRunner struct {
	trigger func(ctx context.Context, module string) error
	state   func() service.RunState
}

func (m *mockRunner) Trigger(ctx context.Context, module string) error { return m.trigger(ctx, module) }
func (m *mockRunner) State() service.RunState                         { return m.state() }

type mockDashboard struct {
	prices   func(ctx context.Context, f domain.PriceFilter, p domain.ListParams) (service.PricePage, error)
	offers   func(ctx context.Context, limit int) ([]domain.OfferRecord, error)
	bookings func(ctx context.Context) ([]domain.BookedCruise, error)
	runLog   func(ctx context.Context, limit int) ([]domain.RunLogEntry, error)
	summary  func(ctx context.Context) (service.Summary, error)
	export   func(ctx context.Context, f domain.PriceFilter) ([]domain.PriceRecord, error)
}

func (m *mockDashboard) Prices(ctx context.Context, f domain.PriceFilter, p domain.ListParams) (service.PricePage, error) {
	return m.prices(ctx, f, p)
}
func (m *mockDashboard) Offers(ctx context.Context, limit int) ([]domain.OfferRecord, error) {
	return m.offers(ctx, limit)
}
func (m *mockDashboard) Bookings(ctx context.Context) ([]domain.BookedCruise, error) {
	return m.bookings(ctx)
}
func (m *mockDashboard) RunLog(ctx context.Context, limit int) ([]domain.RunLogEntry, error) {
	return m.runLog(ctx, limit)
}
func (m *mockDashboard) Summary(ctx context.Context) (service.Summary, error) {
	return m.summary(ctx)
}
func (m *mockDashboard) Export(ctx context.Context, f domain.PriceFilter) ([]domain.PriceRecord, error) {
	return m.export(ctx, f)
}

type mockSettings struct {
	get  func(ctx context.Context) (config.TrackerFile, error)
	save func(ctx context.Context, f config.TrackerFile) (config.TrackerFile, error)
}

func (m *mockSettings) Get(ctx context.Context) (config.TrackerFile, error) { return m.get(ctx) }
func (m *mockSettings) Save(ctx context.Context, f config.TrackerFile) (config.TrackerFile, error) {
	return m.save(ctx, f)
}

type mockShips struct {
	refresh    func(ctx context.Context) error
	invalidate func(ctx context.Context) error
}

func (m *mockShips) Refresh(ctx context.Context) error    { return m.refresh(ctx) }
func (m *mockShips) Invalidate(ctx context.Context) error { return m.invalidate(ctx) }

type mockPinger struct {
	err error
}

func (m mockPinger) Ping(context.Context) error { return m.err }

// compile-time checks: mocks must satisfy the handler interfaces.
var (
	_ handler.Runner    = (*mockRunner)(nil)
	_ handler.Dashboard = (*mockDashboard)(nil)
	_ handler.Settings  = (*mockSettings)(nil)
	_ handler.ShipCache = (*mockShips)(nil)
	_ handler.Pinger    = mockPinger{}
	_ handler.ShipCache = (*cache.ShipDirectory)(nil)
	_ handler.Runner    = (*service.Runner)(nil)
	_ handler.Dashboard = (*service.Dashboard)(nil)
	_ handler.Settings  = (*service.SettingsService)(nil)
)

// ---- helpers ---------------------------------------------------------------

type deps struct {
	runner    *mockRunner
	dashboard *mockDashboard
	settings  *mockSettings
	ships     handler.ShipCache
	db        handler.Pinger
}

// serve routes one request through the same router main wires in production.
func serve(t *testing.T, d deps, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if d.runner == nil {
		d.runner = &mockRunner{}
	}
	if d.dashboard == nil {
		d.dashboard = &mockDashboard{}
	}
	if d.settings == nil {
		d.settings = &mockSettings{}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := handler.NewServer(d.runner, d.dashboard, d.settings, d.ships, d.db, logger)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}
