// Package handler implements the HTTP handlers for the tracker API.
// All handlers are methods on Server and are mounted by Routes. Methods are
// split into domain-specific files (health.go, run.go, history.go,
// export.go, settings.go, ships.go) but share the same Server struct and its dependencies.
package handler

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/pkordes/cruise-price-tracker/spec"
	"github.com/pkordes/cruise-price-tracker/internal/config"
	"github.com/pkordes/cruise-price-tracker/internal/domain"
	"github.com/pkordes/cruise-price-tracker/internal/middleware"
	"github.com/pkordes/cruise-price-tracker/internal/service"
)

// Runner starts runs and reports the run state.
// Defining the interface here (in the consumer package) lets handler tests
// inject a mock without touching the database or the vendor.
type Runner interface {
	Trigger(ctx context.Context, module string) error
	State() service.RunState
}

// Dashboard is the read side of the API.
type Dashboard interface {
	Prices(ctx context.Context, f domain.PriceFilter, p domain.ListParams) (service.PricePage, error)
	Offers(ctx context.Context, limit int) ([]domain.OfferRecord, error)
	Bookings(ctx context.Context) ([]domain.BookedCruise, error)
	RunLog(ctx context.Context, limit int) ([]domain.RunLogEntry, error)
	Summary(ctx context.Context) (service.Summary, error)
	Export(ctx context.Context, f domain.PriceFilter) ([]domain.PriceRecord, error)
}

// Settings reads and writes the tracker file.
type Settings interface {
	Get(ctx context.Context) (config.TrackerFile, error)
	Save(ctx context.Context, f config.TrackerFile) (config.TrackerFile, error)
}

// ShipCache is the ship code dictionary shared by runs.
type ShipCache interface {
	Refresh(ctx context.Context) error
	Invalidate(ctx context.Context) error
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// maxSettingsBody caps PUT /api/settings.
const maxSettingsBody = 1 << 20

// Server holds the dependencies of every handler.
type Server struct {
	runner    Runner
	dashboard Dashboard
	settings  Settings
	ships     ShipCache
	db        Pinger
	logger    *slog.Logger
}

// NewServer constructs the Server with all its dependencies. db may be nil,
// in which case /healthz does not probe the database. ships may be nil, in
// which case the ship cache routes are not mounted.
func NewServer(runner Runner, dashboard Dashboard, settings Settings, ships ShipCache, db Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{runner: runner, dashboard: dashboard, settings: settings, ships: ships, db: db, logger: logger}
}

// Routes returns the API router. Cross-cutting middleware (request ID,
// logging, CORS, recovery) is applied by the caller.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", spec.Handler)

	r.Route("/api", func(r chi.Router) {
		r.Post("/run", s.PostRun)
		r.Get("/run-status", s.GetRunStatus)
		r.Get("/prices", s.ListPrices)
		r.Get("/prices/export", s.ExportPrices)
		r.Get("/offers", s.ListOffers)
		r.Get("/bookings", s.ListBookings)
		r.Get("/run-log", s.ListRunLog)
		r.Get("/summary", s.GetSummary)
		r.Get("/settings", s.GetSettings)
		r.With(middleware.NewMaxBodySizeHandler(maxSettingsBody)).Put("/settings", s.PutSettings)
		if s.ships != nil {
			r.Post("/ships/refresh", s.RefreshShips)
			r.Delete("/ships/cache", s.InvalidateShips)
		}
	})
	return r
}
