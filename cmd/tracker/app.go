package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/pkordes/cruise-price-tracker/internal/cache"
	"github.com/pkordes/cruise-price-tracker/internal/config"
	"github.com/pkordes/cruise-price-tracker/internal/domain"
	"github.com/pkordes/cruise-price-tracker/internal/handler"
	"github.com/pkordes/cruise-price-tracker/internal/metrics"
	"github.com/pkordes/cruise-price-tracker/internal/middleware"
	"github.com/pkordes/cruise-price-tracker/internal/notify"
	"github.com/pkordes/cruise-price-tracker/internal/repo"
	"github.com/pkordes/cruise-price-tracker/internal/service"
	"github.com/pkordes/cruise-price-tracker/internal/vendor"
	"github.com/pkordes/cruise-price-tracker/migrations"
)

// app holds everything a command needs once wired.
type app struct {
	pool      *pgxpool.Pool
	rdb       *redis.Client
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	ships     *cache.ShipDirectory
	runner    *service.Runner
	dashboard *service.Dashboard
	settings  *service.SettingsService
}

// openDatabase creates the pool and verifies the database is reachable.
// pgxpool.New does not open connections immediately; the ping does.
func openDatabase(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return pool, nil
}

// newProvider returns a goose provider over the pool's connections.
func newProvider(pool *pgxpool.Pool) (*goose.Provider, func() error, error) {
	db := stdlib.OpenDBFromPool(pool)
	p, err := migrations.NewProvider(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return p, db.Close, nil
}

// migrateUp applies every pending migration.
func migrateUp(ctx context.Context, pool *pgxpool.Pool) error {
	p, closeDB, err := newProvider(pool)
	if err != nil {
		return err
	}
	defer closeDB()
	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		logger.InfoContext(ctx, "migration applied", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

// newApp wires the database, the optional Redis, the vendor client and the
// services. Without REDIS_URL the run gate and ship cache are in-process.
func newApp(ctx context.Context) (*app, error) {
	pool, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "database connection established")
	a := &app{pool: pool}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	client := vendor.NewClient(vendor.Options{
		Timeout: cfg.VendorTimeout,
		Limiter: rate.NewLimiter(rate.Limit(cfg.VendorRate), cfg.VendorBurst),
		Logger:  logger,
	})

	var store cache.Store
	var gate service.Gate = service.NewLocalGate()
	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			a.close()
			return nil, err
		}
		a.rdb = rdb
		store = cache.NewRedisStore(rdb, cache.DefaultShipKey, cfg.ShipCacheTTL)
		gate = service.NewRedisGate(rdb, service.DefaultGateKey, 0, logger)
		logger.InfoContext(ctx, "redis connection established")
	}
	a.ships = cache.NewShipDirectory(client, store, logger)

	prices := repo.NewPriceRepo(pool)
	offers := repo.NewOfferRepo(pool)
	runLog := repo.NewRunLogRepo(pool)
	bookings := repo.NewBookingRepo(pool)

	tracker := service.NewTracker(service.TrackerDeps{
		Prices:   prices,
		Offers:   offers,
		RunLog:   runLog,
		Bookings: bookings,
		Fares:    client,
		Auth: service.AuthenticatorFunc(func(ctx context.Context, acct domain.Account) (service.AccountClient, error) {
			s, err := client.Login(ctx, acct)
			if err != nil {
				return nil, err
			}
			return s, nil
		}),
		Ships:         a.ships,
		Metrics:       a.metrics,
		Logger:        logger,
		VendorTimeout: cfg.VendorTimeout,
	})

	a.runner = service.NewRunner(service.RunnerDeps{
		Tracker: tracker,
		Gate:    gate,
		LoadConfig: func() (config.TrackerFile, error) {
			return config.LoadTrackerFile(cfg.TrackerConfig)
		},
		NewNotifier: func(urls []string) (service.Notifier, error) {
			s, err := notify.New(urls, logger)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		Metrics: a.metrics,
		Logger:  logger,
	})
	a.dashboard = service.NewDashboard(prices, offers, runLog, bookings)
	a.settings = service.NewSettingsService(cfg.TrackerConfig, logger)
	return a, nil
}

// router builds the HTTP handler.
// Middleware is applied in order: RequestID, RealIP, SlogLogger, Metrics,
// CORS, Recoverer.
func (a *app) router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(middleware.NewMetrics(a.metrics))
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(chimiddleware.Recoverer)

	r.Handle("/metrics", metrics.Handler(a.registry))
	srv := handler.NewServer(a.runner, a.dashboard, a.settings, a.ships, a.pool, logger)
	r.Mount("/", srv.Routes())
	return r
}

func (a *app) close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	a.pool.Close()
}
