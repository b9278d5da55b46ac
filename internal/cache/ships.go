// Package cache holds the ship directory: the ship code → display name
// dictionary fetched from upstream once and shared by every run.
package cache

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// UnknownShip is shown when a booking carries no ship code at all.
const UnknownShip = "Unknown Ship"

// failureBackoff is how long a failed upstream fetch is remembered before
// the next lookup tries again.
const failureBackoff = 5 * time.Minute

// ShipSource fetches the dictionary from upstream.
type ShipSource interface {
	Ships(ctx context.Context) (map[string]string, error)
}

// Store is an optional shared backing store for the dictionary.
type Store interface {
	Load(ctx context.Context) (map[string]string, bool, error)
	Save(ctx context.Context, ships map[string]string) error
	Delete(ctx context.Context) error
}

// ShipDirectory lazily loads the dictionary on first use. Concurrent first
// lookups share a single upstream fetch.
type ShipDirectory struct {
	source ShipSource
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	ships    map[string]string
	loaded   bool
	failedAt time.Time

	group singleflight.Group
}

// NewShipDirectory builds a directory. store may be nil.
func NewShipDirectory(source ShipSource, store Store, logger *slog.Logger) *ShipDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	return &ShipDirectory{source: source, store: store, logger: logger, now: time.Now}
}

// ShipName returns the display name for code, or the code itself when the
// dictionary does not know it.
func (d *ShipDirectory) ShipName(ctx context.Context, code string) string {
	if code == "" {
		return UnknownShip
	}
	if name, ok := d.Ships(ctx)[code]; ok && name != "" {
		return name
	}
	return code
}

// Ships returns a copy of the dictionary, loading it if needed. It never
// fails: when nothing can be loaded the result is empty and callers fall
// back to ship codes.
func (d *ShipDirectory) Ships(ctx context.Context) map[string]string {
	d.mu.RLock()
	loaded, ships, failedAt := d.loaded, d.ships, d.failedAt
	d.mu.RUnlock()

	if loaded {
		return maps.Clone(ships)
	}
	if !failedAt.IsZero() && d.now().Sub(failedAt) < failureBackoff {
		return map[string]string{}
	}

	v, _, _ := d.group.Do("load", func() (any, error) {
		return d.load(ctx), nil
	})
	return maps.Clone(v.(map[string]string))
}

// load reads the backing store, then upstream.
func (d *ShipDirectory) load(ctx context.Context) map[string]string {
	if d.store != nil {
		ships, ok, err := d.store.Load(ctx)
		if err != nil {
			d.logger.WarnContext(ctx, "ship cache read failed", "error", err)
		}
		if ok {
			d.set(ships)
			return ships
		}
	}

	ships, err := d.fetch(ctx)
	if err != nil {
		d.logger.WarnContext(ctx, "could not load ship dictionary; using ship codes only", "error", err)
		d.mu.Lock()
		d.failedAt = d.now()
		d.mu.Unlock()
		return map[string]string{}
	}
	return ships
}

// fetch pulls upstream, caches in memory and writes through to the store.
func (d *ShipDirectory) fetch(ctx context.Context) (map[string]string, error) {
	ships, err := d.source.Ships(ctx)
	if err != nil {
		return nil, err
	}
	if len(ships) == 0 {
		d.logger.WarnContext(ctx, "ship dictionary was empty; using ship codes only")
	}
	d.set(ships)
	if d.store != nil {
		if err := d.store.Save(ctx, ships); err != nil {
			d.logger.WarnContext(ctx, "ship cache write failed", "error", err)
		}
	}
	return ships, nil
}

func (d *ShipDirectory) set(ships map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ships = maps.Clone(ships)
	d.loaded = true
	d.failedAt = time.Time{}
}

// Refresh re-fetches from upstream unconditionally. On failure the
// previous dictionary stays in place.
func (d *ShipDirectory) Refresh(ctx context.Context) error {
	_, err, _ := d.group.Do("refresh", func() (any, error) {
		return d.fetch(ctx)
	})
	return err
}

// Invalidate forgets the dictionary in memory and in the backing store so
// the next lookup reloads from upstream.
func (d *ShipDirectory) Invalidate(ctx context.Context) error {
	d.mu.Lock()
	d.ships = nil
	d.loaded = false
	d.failedAt = time.Time{}
	d.mu.Unlock()

	if d.store != nil {
		return d.store.Delete(ctx)
	}
	return nil
}
