package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/cruise-price-tracker/internal/cache"
	"github.com/pkordes/cruise-price-tracker/internal/handler"
)

type shipSourceFunc func(ctx context.Context) (map[string]string, error)

func (f shipSourceFunc) Ships(ctx context.Context) (map[string]string, error) { return f(ctx) }

func TestRefreshShips_ok(t *testing.T) {
	calls := 0
	ships := &mockShips{refresh: func(context.Context) error {
		calls++
		return nil
	}}

	rec := serve(t, deps{ships: ships}, httptest.NewRequest(http.MethodPost, "/api/ships/refresh", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "refreshed", decode[map[string]string](t, rec)["status"])
	assert.Equal(t, 1, calls)
}

func TestRefreshShips_upstreamFailureIs502(t *testing.T) {
	ships := &mockShips{refresh: func(context.Context) error { return errors.New("503 from upstream") }}

	rec := serve(t, deps{ships: ships}, httptest.NewRequest(http.MethodPost, "/api/ships/refresh", nil))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode[handler.ErrorResponse](t, rec)
	assert.Equal(t, "upstream_unavailable", body.Error.Code)
	assert.NotContains(t, body.Error.Message, "503")
}

func TestInvalidateShips(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"cleared", nil, http.StatusNoContent},
		{"store failure", errors.New("redis: connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ships := &mockShips{invalidate: func(context.Context) error { return tc.err }}

			rec := serve(t, deps{ships: ships}, httptest.NewRequest(http.MethodDelete, "/api/ships/cache", nil))

			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestShipRoutes_notMountedWithoutCache(t *testing.T) {
	rec := serve(t, deps{}, httptest.NewRequest(http.MethodPost, "/api/ships/refresh", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// A failed first load leaves runs on ship codes; the refresh route recovers
// the names without waiting out the failure backoff.
func TestRefreshShips_recoversDirectoryAfterFailedLoad(t *testing.T) {
	up := false
	src := shipSourceFunc(func(context.Context) (map[string]string, error) {
		if !up {
			return nil, errors.New("connection reset")
		}
		return map[string]string{"WN": "Wonder of the Seas"}, nil
	})
	dir := cache.NewShipDirectory(src, nil, nil)
	ctx := context.Background()
	require.Equal(t, "WN", dir.ShipName(ctx, "WN"))

	up = true
	require.Equal(t, "WN", dir.ShipName(ctx, "WN"), "still inside the failure backoff")

	rec := serve(t, deps{ships: dir}, httptest.NewRequest(http.MethodPost, "/api/ships/refresh", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Wonder of the Seas", dir.ShipName(ctx, "WN"))
}
