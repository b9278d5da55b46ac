package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/cruise-price-tracker/internal/cache"
	"github.com/pkordes/cruise-price-tracker/testutil"
)

// mockSource is a hand-written ShipSource that counts calls.
type mockSource struct {
	calls   atomic.Int32
	ShipsFn func(ctx context.Context) (map[string]string, error)
}

var _ cache.ShipSource = (*mockSource)(nil)

func (m *mockSource) Ships(ctx context.Context) (map[string]string, error) {
	m.calls.Add(1)
	return m.ShipsFn(ctx)
}

func fixedSource(ships map[string]string) *mockSource {
	return &mockSource{ShipsFn: func(context.Context) (map[string]string, error) { return ships, nil }}
}

func TestShipDirectory_LoadsOnceAndFallsBackToCode(t *testing.T) {
	src := fixedSource(map[string]string{"WN": "Wonder of the Seas"})
	d := cache.NewShipDirectory(src, nil, nil)
	ctx := context.Background()

	assert.Equal(t, "Wonder of the Seas", d.ShipName(ctx, "WN"))
	assert.Equal(t, "XX", d.ShipName(ctx, "XX"))
	assert.Equal(t, cache.UnknownShip, d.ShipName(ctx, ""))
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestShipDirectory_ConcurrentFirstLookupsShareOneFetch(t *testing.T) {
	release := make(chan struct{})
	src := &mockSource{ShipsFn: func(context.Context) (map[string]string, error) {
		<-release
		return map[string]string{"IC": "Icon of the Seas"}, nil
	}}
	d := cache.NewShipDirectory(src, nil, nil)

	var wg sync.WaitGroup
	names := make([]string, 8)
	for i := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			names[i] = d.ShipName(context.Background(), "IC")
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, n := range names {
		assert.Equal(t, "Icon of the Seas", n)
	}
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestShipDirectory_FailureUsesCodes(t *testing.T) {
	src := &mockSource{ShipsFn: func(context.Context) (map[string]string, error) {
		return nil, errors.New("upstream down")
	}}
	d := cache.NewShipDirectory(src, nil, nil)
	ctx := context.Background()

	assert.Equal(t, "WN", d.ShipName(ctx, "WN"))
	assert.Equal(t, "WN", d.ShipName(ctx, "WN"))
	assert.Equal(t, int32(1), src.calls.Load(), "failure is remembered for a while")

	src.ShipsFn = func(context.Context) (map[string]string, error) {
		return map[string]string{"WN": "Wonder of the Seas"}, nil
	}
	require.NoError(t, d.Refresh(ctx))
	assert.Equal(t, "Wonder of the Seas", d.ShipName(ctx, "WN"))
}

func TestShipDirectory_RedisStoreSharedAcrossInstances(t *testing.T) {
	mr, rdb := testutil.NewRedis(t)
	store := cache.NewRedisStore(rdb, "", time.Hour)
	ctx := context.Background()

	first := fixedSource(map[string]string{"WN": "Wonder of the Seas", "IC": "Icon of the Seas"})
	require.Equal(t, "Icon of the Seas", cache.NewShipDirectory(first, store, nil).ShipName(ctx, "IC"))
	assert.True(t, mr.Exists(cache.DefaultShipKey))
	assert.Equal(t, time.Hour, mr.TTL(cache.DefaultShipKey))

	second := fixedSource(map[string]string{})
	d := cache.NewShipDirectory(second, store, nil)
	assert.Equal(t, "Wonder of the Seas", d.ShipName(ctx, "WN"))
	assert.Equal(t, int32(0), second.calls.Load(), "second process reads the shared copy")

	require.NoError(t, d.Invalidate(ctx))
	assert.False(t, mr.Exists(cache.DefaultShipKey))
	assert.Equal(t, "WN", d.ShipName(ctx, "WN"), "after invalidation upstream is asked again")
	assert.Equal(t, int32(1), second.calls.Load())
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := cache.Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	_ = rdb.Close()

	_, err = cache.Connect(context.Background(), "not a url")
	assert.Error(t, err)
}
