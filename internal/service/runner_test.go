package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/cruise-price-tracker/internal/config"
	"github.com/pkordes/cruise-price-tracker/internal/domain"
	"github.com/pkordes/cruise-price-tracker/internal/metrics"
	"github.com/pkordes/cruise-price-tracker/internal/notify"
	"github.com/pkordes/cruise-price-tracker/internal/service"
)

func newRunner(f *fixture, gate service.Gate, load service.ConfigLoader, m *metrics.Metrics) *service.Runner {
	return service.NewRunner(service.RunnerDeps{
		Tracker:    f.tracker,
		Gate:       gate,
		LoadConfig: load,
		NewNotifier: func([]string) (service.Notifier, error) {
			return f.notifier, nil
		},
		Metrics: m,
	})
}

func staticConfig(cfg config.TrackerFile) service.ConfigLoader {
	return func() (config.TrackerFile, error) { return cfg, nil }
}

func TestRunner_InitialState(t *testing.T) {
	r := newRunner(newFixture(), nil, staticConfig(baseConfig()), nil)

	s := r.State()

	assert.Equal(t, service.StateIdle, s.Status)
	assert.Equal(t, "Waiting for first run.", s.Message)
	assert.Nil(t, s.StartedAt)
}

func TestRunner_RunNow_Success(t *testing.T) {
	f := newFixture()
	f.fares.fetch = fareAt(1900)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	r := newRunner(f, nil, staticConfig(fareConfig(2000)), m)

	require.NoError(t, r.RunNow(context.Background(), domain.ModuleCruise))

	s := r.State()
	assert.Equal(t, service.StateSuccess, s.Status)
	assert.Equal(t, domain.ModuleCruise, s.Module)
	assert.Equal(t, "Run completed successfully.", s.Message)
	require.NotNil(t, s.StartedAt)
	require.NotNil(t, s.EndedAt)
	assert.False(t, s.EndedAt.Before(*s.StartedAt))
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("success")), 0)
	assert.Len(t, f.notifier.all(), 1)
}

func TestRunner_RunNow_ConfigErrorMarksStateError(t *testing.T) {
	r := newRunner(newFixture(), nil, func() (config.TrackerFile, error) {
		return config.TrackerFile{}, errors.New("config.yaml: no such file")
	}, nil)

	err := r.RunNow(context.Background(), "")

	require.Error(t, err)
	s := r.State()
	assert.Equal(t, service.StateError, s.Status)
	assert.Equal(t, service.ModuleAll, s.Module)
	assert.Contains(t, s.Message, "no such file")
}

func TestRunner_BusyGateIsReported(t *testing.T) {
	gate := service.NewLocalGate()
	release, err := gate.TryAcquire(context.Background())
	require.NoError(t, err)
	defer release()
	r := newRunner(newFixture(), gate, staticConfig(baseConfig()), nil)

	err = r.RunNow(context.Background(), service.ModuleAll)
	assert.ErrorIs(t, err, service.ErrRunInProgress)
	err = r.Trigger(context.Background(), service.ModuleAll)
	assert.ErrorIs(t, err, service.ErrRunInProgress)

	s := r.State()
	assert.Equal(t, service.StateBusy, s.Status, "gate held elsewhere")
	assert.Equal(t, service.BusyMessage, s.Message)
	require.NotNil(t, s.EndedAt)
}

func TestRunner_RejectedTriggerKeepsRunningState(t *testing.T) {
	f := newFixture()
	started := make(chan struct{})
	proceed := make(chan struct{})
	f.fares.fetch = func(ctx context.Context, url string) (domain.PriceSample, error) {
		close(started)
		<-proceed
		return fareAt(1900)(ctx, url)
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	r := newRunner(f, nil, staticConfig(fareConfig(2000)), m)

	require.NoError(t, r.Trigger(context.Background(), domain.ModuleCruise))
	<-started
	before := r.State()

	assert.ErrorIs(t, r.Trigger(context.Background(), service.ModuleAll), service.ErrRunInProgress)
	assert.ErrorIs(t, r.RunNow(context.Background(), service.ModuleAll), service.ErrRunInProgress)

	during := r.State()
	assert.Equal(t, before, during)
	assert.Equal(t, service.StateRunning, during.Status)
	assert.Equal(t, domain.ModuleCruise, during.Module)
	assert.Nil(t, during.EndedAt)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("busy")), 0)

	close(proceed)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))
	assert.Equal(t, service.StateSuccess, r.State().Status)
}

func TestRunner_UnknownModule(t *testing.T) {
	r := newRunner(newFixture(), nil, staticConfig(baseConfig()), nil)

	err := r.Trigger(context.Background(), "flights")

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, service.StateIdle, r.State().Status)
}

func TestRunner_TriggerRunsInBackground(t *testing.T) {
	f := newFixture()
	started := make(chan struct{})
	proceed := make(chan struct{})
	f.fares.fetch = func(ctx context.Context, url string) (domain.PriceSample, error) {
		close(started)
		<-proceed
		return fareAt(1900)(ctx, url)
	}
	r := newRunner(f, nil, staticConfig(fareConfig(2000)), nil)

	require.NoError(t, r.Trigger(context.Background(), domain.ModuleCruise))
	<-started
	assert.Equal(t, service.StateRunning, r.State().Status)
	assert.ErrorIs(t, r.Trigger(context.Background(), domain.ModuleCruise), service.ErrRunInProgress)

	close(proceed)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))

	assert.Equal(t, service.StateSuccess, r.State().Status)
	assert.Len(t, f.prices.all(), 1)
}

func TestRunner_TestNotifications(t *testing.T) {
	f := newFixture()
	r := newRunner(f, nil, staticConfig(baseConfig()), nil)

	require.NoError(t, r.TestNotifications(context.Background()))

	msgs := f.notifier.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, notify.TestTitle, msgs[0].title)
	assert.Equal(t, notify.TestBody, msgs[0].body)
}
