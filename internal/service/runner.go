package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pkordes/cruise-price-tracker/internal/config"
	"github.com/pkordes/cruise-price-tracker/internal/domain"
	"github.com/pkordes/cruise-price-tracker/internal/metrics"
	"github.com/pkordes/cruise-price-tracker/internal/notify"
)

// Run state statuses.
const (
	StateIdle    = "idle"
	StateRunning = "running"
	StateSuccess = "success"
	StateError   = "error"
	StateBusy    = "busy"
)

// RunState is the dashboard's view of the latest run.
type RunState struct {
	Status    string     `json:"status"`
	Module    string     `json:"module"`
	StartedAt *time.Time `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
	Message   string     `json:"message"`
}

// ConfigLoader reads the tracker file. It is called at the start of every
// run so edits apply without a restart.
type ConfigLoader func() (config.TrackerFile, error)

// NotifierFactory builds the notifier for a run from the file's targets.
type NotifierFactory func(urls []string) (Notifier, error)

// RunnerDeps wires a Runner. Metrics and Logger may be nil.
type RunnerDeps struct {
	Tracker     *Tracker
	Gate        Gate
	LoadConfig  ConfigLoader
	NewNotifier NotifierFactory
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Runner serializes runs through the gate and keeps the run state. Manual
// and scheduled runs go through the same Runner.
type Runner struct {
	tracker     *Tracker
	gate        Gate
	loadConfig  ConfigLoader
	newNotifier NotifierFactory
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time

	// ctx is cancelled by Shutdown; background runs stop between units.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	state RunState
}

// NewRunner constructs a Runner in the idle state.
func NewRunner(d RunnerDeps) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		tracker:     d.Tracker,
		gate:        d.Gate,
		loadConfig:  d.LoadConfig,
		newNotifier: d.NewNotifier,
		metrics:     d.Metrics,
		logger:      d.Logger,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		state: RunState{
			Status:  StateIdle,
			Module:  ModuleAll,
			Message: "Waiting for first run.",
		},
	}
	if r.gate == nil {
		r.gate = NewLocalGate()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.newNotifier == nil {
		r.newNotifier = func([]string) (Notifier, error) { return nopNotifier{}, nil }
	}
	return r
}

// State returns a copy of the current run state.
func (r *Runner) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SetMessage replaces the state message without touching the status.
func (r *Runner) SetMessage(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Message = msg
}

// Trigger starts a run in the background and returns immediately. It
// returns ErrRunInProgress when another run holds the gate, and
// domain.ErrValidation for an unknown module.
func (r *Runner) Trigger(ctx context.Context, module string) error {
	module, release, err := r.acquire(ctx, module)
	if err != nil {
		return err
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer release()
		_ = r.execute(r.ctx, module)
	}()
	return nil
}

// RunNow runs synchronously on ctx.
func (r *Runner) RunNow(ctx context.Context, module string) error {
	module, release, err := r.acquire(ctx, module)
	if err != nil {
		return err
	}
	defer release()
	return r.execute(ctx, module)
}

// Shutdown stops background runs at the next unit boundary and waits for
// them, or for ctx to expire.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("service.Runner.Shutdown: %w", ctx.Err())
	}
}

func (r *Runner) acquire(ctx context.Context, module string) (string, func(), error) {
	if module == "" {
		module = ModuleAll
	}
	if !ValidModule(module) {
		return "", nil, fmt.Errorf("service.Runner: unknown module %q: %w", module, domain.ErrValidation)
	}
	release, err := r.gate.TryAcquire(ctx)
	if errors.Is(err, ErrRunInProgress) {
		r.metrics.RunRejected()
		// A run owned by this Runner keeps its state; busy is reported only
		// when another process holds the gate.
		r.update(func(s *RunState) {
			if s.Status == StateRunning {
				return
			}
			ended := r.now().UTC()
			s.Status = StateBusy
			s.Message = BusyMessage
			s.EndedAt = &ended
		})
		return "", nil, err
	}
	if err != nil {
		return "", nil, fmt.Errorf("service.Runner: %w", err)
	}
	return module, release, nil
}

// execute runs one sweep while the caller holds the gate.
func (r *Runner) execute(ctx context.Context, module string) error {
	started := r.now().UTC()
	r.update(func(s *RunState) {
		*s = RunState{Status: StateRunning, Module: module, StartedAt: &started, Message: "Checks are running."}
	})
	r.metrics.RunStarted()

	err := r.sweep(ctx, module)

	ended := r.now().UTC()
	status := StateSuccess
	if err != nil {
		status = StateError
		r.logger.ErrorContext(ctx, "run failed", "module", module, "error", err)
	}
	r.metrics.RunFinished(status, ended.Sub(started))
	r.update(func(s *RunState) {
		s.Status = status
		s.EndedAt = &ended
		s.Message = "Run completed successfully."
		if err != nil {
			s.Message = err.Error()
		}
	})
	return err
}

func (r *Runner) sweep(ctx context.Context, module string) error {
	cfg, err := r.loadConfig()
	if err != nil {
		return fmt.Errorf("load tracker config: %w", err)
	}
	notifier, err := r.newNotifier(cfg.NotificationURLs())
	if err != nil {
		return fmt.Errorf("build notifier: %w", err)
	}
	return r.tracker.Run(ctx, Plan{Module: module, Config: cfg, Notifier: notifier})
}

func (r *Runner) update(fn func(*RunState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.state)
}

// TestNotifications sends the connectivity check to every configured target.
func (r *Runner) TestNotifications(ctx context.Context) error {
	cfg, err := r.loadConfig()
	if err != nil {
		return fmt.Errorf("service.Runner.TestNotifications: %w", err)
	}
	n, err := r.newNotifier(cfg.NotificationURLs())
	if err != nil {
		return fmt.Errorf("service.Runner.TestNotifications: %w", err)
	}
	if err := notify.Test(ctx, n); err != nil {
		return fmt.Errorf("service.Runner.TestNotifications: %w", err)
	}
	return nil
}
