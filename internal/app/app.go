// Package app wires the job sequencer together: configuration, logger,
// executor, sequencer, scheduler, metrics endpoint and the instance lock.
package app

import (
	"context"
	"errors"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aatumaykin/sequencer/internal/config"
	"github.com/aatumaykin/sequencer/internal/executor"
	"github.com/aatumaykin/sequencer/internal/ipc"
	"github.com/aatumaykin/sequencer/internal/logger"
	"github.com/aatumaykin/sequencer/internal/metrics"
	"github.com/aatumaykin/sequencer/internal/scheduler"
	"github.com/aatumaykin/sequencer/internal/sequencer"
)

// Process exit codes.
const (
	ExitOK               = 0
	ExitStartupFailure   = 1
	ExitSchedulerFailure = 2
)

// ErrStartup wraps every error raised before the first pass starts.
var ErrStartup = errors.New("startup failed")

// App represents the main application structure.
type App struct {
	config *config.Config
	logger *logger.Logger

	clock    clockwork.Clock
	runner   executor.Runner
	registry *prometheus.Registry

	metrics       *metrics.Metrics
	metricsServer *metrics.Server
	lock          *ipc.InstanceLock
	sequencer     *sequencer.Sequencer
	scheduler     *scheduler.Scheduler

	mu          sync.Mutex
	initialized bool
}

// Option customizes an App, mostly for tests.
type Option func(*App)

// WithClock replaces the real clock.
func WithClock(c clockwork.Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithRunner replaces the process runner.
func WithRunner(r executor.Runner) Option {
	return func(a *App) { a.runner = r }
}

// WithRegistry registers metrics on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(a *App) { a.registry = reg }
}

// New creates a new App instance. Components are built in Initialize.
func New(cfg *config.Config, log *logger.Logger, opts ...Option) *App {
	if log == nil {
		log = logger.Nop()
	}
	a := &App{
		config: cfg,
		logger: log,
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the daemon and blocks until ctx is cancelled or the scheduler
// fails. A clean cancellation returns nil.
func (a *App) Run(ctx context.Context) error {
	if err := a.Initialize(ctx, true); err != nil {
		return err
	}
	defer a.Shutdown()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if a.metricsServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.metricsServer.Serve(ctx); err != nil {
				a.logger.Error("metrics endpoint stopped", err)
			}
		}()
	}

	a.logger.Info("application is running",
		logger.Field{Key: "jobs", Value: len(a.sequencer.Jobs())},
		logger.Field{Key: "inter_job_delay", Value: a.sequencer.InterJobDelay().String()})

	err := a.scheduler.Run(ctx)
	cancel()
	wg.Wait()

	if err != nil {
		a.logger.Error("scheduler failed", err)
		return err
	}
	a.logger.Info("application stopped")
	return nil
}

// RunOnce runs a single pass and returns its report. The daemon-only parts
// (lock, metrics endpoint) are not started.
func (a *App) RunOnce(ctx context.Context) (sequencer.Report, error) {
	if err := a.Initialize(ctx, false); err != nil {
		return sequencer.Report{}, err
	}
	defer a.Shutdown()

	return a.sequencer.RunSingle(ctx), nil
}

// Scheduler returns the scheduler built by Initialize.
func (a *App) Scheduler() *scheduler.Scheduler {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scheduler
}

// ExitCode maps an error returned by Run to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, scheduler.ErrNoNextActivation):
		return ExitSchedulerFailure
	default:
		return ExitStartupFailure
	}
}
