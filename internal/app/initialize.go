package app

import (
	"context"
	"fmt"

	"github.com/aatumaykin/sequencer/internal/app/builders"
	"github.com/aatumaykin/sequencer/internal/ipc"
	"github.com/aatumaykin/sequencer/internal/logger"
	"github.com/aatumaykin/sequencer/internal/scheduler"
	"github.com/aatumaykin/sequencer/internal/sequencer"
)

// Initialize builds all components. daemon additionally takes the instance
// lock and binds the metrics endpoint. Every failure wraps ErrStartup.
func (a *App) Initialize(ctx context.Context, daemon bool) (err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.initialized {
		return nil
	}

	defer func() {
		if err != nil {
			a.shutdownInternal()
			err = fmt.Errorf("%w: %w", ErrStartup, err)
		}
	}()

	// 1. Validate configuration
	if errs := a.config.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", joinErrors(errs))
	}

	schedule, err := scheduler.ParseSchedule(a.config.Runner.Schedule, a.config.Runner.TriggerInterval())
	if err != nil {
		return err
	}
	policy, err := scheduler.ParsePolicy(a.config.Runner.OverlapPolicy)
	if err != nil {
		return err
	}

	jobs := a.config.JobList()
	if err := jobs.Validate(); err != nil {
		return err
	}

	// 2. Resolve commands and build the executor
	execBuilder := builders.NewExecutorBuilder(a.config, a.logger)
	if err := execBuilder.CheckCommands(); err != nil {
		return err
	}
	if a.runner == nil {
		a.runner = execBuilder.Build()
	}

	// 3. Instance lock
	if daemon && a.config.Lock.Path != "" {
		lock, err := ipc.Acquire(a.config.Lock.Path)
		if err != nil {
			return err
		}
		a.lock = lock
		a.logger.Debug("instance lock acquired", logger.Field{Key: "path", Value: lock.Path()})
	}

	// 4. Metrics
	a.metrics = builders.NewMetricsBuilder(a.config, a.registry).Build()
	if daemon && a.config.Metrics.Enabled {
		srv, err := a.metrics.Listen(a.config.Metrics.Listen, a.config.Metrics.Path, a.logger)
		if err != nil {
			return err
		}
		a.metricsServer = srv
	}

	// 5. Sequencer and scheduler
	a.sequencer = sequencer.New(sequencer.Config{
		Jobs:          jobs,
		InterJobDelay: a.config.Runner.InterJobDelay(),
	}, a.runner, a.clock, a.logger, a.metrics)

	a.scheduler = scheduler.New(a.sequencer, schedule, policy, a.clock, a.logger, a.metrics)

	a.initialized = true
	a.logger.InfoCtx(ctx, "application initialized",
		logger.Field{Key: "jobs", Value: len(jobs)},
		logger.Field{Key: "overlap_policy", Value: string(policy)},
		logger.Field{Key: "trigger_interval", Value: a.config.Runner.TriggerInterval().String()},
		logger.Field{Key: "schedule", Value: a.config.Runner.Schedule})
	return nil
}
