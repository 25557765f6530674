// Package sequencer runs the job table once, strictly in order: one external
// command at a time, a fixed delay after each, and failures never stop the pass.
package sequencer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/aatumaykin/sequencer/internal/executor"
	"github.com/aatumaykin/sequencer/internal/job"
	"github.com/aatumaykin/sequencer/internal/logger"
	"github.com/aatumaykin/sequencer/internal/metrics"
)

// Config is the static input of a Sequencer.
type Config struct {
	Jobs          job.List      // Executed in index order
	InterJobDelay time.Duration // Wait after every job, success or failure
}

// Sequencer executes one pass over the job list per RunSequence call.
// It holds no mutable state between passes.
type Sequencer struct {
	cfg     Config
	runner  executor.Runner
	clock   clockwork.Clock
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// New creates a Sequencer. A nil clock means the real clock; m may be nil.
func New(cfg Config, runner executor.Runner, clock clockwork.Clock, log *logger.Logger, m *metrics.Metrics) *Sequencer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Sequencer{
		cfg:     cfg,
		runner:  runner,
		clock:   clock,
		logger:  log,
		metrics: m,
	}
}

// Jobs returns the job list this sequencer runs.
func (s *Sequencer) Jobs() job.List {
	return s.cfg.Jobs
}

// InterJobDelay returns the configured wait after each job.
func (s *Sequencer) InterJobDelay() time.Duration {
	return s.cfg.InterJobDelay
}

// RunSequence executes every job in order and waits InterJobDelay after each
// one, including the last. A failed job is logged and the pass moves on.
// Cancelling ctx kills the running job and abandons the rest of the pass.
func (s *Sequencer) RunSequence(ctx context.Context) Report {
	return s.run(ctx, true)
}

// RunSingle is RunSequence without the wait after the last job. Used when no
// pass follows.
func (s *Sequencer) RunSingle(ctx context.Context) Report {
	return s.run(ctx, false)
}

func (s *Sequencer) run(ctx context.Context, trailingDelay bool) Report {
	report := Report{
		PassID:  uuid.NewString(),
		Started: s.clock.Now(),
		Results: make([]job.Result, 0, len(s.cfg.Jobs)),
	}
	log := s.logger.With(logger.Field{Key: "pass_id", Value: report.PassID})

	log.InfoCtx(ctx, "pass started",
		logger.Field{Key: "jobs", Value: len(s.cfg.Jobs)},
		logger.Field{Key: "inter_job_delay", Value: s.cfg.InterJobDelay.String()})

	for i, spec := range s.cfg.Jobs {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}

		log.InfoCtx(ctx, "running command",
			logger.Field{Key: "job", Value: spec.Name()},
			logger.Field{Key: "index", Value: i},
			logger.Field{Key: "command", Value: spec.CommandLine()})

		result := s.runJob(ctx, i, spec)
		report.Results = append(report.Results, result)
		s.logResult(ctx, log, result)
		s.metrics.RecordJob(spec.Name(), string(result.Status), result.Duration)

		if i == len(s.cfg.Jobs)-1 && !trailingDelay {
			break
		}
		if !s.wait(ctx, s.cfg.InterJobDelay) {
			report.Cancelled = true
			break
		}
	}

	report.Finished = s.clock.Now()
	outcome := metrics.PassCompleted
	if report.Cancelled {
		outcome = metrics.PassCancelled
	}
	s.metrics.RecordPass(outcome, report.Finished)

	log.InfoCtx(ctx, "pass finished",
		logger.Field{Key: "succeeded", Value: report.Succeeded()},
		logger.Field{Key: "failed", Value: report.Failed()},
		logger.Field{Key: "cancelled", Value: report.Cancelled},
		logger.Field{Key: "elapsed", Value: report.Finished.Sub(report.Started).String()})

	return report
}

// runJob runs one job and converts a runner panic into a failed result so the
// pass can continue.
func (s *Sequencer) runJob(ctx context.Context, index int, spec job.Spec) (result job.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = job.Result{
				Name:     spec.Name(),
				Status:   job.StatusFailed,
				ExitCode: -1,
				Err:      fmt.Errorf("panic: %v", r),
			}
		}
		result.Index = index
		if result.Name == "" {
			result.Name = spec.Name()
		}
	}()

	return s.runner.Run(ctx, spec)
}

func (s *Sequencer) logResult(ctx context.Context, log *logger.Logger, result job.Result) {
	fields := []logger.Field{
		{Key: "job", Value: result.Name},
		{Key: "index", Value: result.Index},
		{Key: "duration", Value: result.Duration.String()},
	}

	switch {
	case result.Succeeded():
		log.InfoCtx(ctx, "command output", append(fields,
			logger.Field{Key: "stdout", Value: result.Stdout})...)
	case job.IsStartFailure(result.Err):
		log.ErrorCtx(ctx, "command failed to start", result.Err, fields...)
	default:
		log.ErrorCtx(ctx, "command failed", result.Err, append(fields,
			logger.Field{Key: "exit_code", Value: result.ExitCode},
			logger.Field{Key: "timed_out", Value: result.TimedOut()},
			logger.Field{Key: "stderr", Value: result.Stderr})...)
	}
}

// wait blocks for d on the sequencer clock. It returns false if ctx was
// cancelled first.
func (s *Sequencer) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := s.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
