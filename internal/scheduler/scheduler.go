// Package scheduler re-triggers the job sequence on a fixed cadence.
// It runs one pass immediately at startup, then sleeps until the next
// activation computed by a robfig/cron schedule. A trigger that fires while a
// pass is still in flight is handled by the configured overlap policy.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/aatumaykin/sequencer/internal/logger"
	"github.com/aatumaykin/sequencer/internal/metrics"
	"github.com/aatumaykin/sequencer/internal/sequencer"
)

// ErrNoNextActivation is returned by Run when the schedule has no future
// activation. The process cannot keep its cadence and must not idle silently.
var ErrNoNextActivation = errors.New("schedule has no next activation")

const maxCatchUp = 10000

// OverlapPolicy decides what happens to a trigger while a pass is running.
type OverlapPolicy string

const (
	// PolicySkip drops the trigger.
	PolicySkip OverlapPolicy = "skip"
	// PolicyQueue remembers one pending pass and starts it as soon as the
	// running pass ends. Further triggers coalesce into that pending pass.
	PolicyQueue OverlapPolicy = "queue"
)

// ParsePolicy converts a config value into an OverlapPolicy.
func ParsePolicy(s string) (OverlapPolicy, error) {
	switch OverlapPolicy(s) {
	case "", PolicySkip:
		return PolicySkip, nil
	case PolicyQueue:
		return PolicyQueue, nil
	default:
		return "", fmt.Errorf("unknown overlap policy %q (expected: skip, queue)", s)
	}
}

// Sequence is the unit of work the scheduler triggers.
type Sequence interface {
	RunSequence(ctx context.Context) sequencer.Report
}

// Stats counts what the scheduler has done since Run started.
type Stats struct {
	Triggers       uint64 // All triggers, including the startup one
	PassesStarted  uint64
	PassesFinished uint64
	Skipped        uint64 // Dropped, or coalesced into an already pending pass
	Queued         uint64 // Turned into a pending pass
}

// Scheduler owns the trigger loop. The only shared state is the running and
// pending flags, guarded by mu.
type Scheduler struct {
	seq      Sequence
	schedule cron.Schedule
	policy   OverlapPolicy
	clock    clockwork.Clock
	logger   *logger.Logger
	metrics  *metrics.Metrics

	mu         sync.Mutex
	running    bool
	pending    bool
	stats      Stats
	lastReport *sequencer.Report
	wg         sync.WaitGroup
}

// New creates a Scheduler. A nil clock means the real clock; m may be nil.
func New(seq Sequence, schedule cron.Schedule, policy OverlapPolicy, clock clockwork.Clock, log *logger.Logger, m *metrics.Metrics) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logger.Nop()
	}
	if policy == "" {
		policy = PolicySkip
	}
	return &Scheduler{
		seq:      seq,
		schedule: schedule,
		policy:   policy,
		clock:    clock,
		logger:   log,
		metrics:  m,
	}
}

// Run fires one pass immediately, then triggers passes on schedule until ctx
// is cancelled. On cancellation the in-flight pass is cancelled too and Run
// waits for it before returning nil. A schedule without a first activation
// fails before any pass starts.
func (s *Scheduler) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer s.wg.Wait()
	defer cancel()

	start := s.clock.Now()
	next := s.schedule.Next(start)
	if next.IsZero() {
		s.logger.ErrorCtx(ctx, "scheduler cannot compute first trigger", ErrNoNextActivation)
		return ErrNoNextActivation
	}

	s.logger.InfoCtx(ctx, "scheduler started",
		logger.Field{Key: "overlap_policy", Value: string(s.policy)},
		logger.Field{Key: "next_trigger", Value: next})

	s.trigger(ctx, "startup")

	for {
		if next.IsZero() {
			s.logger.ErrorCtx(ctx, "scheduler cannot compute next trigger", ErrNoNextActivation)
			return ErrNoNextActivation
		}

		if wait := next.Sub(s.clock.Now()); wait > 0 {
			timer := s.clock.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				s.logger.InfoCtx(ctx, "scheduler stopping")
				return nil
			case <-timer.Chan():
			}
		} else if ctx.Err() != nil {
			return nil
		}

		s.trigger(ctx, "schedule")

		due := next
		next = s.nextAfter(due, s.clock.Now())
		s.logger.DebugCtx(ctx, "next trigger computed",
			logger.Field{Key: "due", Value: due},
			logger.Field{Key: "next_trigger", Value: next})
	}
}

// nextAfter walks the schedule forward from the previous due time to the
// first activation after now. Missed activations are coalesced, never replayed.
func (s *Scheduler) nextAfter(due, now time.Time) time.Time {
	next := due
	for i := 0; i < maxCatchUp; i++ {
		next = s.schedule.Next(next)
		if next.IsZero() || next.After(now) {
			return next
		}
	}
	return s.schedule.Next(now)
}

// trigger starts a pass, or applies the overlap policy if one is running.
func (s *Scheduler) trigger(ctx context.Context, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Triggers++

	if s.running {
		if s.policy == PolicyQueue && !s.pending {
			s.pending = true
			s.stats.Queued++
			s.metrics.RecordTrigger(metrics.TriggerQueued)
			s.logger.InfoCtx(ctx, "pass still running, trigger queued",
				logger.Field{Key: "reason", Value: reason})
			return
		}
		s.stats.Skipped++
		s.metrics.RecordTrigger(metrics.TriggerSkipped)
		s.logger.WarnCtx(ctx, "pass still running, trigger skipped",
			logger.Field{Key: "reason", Value: reason},
			logger.Field{Key: "pending", Value: s.pending})
		return
	}

	s.running = true
	s.metrics.RecordTrigger(metrics.TriggerStarted)
	s.metrics.SetPassRunning(true)
	s.wg.Add(1)
	go s.loop(ctx, reason)
}

// loop runs passes back to back while a pending pass is queued.
func (s *Scheduler) loop(ctx context.Context, reason string) {
	defer s.wg.Done()

	for {
		s.runPass(ctx, reason)

		s.mu.Lock()
		if s.pending && ctx.Err() == nil {
			s.pending = false
			s.mu.Unlock()
			reason = "queued"
			continue
		}
		s.pending = false
		s.running = false
		s.metrics.SetPassRunning(false)
		s.mu.Unlock()
		return
	}
}

func (s *Scheduler) runPass(ctx context.Context, reason string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorCtx(ctx, "pass panic recovered", fmt.Errorf("panic: %v", r),
				logger.Field{Key: "reason", Value: reason})
		}
		s.mu.Lock()
		s.stats.PassesFinished++
		s.mu.Unlock()
	}()

	s.mu.Lock()
	s.stats.PassesStarted++
	s.mu.Unlock()

	s.logger.InfoCtx(ctx, "pass triggered", logger.Field{Key: "reason", Value: reason})

	report := s.seq.RunSequence(ctx)

	s.mu.Lock()
	s.lastReport = &report
	s.mu.Unlock()
}

// Stats returns a snapshot of the scheduler counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Running reports whether a pass is in flight.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastReport returns the report of the most recently finished pass.
func (s *Scheduler) LastReport() (sequencer.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastReport == nil {
		return sequencer.Report{}, false
	}
	return *s.lastReport, true
}
