package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/sequencer/internal/config"
	"github.com/aatumaykin/sequencer/internal/executor"
	"github.com/aatumaykin/sequencer/internal/ipc"
	"github.com/aatumaykin/sequencer/internal/scheduler"
)

func testConfig(t *testing.T, jobs int) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte("[runner]\ncheck_commands = false\n"), "toml")
	require.NoError(t, err)
	for i := 0; i < jobs; i++ {
		cfg.Jobs = append(cfg.Jobs, config.JobConfig{
			Name:    fmt.Sprintf("job-%d", i+1),
			Command: "cargo",
			Args:    []string{"run", "--", "solana", fmt.Sprint(i)},
		})
	}
	return cfg
}

func TestRun_ImmediatePassThenCleanShutdown(t *testing.T) {
	clock := clockwork.NewFakeClock()
	runner := executor.NewMockRunner(clock)
	a := New(testConfig(t, 3), nil, WithClock(clock), WithRunner(runner))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return runner.CallCount() == 3 }, 3*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"job-1", "job-2", "job-3"}, runner.Names())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.Equal(t, ExitOK, ExitCode(err))
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRun_HourlyRetrigger(t *testing.T) {
	clock := clockwork.NewFakeClock()
	runner := executor.NewMockRunner(clock)
	a := New(testConfig(t, 1), nil, WithClock(clock), WithRunner(runner))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return runner.CallCount() == 1 }, 3*time.Second, 5*time.Millisecond)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Hour)
	require.Eventually(t, func() bool { return runner.CallCount() == 2 }, 3*time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestRun_SchedulerFailureExitCode(t *testing.T) {
	cfg := testConfig(t, 1)
	// February 30th never comes.
	cfg.Runner.Schedule = "0 0 30 2 *"

	runner := executor.NewMockRunner(nil)
	a := New(cfg, nil, WithClock(clockwork.NewFakeClock()), WithRunner(runner))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := a.Run(ctx)
	require.ErrorIs(t, err, scheduler.ErrNoNextActivation)
	assert.Equal(t, ExitSchedulerFailure, ExitCode(err))
	assert.Zero(t, runner.CallCount())
}

func TestRun_InvalidConfigIsStartupFailure(t *testing.T) {
	cfg := testConfig(t, 1)
	cfg.Runner.OverlapPolicy = "parallel"

	err := New(cfg, nil, WithRunner(executor.NewMockRunner(nil))).Run(context.Background())
	require.ErrorIs(t, err, ErrStartup)
	assert.Equal(t, ExitStartupFailure, ExitCode(err))
}

func TestRun_MissingCommandIsStartupFailure(t *testing.T) {
	cfg := testConfig(t, 0)
	cfg.Runner.CheckCommands = nil
	cfg.Jobs = []config.JobConfig{{Name: "ghost", Command: "definitely-not-a-command-7f3a"}}

	runner := executor.NewMockRunner(nil)
	err := New(cfg, nil, WithRunner(runner)).Run(context.Background())
	require.ErrorIs(t, err, ErrStartup)
	assert.Contains(t, err.Error(), "ghost")
	assert.Zero(t, runner.CallCount())
}

func TestRun_LockHeldIsStartupFailure(t *testing.T) {
	cfg := testConfig(t, 1)
	cfg.Lock.Path = filepath.Join(t.TempDir(), "sequencer.lock")

	held, err := ipc.Acquire(cfg.Lock.Path)
	require.NoError(t, err)
	defer held.Release()

	runner := executor.NewMockRunner(nil)
	err = New(cfg, nil, WithRunner(runner)).Run(context.Background())
	require.ErrorIs(t, err, ipc.ErrAlreadyRunning)
	assert.Equal(t, ExitStartupFailure, ExitCode(err))
	assert.Zero(t, runner.CallCount())
}

func TestRun_LockReleasedOnShutdown(t *testing.T) {
	cfg := testConfig(t, 1)
	cfg.Lock.Path = filepath.Join(t.TempDir(), "sequencer.lock")

	clock := clockwork.NewFakeClock()
	runner := executor.NewMockRunner(clock)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(cfg, nil, WithClock(clock), WithRunner(runner)).Run(ctx) }()

	require.Eventually(t, func() bool { return runner.CallCount() == 1 }, 3*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	l, err := ipc.Acquire(cfg.Lock.Path)
	require.NoError(t, err)
	assert.NoError(t, l.Release())
}

func TestRun_MetricsEndpoint(t *testing.T) {
	cfg := testConfig(t, 2)
	cfg.Metrics.Enabled = true
	cfg.Metrics.Listen = "127.0.0.1:0"

	clock := clockwork.NewFakeClock()
	runner := executor.NewMockRunner(clock)
	runner.Fail("job-2", 1, "boom")
	a := New(cfg, nil, WithClock(clock), WithRunner(runner), WithRegistry(prometheus.NewRegistry()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool {
		return a.Scheduler() != nil && a.Scheduler().Stats().PassesFinished == 1
	}, 3*time.Second, 5*time.Millisecond)

	a.mu.Lock()
	addr := a.metricsServer.Addr()
	a.mu.Unlock()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		body = string(data)
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 10*time.Millisecond)

	assert.Contains(t, body, `sequencer_jobs_total{job="job-2",status="failed"} 1`)
	assert.Contains(t, body, `sequencer_triggers_total{result="started"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestRunOnce(t *testing.T) {
	runner := executor.NewMockRunner(nil)
	runner.Fail("job-2", 3, "reverted")
	a := New(testConfig(t, 3), nil, WithRunner(runner))

	report, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Results, 3)
	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, []string{"job-1", "job-2", "job-3"}, runner.Names())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitStartupFailure, ExitCode(errors.New("x")))
	assert.Equal(t, ExitSchedulerFailure, ExitCode(fmt.Errorf("run: %w", scheduler.ErrNoNextActivation)))
}
