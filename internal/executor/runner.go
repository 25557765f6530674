// Package executor launches the external commands of the job table.
// Every command is started with a discrete argument vector (never through a
// shell), bounded by a timeout, and its stdout and stderr are captured.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/aatumaykin/sequencer/internal/job"
	"github.com/aatumaykin/sequencer/internal/logger"
)

const (
	DefaultTimeout        = time.Hour
	DefaultMaxOutputBytes = 1 << 20
	DefaultWaitDelay      = 5 * time.Second
)

// Runner executes a single job synchronously and reports its outcome.
// Implementations must not return until the external process has exited.
type Runner interface {
	Run(ctx context.Context, spec job.Spec) job.Result
}

// Config holds process runner settings.
type Config struct {
	DefaultTimeout time.Duration // Applied when the job has no own timeout
	MaxOutputBytes int           // Per-stream capture limit
	WaitDelay      time.Duration // Grace period for pipes after a kill
	Dir            string        // Working directory when the job has none
}

// ProcessRunner runs jobs as child OS processes.
type ProcessRunner struct {
	cfg    Config
	logger *logger.Logger
}

// NewProcessRunner creates a ProcessRunner; zero config values get defaults.
func NewProcessRunner(cfg Config, log *logger.Logger) *ProcessRunner {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = DefaultWaitDelay
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ProcessRunner{cfg: cfg, logger: log}
}

// Run starts the command, waits for it to exit and returns the captured result.
// Start failures and non-zero exits are reported in Result.Err, never panicked
// or returned separately.
func (r *ProcessRunner) Run(ctx context.Context, spec job.Spec) job.Result {
	timeout := spec.Timeout()
	if timeout <= 0 {
		timeout = r.cfg.DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, spec.Command(), spec.Args()...)
	cmd.Dir = spec.Dir()
	if cmd.Dir == "" {
		cmd.Dir = r.cfg.Dir
	}
	if env := spec.Env(); len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	stdout := newCappedBuffer(r.cfg.MaxOutputBytes)
	stderr := newCappedBuffer(r.cfg.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = r.cfg.WaitDelay
	configureProcessGroup(cmd)

	result := job.Result{
		Name:     spec.Name(),
		Status:   job.StatusRunning,
		ExitCode: -1,
		Started:  time.Now(),
	}

	if err := cmd.Start(); err != nil {
		result.Status = job.StatusFailed
		result.Duration = time.Since(result.Started)
		result.Err = &job.StartError{Command: spec.Command(), Err: err}
		return result
	}

	r.logger.DebugCtx(ctx, "process started",
		logger.Field{Key: "job", Value: spec.Name()},
		logger.Field{Key: "pid", Value: cmd.Process.Pid},
		logger.Field{Key: "timeout", Value: timeout.String()})

	err := cmd.Wait()
	result.Duration = time.Since(result.Started)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err == nil || (errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState.Success()) {
		result.Status = job.StatusSucceeded
		result.ExitCode = 0
		return result
	}

	result.Status = job.StatusFailed
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	}
	if ctxErr := runCtx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	result.Err = &job.ExitError{Command: spec.Command(), ExitCode: result.ExitCode, Err: err}
	return result
}

// CheckCommand verifies that a command can be resolved to an executable,
// following the same lookup rules exec.Command uses.
func CheckCommand(command string) (string, error) {
	path, err := exec.LookPath(command)
	if err != nil {
		return "", fmt.Errorf("command %q not found: %w", command, err)
	}
	return path, nil
}
