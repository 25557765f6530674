package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aatumaykin/sequencer/internal/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helperSpec builds a job that re-executes the test binary as a fake
// external command (see TestHelperProcess).
func helperSpec(name string, mode string, args []string, opts job.Options) job.Spec {
	if opts.Env == nil {
		opts.Env = map[string]string{}
	}
	opts.Env["GO_WANT_HELPER_PROCESS"] = "1"
	argv := append([]string{"-test.run=^TestHelperProcess$", "--", mode}, args...)
	return job.NewSpec(name, os.Args[0], argv, opts)
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 {
		if args[0] == "--" {
			args = args[1:]
			break
		}
		args = args[1:]
	}
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "no mode")
		os.Exit(2)
	}

	mode, rest := args[0], args[1:]
	switch mode {
	case "echo":
		_ = json.NewEncoder(os.Stdout).Encode(rest)
		os.Exit(0)
	case "fail":
		fmt.Fprintf(os.Stderr, "boom: %s", strings.Join(rest, " "))
		os.Exit(3)
	case "sleep":
		time.Sleep(30 * time.Second)
		os.Exit(0)
	case "flood":
		_, _ = os.Stdout.Write(bytes.Repeat([]byte("x"), 1000))
		os.Exit(0)
	case "env":
		fmt.Print(os.Getenv("SEQUENCER_TEST_VALUE"))
		os.Exit(0)
	case "pwd":
		wd, _ := os.Getwd()
		fmt.Print(wd)
		os.Exit(0)
	}
	os.Exit(2)
}

func TestProcessRunner_PassesDiscreteArgs(t *testing.T) {
	runner := NewProcessRunner(Config{}, nil)

	args := []string{"ethereum", "hello world", "$(echo pwned)", "a;b", "'quoted'", ""}
	result := runner.Run(context.Background(), helperSpec("argv", "echo", args, job.Options{}))

	require.NoError(t, result.Err)
	assert.Equal(t, job.StatusSucceeded, result.Status)
	assert.Equal(t, 0, result.ExitCode)

	var got []string
	require.NoError(t, json.Unmarshal([]byte(result.Stdout), &got))
	assert.Equal(t, args, got, "arguments must reach the process unchanged, without shell interpretation")
}

func TestProcessRunner_NoArgumentLeakBetweenJobs(t *testing.T) {
	runner := NewProcessRunner(Config{}, nil)

	first := runner.Run(context.Background(), helperSpec("first", "echo", []string{"a", "b"}, job.Options{}))
	second := runner.Run(context.Background(), helperSpec("second", "echo", []string{"c"}, job.Options{}))

	var gotFirst, gotSecond []string
	require.NoError(t, json.Unmarshal([]byte(first.Stdout), &gotFirst))
	require.NoError(t, json.Unmarshal([]byte(second.Stdout), &gotSecond))
	assert.Equal(t, []string{"a", "b"}, gotFirst)
	assert.Equal(t, []string{"c"}, gotSecond)
}

func TestProcessRunner_NonZeroExit(t *testing.T) {
	runner := NewProcessRunner(Config{}, nil)

	result := runner.Run(context.Background(), helperSpec("fails", "fail", []string{"bad", "input"}, job.Options{}))

	assert.Equal(t, job.StatusFailed, result.Status)
	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, "boom: bad input", result.Stderr)
	require.Error(t, result.Err)
	assert.False(t, job.IsStartFailure(result.Err))
	assert.False(t, result.TimedOut())

	var exitErr *job.ExitError
	require.ErrorAs(t, result.Err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode)
}

func TestProcessRunner_StartFailure(t *testing.T) {
	runner := NewProcessRunner(Config{}, nil)
	missing := filepath.Join(t.TempDir(), "does-not-exist")

	result := runner.Run(context.Background(), job.NewSpec("missing", missing, []string{"x"}, job.Options{}))

	assert.Equal(t, job.StatusFailed, result.Status)
	assert.Equal(t, -1, result.ExitCode)
	assert.True(t, job.IsStartFailure(result.Err))
}

func TestProcessRunner_Timeout(t *testing.T) {
	runner := NewProcessRunner(Config{WaitDelay: 500 * time.Millisecond}, nil)

	start := time.Now()
	result := runner.Run(context.Background(), helperSpec("hangs", "sleep", nil, job.Options{Timeout: 200 * time.Millisecond}))

	assert.Equal(t, job.StatusFailed, result.Status)
	assert.True(t, result.TimedOut(), "error should wrap context.DeadlineExceeded, got %v", result.Err)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestProcessRunner_DefaultTimeoutApplies(t *testing.T) {
	runner := NewProcessRunner(Config{DefaultTimeout: 200 * time.Millisecond, WaitDelay: 500 * time.Millisecond}, nil)

	result := runner.Run(context.Background(), helperSpec("hangs", "sleep", nil, job.Options{}))

	assert.True(t, result.TimedOut())
}

func TestProcessRunner_ParentCancellation(t *testing.T) {
	runner := NewProcessRunner(Config{WaitDelay: 500 * time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()
	result := runner.Run(ctx, helperSpec("hangs", "sleep", nil, job.Options{}))

	assert.Equal(t, job.StatusFailed, result.Status)
	assert.ErrorIs(t, result.Err, context.Canceled)
}

func TestProcessRunner_TruncatesOutput(t *testing.T) {
	runner := NewProcessRunner(Config{MaxOutputBytes: 100}, nil)

	result := runner.Run(context.Background(), helperSpec("flood", "flood", nil, job.Options{}))

	require.NoError(t, result.Err)
	assert.True(t, strings.HasPrefix(result.Stdout, strings.Repeat("x", 100)))
	assert.Contains(t, result.Stdout, "[truncated 900 bytes]")
}

func TestProcessRunner_EnvAndDir(t *testing.T) {
	runner := NewProcessRunner(Config{}, nil)
	dir := t.TempDir()

	envResult := runner.Run(context.Background(), helperSpec("env", "env", nil, job.Options{
		Env: map[string]string{"SEQUENCER_TEST_VALUE": "from-job"},
	}))
	require.NoError(t, envResult.Err)
	assert.Equal(t, "from-job", envResult.Stdout)

	dirResult := runner.Run(context.Background(), helperSpec("pwd", "pwd", nil, job.Options{Dir: dir}))
	require.NoError(t, dirResult.Err)
	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(dirResult.Stdout)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCheckCommand(t *testing.T) {
	path, err := CheckCommand(os.Args[0])
	require.NoError(t, err)
	assert.NotEmpty(t, path)

	_, err = CheckCommand(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestCappedBuffer(t *testing.T) {
	b := newCappedBuffer(5)

	n, err := b.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = b.Write([]byte("defgh"))
	require.NoError(t, err)
	assert.Equal(t, 5, n, "writes report full length even when truncated")

	assert.Equal(t, "abcde\n... [truncated 3 bytes]", b.String())
}
