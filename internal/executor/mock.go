package executor

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/aatumaykin/sequencer/internal/job"
)

// Call records one invocation seen by MockRunner.
type Call struct {
	Name    string
	Command string
	Args    []string
	Start   time.Time
	End     time.Time
}

// MockRunner is an in-memory Runner for tests. Jobs succeed by default;
// individual jobs can be made to fail, fail to start, or block until released.
type MockRunner struct {
	mu          sync.Mutex
	clock       clockwork.Clock
	calls       []Call
	failures    map[string]job.Result
	startErrors map[string]bool
	holds       map[string]chan struct{}
}

// NewMockRunner creates a MockRunner that timestamps calls with clock.
func NewMockRunner(clock clockwork.Clock) *MockRunner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MockRunner{
		clock:       clock,
		failures:    make(map[string]job.Result),
		startErrors: make(map[string]bool),
		holds:       make(map[string]chan struct{}),
	}
}

// Fail makes every run of the named job exit with code and stderr.
func (m *MockRunner) Fail(name string, code int, stderr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[name] = job.Result{ExitCode: code, Stderr: stderr}
}

// FailToStart makes every run of the named job behave like a missing binary.
func (m *MockRunner) FailToStart(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErrors[name] = true
}

// Hold blocks runs of the named job until the returned function is called
// or the run's context is cancelled.
func (m *MockRunner) Hold(name string) (release func()) {
	ch := make(chan struct{})
	m.mu.Lock()
	m.holds[name] = ch
	m.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Run implements Runner.
func (m *MockRunner) Run(ctx context.Context, spec job.Spec) job.Result {
	m.mu.Lock()
	start := m.clock.Now()
	idx := len(m.calls)
	m.calls = append(m.calls, Call{
		Name:    spec.Name(),
		Command: spec.Command(),
		Args:    spec.Args(),
		Start:   start,
	})
	hold := m.holds[spec.Name()]
	failure, failed := m.failures[spec.Name()]
	startErr := m.startErrors[spec.Name()]
	m.mu.Unlock()

	result := job.Result{Name: spec.Name(), Started: start, ExitCode: -1}

	if startErr {
		result.Status = job.StatusFailed
		result.Err = &job.StartError{Command: spec.Command(), Err: exec.ErrNotFound}
		m.finish(idx)
		return result
	}

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			result.Status = job.StatusFailed
			result.Err = &job.ExitError{Command: spec.Command(), ExitCode: -1, Err: ctx.Err()}
			m.finish(idx)
			return result
		}
	}

	end := m.finish(idx)
	result.Duration = end.Sub(start)

	if failed {
		result.Status = job.StatusFailed
		result.ExitCode = failure.ExitCode
		result.Stderr = failure.Stderr
		result.Err = &job.ExitError{Command: spec.Command(), ExitCode: failure.ExitCode, Err: errors.New("exit status")}
		return result
	}

	result.Status = job.StatusSucceeded
	result.ExitCode = 0
	result.Stdout = "ok: " + spec.Name()
	return result
}

func (m *MockRunner) finish(idx int) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := m.clock.Now()
	m.calls[idx].End = end
	return end
}

// Calls returns a copy of all recorded invocations in order.
func (m *MockRunner) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of recorded invocations.
func (m *MockRunner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Names returns the job names of all recorded invocations in order.
func (m *MockRunner) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.calls))
	for i, c := range m.calls {
		names[i] = c.Name
	}
	return names
}
