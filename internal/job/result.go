package job

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Result is the transient outcome of one job execution. It is logged and
// counted, never persisted.
type Result struct {
	Index    int           // Position of the job in the list
	Name     string        // Job name
	Status   Status        // StatusSucceeded or StatusFailed
	ExitCode int           // Process exit code, -1 if it never ran or was killed
	Stdout   string        // Captured standard output
	Stderr   string        // Captured standard error
	Started  time.Time     // When the process was launched
	Duration time.Duration // Wall time until the process exited
	Err      error         // nil on success, *StartError or *ExitError otherwise
}

// Succeeded reports whether the job exited with status zero.
func (r Result) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// TimedOut reports whether the job was killed by its timeout.
func (r Result) TimedOut() bool {
	return errors.Is(r.Err, context.DeadlineExceeded)
}

// StartError means the external command could not be launched at all
// (binary missing, permission denied, bad working directory).
type StartError struct {
	Command string
	Err     error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Command, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// ExitError means the command ran but did not exit cleanly: a non-zero exit
// status, a kill by timeout, or a kill by shutdown.
type ExitError struct {
	Command  string
	ExitCode int
	Err      error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %v", e.Command, e.ExitCode, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }

// IsStartFailure reports whether err is a StartError.
func IsStartFailure(err error) bool {
	var se *StartError
	return errors.As(err, &se)
}
