// Package job defines the immutable job table and the per-execution result
// produced by running one entry of it.
package job

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Status is the lifecycle state of a single job within one pass.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Done reports whether the status is terminal.
func (s Status) Done() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Spec describes one external command invocation. A Spec is built once at
// startup and never mutated afterwards.
type Spec struct {
	name       string
	command    string
	args       []string
	dir        string
	env        []string
	timeout    time.Duration
	secretArgs map[int]bool
}

// Options carries the optional parts of a Spec.
type Options struct {
	Dir        string            // Working directory, empty means inherit
	Env        map[string]string // Extra environment on top of the daemon's own
	Timeout    time.Duration     // Zero means the runner default applies
	SecretArgs []int             // Argument indices masked in log output
}

// NewSpec creates a Spec. Args are copied, so later changes to the caller's
// slice do not leak into the job.
func NewSpec(name, command string, args []string, opts Options) Spec {
	s := Spec{
		name:    name,
		command: command,
		args:    slices.Clone(args),
		dir:     opts.Dir,
		timeout: opts.Timeout,
	}
	if len(opts.Env) > 0 {
		keys := make([]string, 0, len(opts.Env))
		for k := range opts.Env {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			s.env = append(s.env, k+"="+opts.Env[k])
		}
	}
	if len(opts.SecretArgs) > 0 {
		s.secretArgs = make(map[int]bool, len(opts.SecretArgs))
		for _, i := range opts.SecretArgs {
			s.secretArgs[i] = true
		}
	}
	return s
}

func (s Spec) Name() string           { return s.name }
func (s Spec) Command() string        { return s.command }
func (s Spec) Dir() string            { return s.dir }
func (s Spec) Timeout() time.Duration { return s.timeout }

// Args returns a copy of the argument list.
func (s Spec) Args() []string { return slices.Clone(s.args) }

// Env returns a copy of the extra environment as KEY=VALUE pairs, sorted by key.
func (s Spec) Env() []string { return slices.Clone(s.env) }

// IsSecretArg reports whether argument i must be masked when logged.
func (s Spec) IsSecretArg(i int) bool { return s.secretArgs[i] }

// CommandLine renders the command for log output. Secret arguments are
// replaced with a mask; arguments containing whitespace are quoted. The result
// is never executed.
func (s Spec) CommandLine() string {
	parts := make([]string, 0, len(s.args)+1)
	parts = append(parts, quote(s.command))
	for i, a := range s.args {
		if s.secretArgs[i] {
			parts = append(parts, "***")
			continue
		}
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func (s Spec) String() string {
	return fmt.Sprintf("%s: %s", s.name, s.CommandLine())
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\"'") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

// List is an ordered job table; index order is execution order.
type List []Spec

// Validate checks that every entry has a command.
func (l List) Validate() error {
	var errs []error
	for i, s := range l {
		if strings.TrimSpace(s.command) == "" {
			errs = append(errs, fmt.Errorf("job %d (%s): command is required", i, s.name))
		}
	}
	return errors.Join(errs...)
}
