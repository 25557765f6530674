// Package config provides configuration loading and validation for the job
// sequencer. It supports TOML and YAML files (chosen by extension) with
// environment variable expansion, default values and validation.
//
// Configuration structure:
//   - [runner]: delays, trigger cadence, overlap policy, timeouts
//   - [logging]: logging level, format and output
//   - [metrics]: optional Prometheus exposition
//   - [lock]: single-instance lock file
//   - [[jobs]]: the ordered list of commands to run
//
// Environment variables:
// A value of the form ${VAR} or ${VAR:default} is replaced by the variable.
// For example: args = ["run", "--", "solana", "${WALLET_KEY}"]
package config

import "time"

// Config represents the main application configuration.
type Config struct {
	Runner  RunnerConfig  `toml:"runner" yaml:"runner"`
	Logging LoggingConfig `toml:"logging" yaml:"logging"`
	Metrics MetricsConfig `toml:"metrics" yaml:"metrics"`
	Lock    LockConfig    `toml:"lock" yaml:"lock"`
	Jobs    []JobConfig   `toml:"jobs" yaml:"jobs"`

	unresolved []string
}

// RunnerConfig представляет конфигурацию прохода и триггера
type RunnerConfig struct {
	InterJobDelaySeconds   int    `toml:"inter_job_delay_seconds" yaml:"inter_job_delay_seconds"`
	TriggerIntervalSeconds int    `toml:"trigger_interval_seconds" yaml:"trigger_interval_seconds"`
	Schedule               string `toml:"schedule" yaml:"schedule"`
	OverlapPolicy          string `toml:"overlap_policy" yaml:"overlap_policy"`
	JobTimeoutSeconds      int    `toml:"job_timeout_seconds" yaml:"job_timeout_seconds"`
	MaxOutputBytes         int    `toml:"max_output_bytes" yaml:"max_output_bytes"`
	CheckCommands          *bool  `toml:"check_commands" yaml:"check_commands"`
	Dir                    string `toml:"dir" yaml:"dir"`
}

// InterJobDelay returns the pause after each job.
func (r RunnerConfig) InterJobDelay() time.Duration {
	return time.Duration(r.InterJobDelaySeconds) * time.Second
}

// TriggerInterval returns the cadence used when no cron schedule is set.
func (r RunnerConfig) TriggerInterval() time.Duration {
	return time.Duration(r.TriggerIntervalSeconds) * time.Second
}

// JobTimeout returns the default per-job timeout.
func (r RunnerConfig) JobTimeout() time.Duration {
	return time.Duration(r.JobTimeoutSeconds) * time.Second
}

// ShouldCheckCommands reports whether commands are resolved at startup.
func (r RunnerConfig) ShouldCheckCommands() bool {
	return r.CheckCommands == nil || *r.CheckCommands
}

// LoggingConfig представляет конфигурацию логирования
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
	Output string `toml:"output" yaml:"output"`
}

// MetricsConfig представляет конфигурацию Prometheus
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Listen  string `toml:"listen" yaml:"listen"`
	Path    string `toml:"path" yaml:"path"`
}

// LockConfig представляет конфигурацию lock-файла
type LockConfig struct {
	Path string `toml:"path" yaml:"path"`
}

// JobConfig describes one command of the pass.
type JobConfig struct {
	Name           string            `toml:"name" yaml:"name"`
	Command        string            `toml:"command" yaml:"command"`
	Args           []string          `toml:"args" yaml:"args"`
	TimeoutSeconds int               `toml:"timeout_seconds" yaml:"timeout_seconds"`
	Dir            string            `toml:"dir" yaml:"dir"`
	Env            map[string]string `toml:"env" yaml:"env"`

	secretArgs []int
	secretEnv  map[string]bool
}
