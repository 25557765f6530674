package config

import (
	"fmt"
	"strings"

	"github.com/aatumaykin/sequencer/internal/scheduler"
)

// Validate проверяет валидность конфигурации
func (c *Config) Validate() []error {
	var errors []error

	// Проверка runner
	if c.Runner.InterJobDelaySeconds < 0 {
		errors = append(errors, fmt.Errorf("runner.inter_job_delay_seconds must be >= 0 (got %d)", c.Runner.InterJobDelaySeconds))
	}
	if c.Runner.JobTimeoutSeconds < 0 {
		errors = append(errors, fmt.Errorf("runner.job_timeout_seconds must be >= 0 (got %d)", c.Runner.JobTimeoutSeconds))
	}
	if c.Runner.MaxOutputBytes < 0 {
		errors = append(errors, fmt.Errorf("runner.max_output_bytes must be >= 0 (got %d)", c.Runner.MaxOutputBytes))
	}
	if c.Runner.Schedule == "" && c.Runner.TriggerIntervalSeconds < 1 {
		errors = append(errors, fmt.Errorf("runner.trigger_interval_seconds must be >= 1 (got %d)", c.Runner.TriggerIntervalSeconds))
	} else if _, err := scheduler.ParseSchedule(c.Runner.Schedule, c.Runner.TriggerInterval()); err != nil {
		errors = append(errors, fmt.Errorf("runner.schedule: %w", err))
	}
	if _, err := scheduler.ParsePolicy(c.Runner.OverlapPolicy); err != nil {
		errors = append(errors, fmt.Errorf("runner.overlap_policy: %w", err))
	}
	if c.Runner.Dir != "" {
		if err := validatePath(c.Runner.Dir, "runner.dir"); err != nil {
			errors = append(errors, err)
		}
	}

	// Проверка logging config
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errors = append(errors, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errors = append(errors, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
	}
	if c.Logging.Output == "" {
		errors = append(errors, fmt.Errorf("logging.output is required"))
	}

	if c.Metrics.Enabled {
		if c.Metrics.Listen == "" {
			errors = append(errors, fmt.Errorf("metrics.listen is required when metrics are enabled"))
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			errors = append(errors, fmt.Errorf("metrics.path must start with '/' (got %q)", c.Metrics.Path))
		}
	}

	// Проверка jobs
	names := make(map[string]int, len(c.Jobs))
	for i, j := range c.Jobs {
		field := fmt.Sprintf("jobs[%d]", i)
		if j.Command == "" {
			errors = append(errors, fmt.Errorf("%s.command is required", field))
		}
		if j.TimeoutSeconds < 0 {
			errors = append(errors, fmt.Errorf("%s.timeout_seconds must be >= 0 (got %d)", field, j.TimeoutSeconds))
		}
		if j.Dir != "" {
			if err := validatePath(j.Dir, field+".dir"); err != nil {
				errors = append(errors, err)
			}
		}
		for key := range j.Env {
			if key == "" || strings.ContainsAny(key, "= ") {
				errors = append(errors, fmt.Errorf("%s.env has invalid key %q", field, key))
			}
		}
		if prev, ok := names[j.Name]; ok {
			errors = append(errors, fmt.Errorf("%s.name %q duplicates jobs[%d]", field, j.Name, prev))
		} else {
			names[j.Name] = i
		}
	}

	// Проверка незаданных переменных окружения
	for _, msg := range c.unresolved {
		errors = append(errors, fmt.Errorf("%s", msg))
	}

	return errors
}

func validatePath(path, fieldName string) error {
	if path == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}

	if strings.HasPrefix(path, "~") {
		return nil
	}

	if strings.Contains(path, "..") {
		return fmt.Errorf("%s contains potentially dangerous path traversal sequence", fieldName)
	}

	return nil
}
