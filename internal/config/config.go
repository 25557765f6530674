package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/aatumaykin/sequencer/internal/job"
	"github.com/aatumaykin/sequencer/internal/scheduler"
)

const (
	defaultJobTimeoutSeconds = 3600
	defaultMaxOutputBytes    = 1 << 20
	defaultOverlapPolicy     = "skip"
	defaultMetricsListen     = "127.0.0.1:9464"
	defaultMetricsPath       = "/metrics"
)

// Load загружает конфигурацию из TOML или YAML файла
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data, formatFromPath(path))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse декодирует конфигурацию в формате "toml" или "yaml", применяет
// значения по умолчанию и расширяет переменные окружения.
func Parse(data []byte, format string) (*Config, error) {
	var cfg Config
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case "toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q (expected: toml, yaml)", format)
	}

	applyDefaults(&cfg)

	if err := expandEnvVars(&cfg); err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	return &cfg, nil
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "toml"
	}
}

// applyDefaults применяет значения по умолчанию
func applyDefaults(c *Config) {
	if c.Runner.TriggerIntervalSeconds == 0 {
		c.Runner.TriggerIntervalSeconds = int(scheduler.DefaultInterval / time.Second)
	}
	if c.Runner.JobTimeoutSeconds == 0 {
		c.Runner.JobTimeoutSeconds = defaultJobTimeoutSeconds
	}
	if c.Runner.MaxOutputBytes == 0 {
		c.Runner.MaxOutputBytes = defaultMaxOutputBytes
	}
	if c.Runner.OverlapPolicy == "" {
		c.Runner.OverlapPolicy = defaultOverlapPolicy
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Metrics.Listen == "" {
		c.Metrics.Listen = defaultMetricsListen
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = defaultMetricsPath
	}

	for i := range c.Jobs {
		if c.Jobs[i].Name == "" {
			c.Jobs[i].Name = fmt.Sprintf("job-%d", i+1)
		}
	}
}

// expandEnvVars расширяет переменные окружения в конфигурации
func expandEnvVars(c *Config) error {
	c.unresolved = nil

	c.Runner.Dir = expandHome(c.expandField("runner.dir", c.Runner.Dir))
	c.Lock.Path = expandHome(c.expandField("lock.path", c.Lock.Path))

	if c.Logging.Output != "stdout" && c.Logging.Output != "stderr" {
		c.Logging.Output = expandHome(c.expandField("logging.output", c.Logging.Output))
	}

	for i := range c.Jobs {
		j := &c.Jobs[i]
		field := fmt.Sprintf("jobs[%d]", i)

		j.Command = c.expandField(field+".command", j.Command)
		if j.Command == "" {
			// Validate reports it.
			continue
		}
		j.Command = expandHome(j.Command)
		j.Dir = expandHome(c.expandField(field+".dir", j.Dir))

		j.secretArgs = nil
		for k, arg := range j.Args {
			if isEnvRef(arg) {
				j.Args[k] = c.expandField(fmt.Sprintf("%s.args[%d]", field, k), arg)
				j.secretArgs = append(j.secretArgs, k)
			}
		}

		j.secretEnv = nil
		keys := make([]string, 0, len(j.Env))
		for key := range j.Env {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			val := j.Env[key]
			if isEnvRef(val) {
				j.Env[key] = c.expandField(field+".env."+key, val)
				if j.secretEnv == nil {
					j.secretEnv = make(map[string]bool)
				}
				j.secretEnv[key] = true
			}
		}
	}

	return nil
}

// expandField расширяет значение поля и запоминает ссылки на незаданные
// переменные без значения по умолчанию.
func (c *Config) expandField(field, value string) string {
	if !isEnvRef(value) {
		return value
	}
	if name, ok := unsetRef(value); ok {
		c.unresolved = append(c.unresolved, fmt.Sprintf("%s references unset variable %s with no default", field, name))
	}
	return expandEnv(value)
}

// unsetRef возвращает имя переменной, если ссылка ${VAR} без значения по
// умолчанию указывает на пустую или незаданную переменную.
func unsetRef(s string) (string, bool) {
	end := strings.Index(s, "}")
	content := s[2:end]
	if strings.Contains(content, ":") {
		return "", false
	}
	return content, os.Getenv(content) == ""
}

func isEnvRef(s string) bool {
	return strings.HasPrefix(s, "${") && strings.Contains(s, "}")
}

// expandEnv расширяет переменную окружения формата ${VAR:default}
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	content := s[2:end]
	if parts := strings.SplitN(content, ":", 2); len(parts) == 2 {
		key := parts[0]
		defaultVal := parts[1]
		if val := os.Getenv(key); val != "" {
			return val + s[end+1:]
		}
		return defaultVal + s[end+1:]
	}

	// Без значения по умолчанию
	return os.Getenv(content) + s[end+1:]
}

// expandHome расширяет ~ в пути
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// JobList строит неизменяемый список заданий. Вызывается после Validate.
func (c *Config) JobList() job.List {
	list := make(job.List, len(c.Jobs))
	for i, j := range c.Jobs {
		dir := j.Dir
		if dir == "" {
			dir = c.Runner.Dir
		}
		list[i] = job.NewSpec(j.Name, j.Command, j.Args, job.Options{
			Dir:        dir,
			Env:        j.Env,
			Timeout:    time.Duration(j.TimeoutSeconds) * time.Second,
			SecretArgs: j.secretArgs,
		})
	}
	return list
}
