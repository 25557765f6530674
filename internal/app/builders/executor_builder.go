package builders

import (
	"errors"
	"fmt"

	"github.com/aatumaykin/sequencer/internal/config"
	"github.com/aatumaykin/sequencer/internal/executor"
	"github.com/aatumaykin/sequencer/internal/logger"
)

type ExecutorBuilder struct {
	config *config.Config
	logger *logger.Logger
}

func NewExecutorBuilder(cfg *config.Config, log *logger.Logger) *ExecutorBuilder {
	return &ExecutorBuilder{
		config: cfg,
		logger: log,
	}
}

// CheckCommands resolves every job command on PATH. It reports all missing
// commands at once.
func (b *ExecutorBuilder) CheckCommands() error {
	if !b.config.Runner.ShouldCheckCommands() {
		return nil
	}

	var errs []error
	for _, j := range b.config.Jobs {
		path, err := executor.CheckCommand(j.Command)
		if err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", j.Name, err))
			continue
		}
		b.logger.Debug("command resolved",
			logger.Field{Key: "job", Value: j.Name},
			logger.Field{Key: "path", Value: path})
	}
	return errors.Join(errs...)
}

func (b *ExecutorBuilder) Build() *executor.ProcessRunner {
	return executor.NewProcessRunner(executor.Config{
		DefaultTimeout: b.config.Runner.JobTimeout(),
		MaxOutputBytes: b.config.Runner.MaxOutputBytes,
		Dir:            b.config.Runner.Dir,
	}, b.logger)
}
