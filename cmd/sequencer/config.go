package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/sequencer/internal/app"
	"github.com/aatumaykin/sequencer/internal/logger"
	"github.com/aatumaykin/sequencer/internal/scheduler"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [config-file]",
		Short: "Validate configuration file",
		Long:  `Validate the configuration file and print the next trigger times.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.NewWithWriter(logger.Config{Level: "info", Format: "text"}, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			path := opts.resolveConfigPath()
			if len(args) > 0 {
				path = args[0]
			}
			log.Info("validating configuration", logger.Field{Key: "path", Value: path})

			cfg, err := opts.loadConfig(path)
			if err != nil {
				log.Error("failed to load config", err)
				return withExitCode(app.ExitStartupFailure, err)
			}

			if errs := cfg.Validate(); len(errs) > 0 {
				for _, e := range errs {
					log.Error("validation error", e)
				}
				return withExitCode(app.ExitStartupFailure, fmt.Errorf("config validation failed: %w", errors.Join(errs...)))
			}
			if err := cfg.JobList().Validate(); err != nil {
				return withExitCode(app.ExitStartupFailure, err)
			}

			schedule, err := scheduler.ParseSchedule(cfg.Runner.Schedule, cfg.Runner.TriggerInterval())
			if err != nil {
				return withExitCode(app.ExitStartupFailure, err)
			}
			next := schedule.Next(time.Now())
			log.Info("configuration is valid",
				logger.Field{Key: "jobs", Value: len(cfg.Jobs)},
				logger.Field{Key: "trigger", Value: describeTrigger(cfg.Runner.Schedule, cfg.Runner.TriggerInterval())},
				logger.Field{Key: "next_trigger_after_startup", Value: next.Format(time.RFC3339)})
			return nil
		},
	})
	return cmd
}

func describeTrigger(schedule string, interval time.Duration) string {
	if schedule != "" {
		return fmt.Sprintf("cron %q", schedule)
	}
	return "every " + interval.String()
}
