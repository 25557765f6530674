package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/sequencer/internal/app"
	"github.com/aatumaykin/sequencer/internal/logger"
	"github.com/aatumaykin/sequencer/internal/version"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the scheduler daemon",
		Long: `Run one pass immediately, then re-trigger it on the configured cadence
until SIGINT or SIGTERM. Exit codes: 0 on signal shutdown, 1 on startup
errors, 2 when the schedule cannot produce a next activation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.resolveConfigPath()
			cfg, err := opts.loadConfig(path)
			if err != nil {
				return withExitCode(app.ExitStartupFailure, err)
			}

			log, err := newLogger(cfg)
			if err != nil {
				return withExitCode(app.ExitStartupFailure, err)
			}
			defer log.Close()
			logger.SetDefault(log)

			log.Info("starting sequencer",
				logger.Field{Key: "version", Value: version.Version},
				logger.Field{Key: "git_commit", Value: version.GitCommit},
				logger.Field{Key: "config", Value: path})

			ctx, stop := signal.NotifyContext(contextOf(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := app.New(cfg, log).Run(ctx); err != nil {
				return withExitCode(app.ExitCode(err), err)
			}
			return nil
		},
	}
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
