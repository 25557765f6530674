package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/sequencer/internal/app"
)

func newOnceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single pass and exit",
		Long:  `Run every job once, in order, with the configured delay between jobs, then exit without waiting after the last one. The exit code is 1 if any job failed.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(opts.resolveConfigPath())
			if err != nil {
				return withExitCode(app.ExitStartupFailure, err)
			}

			log, err := newLogger(cfg)
			if err != nil {
				return withExitCode(app.ExitStartupFailure, err)
			}
			defer log.Close()

			ctx, stop := signal.NotifyContext(contextOf(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			report, err := app.New(cfg, log).RunOnce(ctx)
			if err != nil {
				return withExitCode(app.ExitStartupFailure, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "pass %s: %d succeeded, %d failed\n", report.PassID, report.Succeeded(), report.Failed())
			if report.Failed() > 0 {
				return withExitCode(1, fmt.Errorf("%d of %d jobs failed", report.Failed(), len(report.Results)))
			}
			if report.Cancelled {
				return withExitCode(1, fmt.Errorf("pass cancelled after %d of %d jobs", len(report.Results), len(cfg.Jobs)))
			}
			return nil
		},
	}
}
