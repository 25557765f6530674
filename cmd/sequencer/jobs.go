package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/sequencer/internal/app"
)

func newJobsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect the job table",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the configured jobs in execution order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(opts.resolveConfigPath())
			if err != nil {
				return withExitCode(app.ExitStartupFailure, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "inter-job delay: %s, trigger: %s, overlap: %s\n\n",
				cfg.Runner.InterJobDelay(), describeTrigger(cfg.Runner.Schedule, cfg.Runner.TriggerInterval()), cfg.Runner.OverlapPolicy)

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tNAME\tTIMEOUT\tCOMMAND")
			jobs := cfg.JobList()
			for i, spec := range jobs {
				timeout := "default"
				if spec.Timeout() > 0 {
					timeout = spec.Timeout().String()
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, spec.Name(), timeout, spec.CommandLine())
				if env := cfg.Jobs[i].DisplayEnv(); len(env) > 0 {
					fmt.Fprintf(w, "\t\t\tenv: %s\n", strings.Join(env, " "))
				}
			}
			return w.Flush()
		},
	})
	return cmd
}
