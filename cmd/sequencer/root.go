package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/sequencer/internal/config"
	"github.com/aatumaykin/sequencer/internal/constants"
	"github.com/aatumaykin/sequencer/internal/logger"
)

type rootOptions struct {
	configPath string
	logLevel   string
	envPath    string
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "sequencer",
		Short: "Run a fixed list of commands in order, on a schedule",
		Long: `sequencer runs an ordered list of external commands one after another,
pausing a fixed delay after each, starting immediately and then re-triggering
the whole pass on a fixed cadence (hourly by default).`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		fmt.Sprintf("path to the config file (default $%s or %s)", constants.ConfigEnvVar, constants.DefaultConfigPath))
	cmd.PersistentFlags().StringVarP(&opts.logLevel, "log-level", "l", "", "override logging.level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.envPath, "env-file", constants.DefaultEnvPath, "optional .env file loaded before the config")

	cmd.AddCommand(
		newRunCmd(opts),
		newOnceCmd(opts),
		newJobsCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// resolveConfigPath returns the flag value, then $SEQUENCER_CONFIG, then the default.
func (o *rootOptions) resolveConfigPath() string {
	if o.configPath != "" {
		return o.configPath
	}
	if env := os.Getenv(constants.ConfigEnvVar); env != "" {
		return env
	}
	return constants.DefaultConfigPath
}

// loadConfig loads .env, the config file and applies flag overrides.
func (o *rootOptions) loadConfig(path string) (*config.Config, error) {
	if err := config.LoadEnvOptional(o.envPath); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", o.envPath, err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}
