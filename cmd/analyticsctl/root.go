package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	infraconfig "github.com/trailverse/analytics/infrastructure/config"
	"github.com/trailverse/analytics/infrastructure/logger"
	"github.com/trailverse/analytics/internal/config"
)

var (
	// cfgFile overrides CONFIG_PATH.
	cfgFile string

	// Debug enables debug logging for all commands.
	Debug bool
)

// newRootCommand builds the command tree.
func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "analyticsctl",
		Short:         "Operate the parks analytics service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $CONFIG_PATH or ./config.yml)")
	root.PersistentFlags().BoolVar(&Debug, "debug", false, "enable debug logging")

	root.AddCommand(newMigrateCommand())
	root.AddCommand(newTokenCommand())
	root.AddCommand(newReportCommand())

	return root
}

// Execute runs the root command.
func Execute() error {
	return newRootCommand().ExecuteContext(context.Background())
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = infraconfig.GetConfigPath("config.yml")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (logger.Logger, error) {
	logCfg := cfg.Logging
	logCfg.Level = "warn"
	if Debug {
		logCfg.Level = "debug"
		logCfg.Development = true
	}
	logCfg.OutputPaths = []string{"stderr"}

	log, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(logger.String("component", "analyticsctl")), nil
}

// requirePostgres rejects configurations that keep events in memory.
func requirePostgres(cfg *config.Config, command string) error {
	if !cfg.UsesPostgres() {
		return fmt.Errorf("%s requires storage.driver %q, got %q", command, config.DriverPostgres, cfg.Storage.Driver)
	}
	return nil
}
