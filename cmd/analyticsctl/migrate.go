package main

import (
	"github.com/spf13/cobra"

	"github.com/trailverse/analytics/internal/storage"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the analytics database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err = requirePostgres(cfg, "migrate"); err != nil {
				return err
			}

			applied, err := storage.MigrateUp(cfg.Database)
			if err != nil {
				return err
			}
			if !applied {
				cmd.Println("No pending migrations")
				return nil
			}
			return printVersion(cmd, cfg.Database)
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err = requirePostgres(cfg, "migrate"); err != nil {
				return err
			}

			if err = storage.MigrateDown(cfg.Database, steps); err != nil {
				return err
			}
			return printVersion(cmd, cfg.Database)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err = requirePostgres(cfg, "migrate"); err != nil {
				return err
			}
			return printVersion(cmd, cfg.Database)
		},
	})

	return cmd
}

func printVersion(cmd *cobra.Command, cfg storage.Config) error {
	version, dirty, err := storage.MigrationVersion(cfg)
	if err != nil {
		return err
	}
	if dirty {
		cmd.Printf("Schema version %d (dirty)\n", version)
		return nil
	}
	cmd.Printf("Schema version %d\n", version)
	return nil
}
