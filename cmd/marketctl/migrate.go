package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace-sync/internal/logger"
	"github.com/feral-file/ff-marketplace-sync/internal/store"
)

// migrateCmd is the parent command for schema migrations
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back record store migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply every pending migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		migrator, err := newMigrator()
		if err != nil {
			return err
		}
		if err := migrator.Up(); err != nil {
			return err
		}
		return printVersion(cmd, migrator)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the last applied migration",
	Long: `Roll back the last applied migration.

Rolling back the initial migration drops every marketplace table, so --yes is required.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireYes("roll back a migration"); err != nil {
			return err
		}
		migrator, err := newMigrator()
		if err != nil {
			return err
		}
		if err := migrator.Down(); err != nil {
			return err
		}
		return printVersion(cmd, migrator)
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current migration version",
	RunE: func(cmd *cobra.Command, args []string) error {
		migrator, err := newMigrator()
		if err != nil {
			return err
		}
		return printVersion(cmd, migrator)
	},
}

func init() {
	migrateDownCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Confirm the rollback (non-interactive)")

	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}

func newMigrator() (*store.Migrator, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger.Debug("Using migrations", zap.String("path", cfg.MigrationsPath))
	return store.NewMigrator(cfg.MigrationsPath, cfg.Database.URL())
}

func printVersion(cmd *cobra.Command, migrator *store.Migrator) error {
	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "version: %d dirty: %t\n", version, dirty)
	return err
}
