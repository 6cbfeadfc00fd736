package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/feral-file/ff-marketplace-sync/internal/config"
	"github.com/feral-file/ff-marketplace-sync/internal/logger"
	"github.com/feral-file/ff-marketplace-sync/internal/store"
)

var (
	configFile string
	envPath    string
	yesConfirm bool
)

// rootCmd is the base command of the operator CLI
var rootCmd = &cobra.Command{
	Use:   "marketctl",
	Short: "Marketplace reconciliation operator tool",
	Long: `marketctl manages the record store used by the marketplace API and reconciler.

It applies schema migrations, inspects or rewinds the per-contract block cursors,
and lists ledger purchases that matched no pending transaction.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", "config/", "Path to environment files")
}

// loadConfig loads the CLI configuration and initializes a console logger
func loadConfig() (*config.CtlConfig, error) {
	config.ChdirRepoRoot()
	cfg, err := config.LoadCtlConfig(configFile, envPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Initialize(logger.Config{
		Debug:     cfg.Debug,
		Service:   "marketctl",
		SentryDSN: cfg.SentryDSN,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, nil
}

// openDatabase connects to the record store with a small connection pool
func openDatabase(cfg *config.CtlConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := store.ConfigureConnectionPool(db,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
		cfg.Database.ConnMaxIdleTime); err != nil {
		return nil, err
	}
	return db, nil
}

func closeDatabase(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// requireYes refuses destructive actions unless --yes was passed
func requireYes(action string) error {
	if !yesConfirm {
		return fmt.Errorf("refusing to %s without --yes", action)
	}
	return nil
}

// contractAddresses returns the --contract value or every configured contract
func contractAddresses(cfg *config.CtlConfig, contract string) []string {
	if contract != "" {
		return []string{strings.ToLower(contract)}
	}
	addresses := make([]string, 0, len(cfg.Ethereum.Contracts))
	for _, c := range cfg.Ethereum.Contracts {
		addresses = append(addresses, c.Address)
	}
	return addresses
}
