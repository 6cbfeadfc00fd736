package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/feral-file/ff-marketplace-sync/internal/adapter"
	"github.com/feral-file/ff-marketplace-sync/internal/config"
	"github.com/feral-file/ff-marketplace-sync/internal/lifecycle"
	"github.com/feral-file/ff-marketplace-sync/internal/logger"
	"github.com/feral-file/ff-marketplace-sync/internal/messaging"
	"github.com/feral-file/ff-marketplace-sync/internal/providers/ethereum"
	"github.com/feral-file/ff-marketplace-sync/internal/providers/jetstream"
	"github.com/feral-file/ff-marketplace-sync/internal/reconciler"
	"github.com/feral-file/ff-marketplace-sync/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadReconcilerConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		Service:         "marketplace-reconciler",
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "marketplace-reconciler",
			"chain":   string(cfg.Ethereum.ChainID),
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Marketplace Reconciler", zap.Int("contracts", len(cfg.Ethereum.Contracts)))

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("host", cfg.Database.Host))
	}
	if err := store.ConfigureConnectionPool(db,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
		cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database")

	// Initialize stores
	dataStore := store.NewPGStore(db)
	cursorStore := store.NewCursorStore(db)

	// Initialize adapters
	clockAdapter := adapter.NewClock()
	jsonAdapter := adapter.NewJSON()
	fsAdapter := adapter.NewFileSystem()
	ethDialer := adapter.NewEthClientDialer()

	// Initialize lifecycle notifications, disabled without a NATS URL
	publisher := messaging.NewNopPublisher()
	if cfg.NATS.URL != "" {
		publisher, err = jetstream.NewPublisher(
			ctx,
			jetstream.Config{
				URL:            cfg.NATS.URL,
				StreamName:     cfg.NATS.StreamName,
				MaxReconnects:  cfg.NATS.MaxReconnects,
				ReconnectWait:  cfg.NATS.ReconnectWait,
				ConnectionName: cfg.NATS.ConnectionName,
			}, adapter.NewNatsJetStream(), jsonAdapter)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to create NATS publisher", zap.Error(err), zap.String("url", cfg.NATS.URL))
		}
		logger.InfoCtx(ctx, "Connected to NATS JetStream")
	}
	defer publisher.Close()

	manager := lifecycle.NewManager(
		lifecycle.Config{RelistOnComplete: cfg.Reconciler.RelistOnComplete},
		dataStore,
		publisher,
		clockAdapter,
	)

	// One reconciler per contract, each with its own node connection
	reconcilers := make([]reconciler.Reconciler, 0, len(cfg.Ethereum.Contracts))
	for _, contract := range cfg.Ethereum.Contracts {
		source, err := ethereum.NewSource(ethereum.Config{
			ChainID:         cfg.Ethereum.ChainID,
			ContractAddress: contract.Address,
			ABIPath:         contract.ABIPath,
			EventName:       contract.EventName,
			MaxBlockRange:   cfg.Reconciler.MaxBlockRange,
			Confirmations:   cfg.Reconciler.Confirmations,
		}, ethereum.NewClient(cfg.Ethereum.RPCURL, ethDialer, ethereum.WithRateLimit(cfg.Ethereum.RPCRequestsPerSecond)), fsAdapter)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to create ledger source", zap.Error(err), zap.String("contract", contract.Address))
		}

		reconcilers = append(reconcilers, reconciler.NewReconciler(
			reconciler.Config{
				StartBlock:             contract.StartBlock,
				PollInterval:           cfg.Reconciler.PollInterval,
				BackoffInitialInterval: cfg.Reconciler.BackoffInitialInterval,
				BackoffMaxInterval:     cfg.Reconciler.BackoffMaxInterval,
				OrphanSweepInterval:    cfg.Reconciler.OrphanSweepInterval,
				OrphanSweepBatch:       cfg.Reconciler.OrphanSweepBatch,
				OrphanMaxAttempts:      cfg.Reconciler.OrphanMaxAttempts,
			},
			source,
			manager,
			dataStore,
			cursorStore,
			clockAdapter,
			jsonAdapter,
		))
	}

	service := reconciler.NewService(reconcilers...)
	defer service.Close()

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel for service completion
	doneCh := make(chan error, 1)

	// Start the reconcilers
	go func() {
		doneCh <- service.Run(ctx)
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
		// In-flight events finish before the service returns
		if err := <-doneCh; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(err, zap.String("component", "reconciler"))
		}
	case err := <-doneCh:
		if err != nil {
			logger.ErrorCtx(ctx, err, zap.String("component", "reconciler"))
		}
		cancel()
	}

	// Use non-context logger for final shutdown message since context is already canceled
	logger.Info("Marketplace Reconciler stopped")
}
