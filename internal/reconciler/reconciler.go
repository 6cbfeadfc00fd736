package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/feral-file/ff-marketplace-sync/internal/adapter"
	"github.com/feral-file/ff-marketplace-sync/internal/domain"
	"github.com/feral-file/ff-marketplace-sync/internal/lifecycle"
	"github.com/feral-file/ff-marketplace-sync/internal/logger"
	"github.com/feral-file/ff-marketplace-sync/internal/messaging"
	"github.com/feral-file/ff-marketplace-sync/internal/store"
)

const (
	DEFAULT_POLL_INTERVAL            = 5 * time.Second
	DEFAULT_BACKOFF_INITIAL_INTERVAL = time.Second
	DEFAULT_BACKOFF_MAX_INTERVAL     = time.Minute
	DEFAULT_ORPHAN_SWEEP_INTERVAL    = time.Minute
	DEFAULT_ORPHAN_SWEEP_BATCH       = 100
	DEFAULT_ORPHAN_MAX_ATTEMPTS      = 10
)

// Config holds the configuration for one contract's reconciler
type Config struct {
	// StartBlock is the first block read when no cursor exists, and a floor otherwise
	StartBlock   uint64
	PollInterval time.Duration

	BackoffInitialInterval time.Duration
	BackoffMaxInterval     time.Duration

	// OrphanSweepInterval is how often unresolved orphans are retried, zero disables the sweep
	OrphanSweepInterval time.Duration
	OrphanSweepBatch    int
	OrphanMaxAttempts   int
}

// Outcome is the result of applying one ledger event
type Outcome string

const (
	OutcomeConfirmed        Outcome = "confirmed"
	OutcomeAlreadyCompleted Outcome = "already_completed"
	OutcomeOrphaned         Outcome = "orphaned"
)

// CycleResult summarizes one reconciliation cycle
type CycleResult struct {
	FromBlock        uint64
	ToBlock          uint64
	SafeHead         uint64
	Scanned          bool
	Confirmed        int
	AlreadyCompleted int
	Orphaned         int
}

// CaughtUp reports whether the cycle reached the safe head
func (r *CycleResult) CaughtUp() bool {
	return !r.Scanned || r.ToBlock >= r.SafeHead
}

// Reconciler applies the purchase events of one contract to the record store, in ledger order
//
//go:generate mockgen -source=reconciler.go -destination=../mocks/reconciler.go -package=mocks -mock_names=Reconciler=MockReconciler
type Reconciler interface {
	// Run reconciles until ctx is canceled. The in-flight cycle always finishes its writes.
	Run(ctx context.Context) error
	// RunCycle reads one batch from the cursor, applies it and advances the cursor
	RunCycle(ctx context.Context) (*CycleResult, error)
	// SweepOrphans retries unresolved orphan events and returns how many were resolved
	SweepOrphans(ctx context.Context) (int, error)
	// Name identifies the reconciler in logs
	Name() string
	// Close closes the ledger source
	Close()
}

type reconciler struct {
	config  Config
	source  messaging.LedgerSource
	manager lifecycle.Manager
	store   store.Store
	cursors store.CursorStore
	clock   adapter.Clock
	json    adapter.JSON
}

// NewReconciler creates a reconciler for the contract read by source
func NewReconciler(
	cfg Config,
	source messaging.LedgerSource,
	manager lifecycle.Manager,
	st store.Store,
	cursors store.CursorStore,
	clock adapter.Clock,
	json adapter.JSON,
) Reconciler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DEFAULT_POLL_INTERVAL
	}
	if cfg.BackoffInitialInterval <= 0 {
		cfg.BackoffInitialInterval = DEFAULT_BACKOFF_INITIAL_INTERVAL
	}
	if cfg.BackoffMaxInterval <= 0 {
		cfg.BackoffMaxInterval = DEFAULT_BACKOFF_MAX_INTERVAL
	}
	if cfg.OrphanSweepBatch <= 0 {
		cfg.OrphanSweepBatch = DEFAULT_ORPHAN_SWEEP_BATCH
	}
	if cfg.OrphanMaxAttempts <= 0 {
		cfg.OrphanMaxAttempts = DEFAULT_ORPHAN_MAX_ATTEMPTS
	}

	return &reconciler{
		config:  cfg,
		source:  source,
		manager: manager,
		store:   st,
		cursors: cursors,
		clock:   clock,
		json:    json,
	}
}

// Name returns the chain and contract of the reconciler
func (r *reconciler) Name() string {
	return fmt.Sprintf("%s:%s", r.source.Chain(), r.source.ContractAddress())
}

// Run reconciles until ctx is canceled
func (r *reconciler) Run(ctx context.Context) error {
	fields := []zap.Field{
		zap.String("chain", string(r.source.Chain())),
		zap.String("contract", r.source.ContractAddress()),
	}
	logger.InfoCtx(ctx, "Starting reconciler", append(fields, zap.Duration("poll_interval", r.config.PollInterval))...)

	lastSweep := r.clock.Now()
	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Reconciler stopped", fields...)
			return nil
		default:
		}

		result, err := r.RunCycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.InfoCtx(ctx, "Reconciler stopped", fields...)
				return nil
			}
			logger.ErrorCtx(ctx, err, append(fields, zap.String("message", "Reconciliation cycle failed"))...)
		} else if result.Scanned {
			logger.InfoCtx(ctx, "Reconciliation cycle completed",
				append(fields,
					zap.Uint64("from_block", result.FromBlock),
					zap.Uint64("to_block", result.ToBlock),
					zap.Int("confirmed", result.Confirmed),
					zap.Int("already_completed", result.AlreadyCompleted),
					zap.Int("orphaned", result.Orphaned))...)
		}

		if r.config.OrphanSweepInterval > 0 && r.clock.Since(lastSweep) >= r.config.OrphanSweepInterval {
			if _, err := r.SweepOrphans(ctx); err != nil && ctx.Err() == nil {
				logger.ErrorCtx(ctx, err, append(fields, zap.String("message", "Orphan sweep failed"))...)
			}
			lastSweep = r.clock.Now()
		}

		// Keep reading while behind the head
		if err == nil && !result.CaughtUp() {
			continue
		}

		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Reconciler stopped", fields...)
			return nil
		case <-r.clock.After(r.config.PollInterval):
		}
	}
}

// RunCycle reads one batch starting after the cursor, applies every event and advances the cursor.
// A retryable store error aborts the cycle before the cursor moves so the batch is read again.
func (r *reconciler) RunCycle(ctx context.Context) (*CycleResult, error) {
	fromBlock, err := r.startBlock(ctx)
	if err != nil {
		return nil, err
	}

	batch, err := r.fetchWithRetry(ctx, fromBlock)
	if err != nil {
		return nil, err
	}

	result := &CycleResult{
		FromBlock: batch.FromBlock,
		ToBlock:   batch.ToBlock,
		SafeHead:  batch.SafeHead,
		Scanned:   batch.Scanned,
	}
	if !batch.Scanned {
		return result, nil
	}

	// Writes of a started cycle complete even when shutdown is requested
	writeCtx := context.WithoutCancel(ctx)

	for i := range batch.Events {
		event := &batch.Events[i]
		outcome, err := r.applyEvent(writeCtx, event)
		if err != nil {
			return result, fmt.Errorf("failed to apply event %s at %s: %w", event.TransactionHash, event.Position(), err)
		}

		switch outcome {
		case OutcomeConfirmed:
			result.Confirmed++
		case OutcomeAlreadyCompleted:
			result.AlreadyCompleted++
		case OutcomeOrphaned:
			result.Orphaned++
		}
	}

	if err := r.cursors.SetBlockCursor(writeCtx, r.source.Chain(), r.source.ContractAddress(), batch.ToBlock); err != nil {
		return result, fmt.Errorf("failed to save block cursor: %w", err)
	}

	return result, nil
}

// startBlock returns max(cursor + 1, StartBlock)
func (r *reconciler) startBlock(ctx context.Context) (uint64, error) {
	cursor, found, err := r.cursors.GetBlockCursor(ctx, r.source.Chain(), r.source.ContractAddress())
	if err != nil {
		return 0, fmt.Errorf("failed to get block cursor: %w", err)
	}

	start := r.config.StartBlock
	if found && cursor+1 > start {
		start = cursor + 1
	}
	return start, nil
}

// fetchWithRetry reads a batch, retrying connection failures with exponential backoff until ctx is canceled
func (r *reconciler) fetchWithRetry(ctx context.Context, fromBlock uint64) (*messaging.EventBatch, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.BackoffInitialInterval
	b.MaxInterval = r.config.BackoffMaxInterval
	b.MaxElapsedTime = 0
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.5

	var batch *messaging.EventBatch
	operation := func() error {
		res, err := r.source.FetchEvents(ctx, fromBlock)
		if err != nil {
			if errors.Is(err, domain.ErrConnection) {
				return err
			}
			return backoff.Permanent(err)
		}
		batch = res
		return nil
	}

	var attemptCount int
	notifyOnError := func(err error, duration time.Duration) {
		attemptCount++
		logger.WarnCtx(ctx, "Ledger fetch failed, retrying",
			zap.String("contract", r.source.ContractAddress()),
			zap.Uint64("from_block", fromBlock),
			zap.Error(err),
			zap.Int("attempt", attemptCount),
			zap.Duration("next_retry_in", duration),
		)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notifyOnError); err != nil {
		return nil, fmt.Errorf("failed to fetch events from block %d: %w", fromBlock, err)
	}

	if attemptCount > 0 {
		logger.InfoCtx(ctx, "Ledger fetch succeeded after retries",
			zap.String("contract", r.source.ContractAddress()),
			zap.Int("total_attempts", attemptCount+1),
		)
	}

	return batch, nil
}

// applyEvent confirms the transaction matching event, recording an orphan when nothing matches
func (r *reconciler) applyEvent(ctx context.Context, event *domain.PurchaseEvent) (Outcome, error) {
	res, err := r.manager.Confirm(ctx, lifecycle.ConfirmInput{
		TransactionHash: event.TransactionHash,
		TokenID:         event.TokenID,
		BuyerAddress:    event.BuyerAddress,
		Price:           event.Price(),
	})
	if err == nil {
		if res.AlreadyCompleted {
			return OutcomeAlreadyCompleted, nil
		}
		return OutcomeConfirmed, nil
	}

	// Retryable failures abort the cycle, everything else is an orphan
	if domain.IsRetryable(err) {
		return "", err
	}

	if err := r.recordOrphan(ctx, event, err.Error()); err != nil {
		return "", err
	}

	return OutcomeOrphaned, nil
}

// recordOrphan persists an event that could not be confirmed
func (r *reconciler) recordOrphan(ctx context.Context, event *domain.PurchaseEvent, reason string) error {
	logger.WarnCtx(ctx, "Orphan ledger event",
		zap.String("chain", string(event.Chain)),
		zap.String("contract", event.ContractAddress),
		zap.String("tx_hash", event.TransactionHash),
		zap.String("position", event.Position()),
		zap.String("token_id", event.TokenID),
		zap.String("buyer", event.BuyerAddress),
		zap.String("seller", event.SellerAddress),
		zap.String("price", event.Price().String()),
		zap.String("reason", reason),
	)

	payload, err := r.json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal orphan event: %w", err)
	}

	priceWei := "0"
	if event.PriceWei != nil {
		priceWei = event.PriceWei.String()
	}

	return r.store.CreateOrphanEvent(ctx, store.CreateOrphanEventInput{
		Chain:           string(event.Chain),
		ContractAddress: event.ContractAddress,
		TransactionHash: event.TransactionHash,
		LogIndex:        event.LogIndex,
		BlockNumber:     event.BlockNumber,
		TokenID:         event.TokenID,
		BuyerAddress:    event.BuyerAddress,
		SellerAddress:   event.SellerAddress,
		PriceWei:        priceWei,
		Reason:          reason,
		Payload:         datatypes.JSON(payload),
	})
}

// Close closes the ledger source
func (r *reconciler) Close() {
	r.source.Close()
}
