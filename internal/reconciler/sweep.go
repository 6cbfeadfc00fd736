package reconciler

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace-sync/internal/domain"
	"github.com/feral-file/ff-marketplace-sync/internal/lifecycle"
	"github.com/feral-file/ff-marketplace-sync/internal/logger"
	"github.com/feral-file/ff-marketplace-sync/internal/store"
	"github.com/feral-file/ff-marketplace-sync/internal/store/schema"
)

// SweepOrphans retries unresolved orphan events of the contract through Confirm.
// Events that still cannot be applied have their attempt counter bumped; a retryable
// failure stops the sweep so it can resume on the next interval.
func (r *reconciler) SweepOrphans(ctx context.Context) (int, error) {
	contract := r.source.ContractAddress()
	orphans, err := r.store.GetOrphanEvents(ctx, store.OrphanEventFilter{
		ContractAddress: &contract,
		MaxAttempts:     r.config.OrphanMaxAttempts,
		Limit:           r.config.OrphanSweepBatch,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get orphan events: %w", err)
	}

	if len(orphans) == 0 {
		return 0, nil
	}

	logger.InfoCtx(ctx, "Retrying orphan events", zap.String("contract", contract), zap.Int("count", len(orphans)))

	writeCtx := context.WithoutCancel(ctx)
	resolved := 0
	for i := range orphans {
		if ctx.Err() != nil {
			break
		}

		orphan := &orphans[i]
		ok, err := r.retryOrphan(writeCtx, orphan)
		if err != nil {
			return resolved, fmt.Errorf("failed to retry orphan event %d: %w", orphan.ID, err)
		}
		if ok {
			resolved++
		}
	}

	logger.InfoCtx(ctx, "Orphan sweep completed",
		zap.String("contract", contract),
		zap.Int("checked", len(orphans)),
		zap.Int("resolved", resolved))

	return resolved, nil
}

// retryOrphan confirms a single orphan event, true when it is now resolved
func (r *reconciler) retryOrphan(ctx context.Context, orphan *schema.OrphanEvent) (bool, error) {
	priceWei, ok := new(big.Int).SetString(orphan.PriceWei, 10)
	if !ok {
		priceWei = big.NewInt(0)
	}

	_, err := r.manager.Confirm(ctx, lifecycle.ConfirmInput{
		TransactionHash: orphan.TransactionHash,
		TokenID:         orphan.TokenID,
		BuyerAddress:    orphan.BuyerAddress,
		Price:           domain.WeiToEther(priceWei),
	})
	if err != nil {
		if domain.IsRetryable(err) {
			return false, err
		}
		if err := r.store.UpdateOrphanEventAttempt(ctx, orphan.ID, err.Error()); err != nil {
			return false, err
		}
		logger.DebugCtx(ctx, "Orphan event still unmatched",
			zap.Uint64("orphan_id", orphan.ID),
			zap.String("tx_hash", orphan.TransactionHash),
			zap.Error(err))
		return false, nil
	}

	if err := r.store.MarkOrphanEventResolved(ctx, orphan.ID, r.clock.Now()); err != nil {
		return false, err
	}

	logger.InfoCtx(ctx, "Resolved orphan event",
		zap.Uint64("orphan_id", orphan.ID),
		zap.String("tx_hash", orphan.TransactionHash),
		zap.Uint64("block_number", orphan.BlockNumber))

	return true, nil
}
