package reconciler

import (
	"context"
	"fmt"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace-sync/internal/logger"
)

// Service runs one reconciler per monitored contract.
// Reconcilers share nothing but the stores, each applies its own contract in ledger order.
type Service struct {
	reconcilers []Reconciler
}

// NewService creates a service over the given reconcilers
func NewService(reconcilers ...Reconciler) *Service {
	return &Service{reconcilers: reconcilers}
}

// Run starts every reconciler on its own worker and blocks until all of them have stopped
func (s *Service) Run(ctx context.Context) error {
	if len(s.reconcilers) == 0 {
		return fmt.Errorf("no contracts to reconcile")
	}

	pool := pond.NewPool(len(s.reconcilers))
	defer pool.StopAndWait()

	group := pool.NewGroup()
	for _, r := range s.reconcilers {
		group.SubmitErr(func() error {
			if err := r.Run(ctx); err != nil {
				logger.ErrorCtx(ctx, err, zap.String("reconciler", r.Name()))
				return fmt.Errorf("reconciler %s: %w", r.Name(), err)
			}
			return nil
		})
	}

	logger.InfoCtx(ctx, "Reconciler service started", zap.Int("contracts", len(s.reconcilers)))

	return group.Wait()
}

// Close closes every reconciler
func (s *Service) Close() {
	for _, r := range s.reconcilers {
		r.Close()
	}
}
