package messaging

import (
	"context"

	"github.com/feral-file/ff-marketplace-sync/internal/domain"
)

// EventBatch is one page of purchase events read from the ledger.
// Events are ordered by (block, log index) and all lie in [FromBlock, ToBlock].
type EventBatch struct {
	Events    []domain.PurchaseEvent
	FromBlock uint64
	ToBlock   uint64
	// SafeHead is the newest block considered final when the batch was read
	SafeHead uint64
	// Scanned is false when the safe chain head has not reached FromBlock yet
	Scanned bool
}

// LedgerSource reads purchase events of one contract starting at a caller supplied block.
// Calling FetchEvents again with ToBlock+1 continues the sequence without gaps.
//
//go:generate mockgen -source=ledger.go -destination=../mocks/ledger.go -package=mocks -mock_names=LedgerSource=MockLedgerSource
type LedgerSource interface {
	// FetchEvents returns the events from fromBlock up to the safe head, bounded by the configured range.
	// Node failures are returned wrapped in domain.ErrConnection.
	FetchEvents(ctx context.Context, fromBlock uint64) (*EventBatch, error)

	// Chain returns the chain the source reads from
	Chain() domain.Chain

	// ContractAddress returns the lower-case address of the watched contract
	ContractAddress() string

	// Close closes the connection and cleans up resources
	Close()
}
