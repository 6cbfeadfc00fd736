package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/feral-file/ff-marketplace-sync/internal/store/schema"
)

// ReserveAssetInput represents the input for reserving an asset for a buyer
type ReserveAssetInput struct {
	AssetID      uint64
	BuyerAddress string
	Price        decimal.Decimal
	// TransactionHash is optional and must already be normalized
	TransactionHash *string
}

// CompleteTransactionInput represents the input for completing a pending transaction from a ledger event
type CompleteTransactionInput struct {
	// TransactionHash is the normalized hash of the on-chain purchase
	TransactionHash string
	// TokenID is used for the fallback match when no transaction carries the hash
	TokenID string
	// BuyerAddress is the normalized buyer reported by the ledger
	BuyerAddress string
	// RelistOnComplete sets is_available of the asset after ownership moves to the buyer
	RelistOnComplete bool
}

// MatchKind tells how a ledger event was matched to a transaction
type MatchKind string

const (
	MatchByHash    MatchKind = "hash"
	MatchByTokenID MatchKind = "token_id"
)

// CompleteTransactionResult represents the outcome of CompleteTransaction
type CompleteTransactionResult struct {
	Transaction *schema.Transaction
	// AlreadyCompleted is true when the transaction was completed by an earlier delivery of the event
	AlreadyCompleted bool
	MatchedBy        MatchKind
}

// CreateOrphanEventInput represents a ledger event that could not be matched
type CreateOrphanEventInput struct {
	Chain           string
	ContractAddress string
	TransactionHash string
	LogIndex        uint
	BlockNumber     uint64
	TokenID         string
	BuyerAddress    string
	SellerAddress   string
	PriceWei        string
	Reason          string
	Payload         datatypes.JSON
}

// OrphanEventFilter represents filters for listing orphan events
type OrphanEventFilter struct {
	ContractAddress *string
	IncludeResolved bool
	// MaxAttempts excludes events attempted at least this many times when positive
	MaxAttempts int
	Limit       int
	Offset      uint64
}

// Store defines the interface for record store operations.
// Mutating methods apply one lifecycle transition each inside a single database transaction.
type Store interface {
	// GetTransactionByID retrieves a transaction with its buyer, nil if absent
	GetTransactionByID(ctx context.Context, id uint64) (*schema.Transaction, error)

	// ReserveAsset creates a pending transaction and marks the asset unavailable
	ReserveAsset(ctx context.Context, input ReserveAssetInput) (*schema.Transaction, error)
	// AttachTransactionHash records the on-chain hash of a pending transaction
	AttachTransactionHash(ctx context.Context, transactionID uint64, hash string) (*schema.Transaction, error)
	// CompleteTransaction moves the matching pending transaction to completed and transfers the asset
	CompleteTransaction(ctx context.Context, input CompleteTransactionInput) (*CompleteTransactionResult, error)
	// CancelTransaction moves a pending transaction to cancelled and releases the asset
	CancelTransaction(ctx context.Context, transactionID uint64) (*schema.Transaction, error)

	// CreateOrphanEvent records an unmatched ledger event, bumping attempts on redelivery
	CreateOrphanEvent(ctx context.Context, input CreateOrphanEventInput) error
	// GetOrphanEvents lists orphan events ordered by ledger position
	GetOrphanEvents(ctx context.Context, filter OrphanEventFilter) ([]schema.OrphanEvent, error)
	// MarkOrphanEventResolved flags an orphan event as confirmed
	MarkOrphanEventResolved(ctx context.Context, id uint64, resolvedAt time.Time) error
	// UpdateOrphanEventAttempt records a failed retry of an orphan event
	UpdateOrphanEventAttempt(ctx context.Context, id uint64, reason string) error
}
