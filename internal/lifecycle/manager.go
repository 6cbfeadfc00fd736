package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace-sync/internal/adapter"
	"github.com/feral-file/ff-marketplace-sync/internal/domain"
	"github.com/feral-file/ff-marketplace-sync/internal/logger"
	"github.com/feral-file/ff-marketplace-sync/internal/messaging"
	"github.com/feral-file/ff-marketplace-sync/internal/store"
)

// Config holds lifecycle policy
type Config struct {
	// RelistOnComplete makes a purchased asset available again under its new owner
	RelistOnComplete bool
}

// ReserveInput is a request to hold an asset for a buyer
type ReserveInput struct {
	AssetID      uint64
	BuyerAddress string
	Price        decimal.Decimal
	// TransactionHash is optional, the buyer may attach it later
	TransactionHash *string
}

// ConfirmInput carries the fields of a ledger purchase event needed to complete a transaction
type ConfirmInput struct {
	TransactionHash string
	TokenID         string
	BuyerAddress    string
	// Price is the on-chain price in ether units
	Price decimal.Decimal
}

// ConfirmResult is the outcome of a successful Confirm
type ConfirmResult struct {
	Transaction *domain.Transaction
	Asset       *domain.Asset
	// AlreadyCompleted is true when the event had been applied before and nothing changed
	AlreadyCompleted bool
}

// Manager owns the pending -> completed | cancelled state machine of transactions
// and the availability and ownership of their assets. It is the only writer of those fields.
//
//go:generate mockgen -source=manager.go -destination=../mocks/lifecycle.go -package=mocks -mock_names=Manager=MockLifecycleManager
type Manager interface {
	// Reserve creates a pending transaction and holds the asset, domain.ErrConflict if it cannot be held
	Reserve(ctx context.Context, input ReserveInput) (*domain.Transaction, error)
	// AttachTransactionHash records the on-chain hash of a pending transaction
	AttachTransactionHash(ctx context.Context, transactionID uint64, hash string) (*domain.Transaction, error)
	// Confirm completes the pending transaction matching a ledger event, domain.ErrNotFound for orphans
	Confirm(ctx context.Context, input ConfirmInput) (*ConfirmResult, error)
	// Cancel releases a pending transaction, domain.ErrInvalidTransition from any other state
	Cancel(ctx context.Context, transactionID uint64) (*domain.Transaction, error)
	// GetTransaction returns a transaction by ID, domain.ErrNotFound if absent
	GetTransaction(ctx context.Context, transactionID uint64) (*domain.Transaction, error)
}

type manager struct {
	cfg       Config
	store     store.Store
	publisher messaging.Publisher
	clock     adapter.Clock
}

// NewManager creates a new lifecycle manager
func NewManager(cfg Config, st store.Store, publisher messaging.Publisher, clock adapter.Clock) Manager {
	if publisher == nil {
		publisher = messaging.NewNopPublisher()
	}
	return &manager{
		cfg:       cfg,
		store:     st,
		publisher: publisher,
		clock:     clock,
	}
}

// Reserve creates a pending transaction and holds the asset
func (m *manager) Reserve(ctx context.Context, input ReserveInput) (*domain.Transaction, error) {
	if input.AssetID == 0 {
		return nil, fmt.Errorf("%w: asset id is required", domain.ErrInvalidInput)
	}
	if input.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", domain.ErrInvalidInput)
	}

	buyer, err := domain.NormalizeAddress(input.BuyerAddress)
	if err != nil {
		return nil, err
	}

	var hash *string
	if input.TransactionHash != nil && strings.TrimSpace(*input.TransactionHash) != "" {
		normalized, err := domain.NormalizeTxHash(*input.TransactionHash)
		if err != nil {
			return nil, err
		}
		hash = &normalized
	}

	tx, err := m.store.ReserveAsset(ctx, store.ReserveAssetInput{
		AssetID:         input.AssetID,
		BuyerAddress:    buyer,
		Price:           input.Price,
		TransactionHash: hash,
	})
	if err != nil {
		logger.DebugCtx(ctx, "Reservation rejected",
			zap.Uint64("asset_id", input.AssetID),
			zap.String("buyer", buyer),
			zap.Error(err))
		return nil, err
	}

	reserved := toDomainTransaction(tx)
	logger.InfoCtx(ctx, "Reserved asset", transactionFields(reserved)...)
	m.publish(ctx, reserved)

	return reserved, nil
}

// AttachTransactionHash records the on-chain hash of a pending transaction
func (m *manager) AttachTransactionHash(ctx context.Context, transactionID uint64, hash string) (*domain.Transaction, error) {
	normalized, err := domain.NormalizeTxHash(hash)
	if err != nil {
		return nil, err
	}

	tx, err := m.store.AttachTransactionHash(ctx, transactionID, normalized)
	if err != nil {
		return nil, err
	}

	updated := toDomainTransaction(tx)
	logger.InfoCtx(ctx, "Attached transaction hash", transactionFields(updated)...)

	return updated, nil
}

// Confirm completes the pending transaction matching a ledger event.
// Replaying an event that was already applied returns the completed record unchanged.
func (m *manager) Confirm(ctx context.Context, input ConfirmInput) (*ConfirmResult, error) {
	hash, err := domain.NormalizeTxHash(input.TransactionHash)
	if err != nil {
		return nil, err
	}
	buyer, err := domain.NormalizeAddress(input.BuyerAddress)
	if err != nil {
		return nil, err
	}

	res, err := m.store.CompleteTransaction(ctx, store.CompleteTransactionInput{
		TransactionHash:  hash,
		TokenID:          input.TokenID,
		BuyerAddress:     buyer,
		RelistOnComplete: m.cfg.RelistOnComplete,
	})
	if err != nil {
		return nil, err
	}

	result := &ConfirmResult{
		Transaction:      toDomainTransaction(res.Transaction),
		Asset:            toDomainAsset(&res.Transaction.Asset),
		AlreadyCompleted: res.AlreadyCompleted,
	}
	fields := transactionFields(result.Transaction)

	if res.AlreadyCompleted {
		logger.InfoCtx(ctx, "Transaction already completed, nothing to apply", fields...)
		return result, nil
	}

	// The ledger is authoritative, mismatches are only reported. Prices compare in wei.
	reservedWei := domain.EtherToWei(result.Transaction.Price)
	ledgerWei := domain.EtherToWei(input.Price)
	if reservedWei.Cmp(ledgerWei) != 0 {
		logger.WarnCtx(ctx, "Ledger price differs from reserved price",
			append(fields,
				zap.String("reserved_price_wei", reservedWei.String()),
				zap.String("ledger_price_wei", ledgerWei.String()))...)
	}
	if !domain.SameAddress(result.Transaction.BuyerAddress, buyer) {
		logger.WarnCtx(ctx, "Ledger buyer differs from reserved buyer",
			append(fields, zap.String("ledger_buyer", buyer))...)
	}

	logger.InfoCtx(ctx, "Confirmed transaction",
		append(fields,
			zap.String("matched_by", string(res.MatchedBy)),
			zap.String("new_owner", buyer),
			zap.Bool("relisted", m.cfg.RelistOnComplete))...)
	m.publish(ctx, result.Transaction)

	return result, nil
}

// Cancel releases a pending transaction
func (m *manager) Cancel(ctx context.Context, transactionID uint64) (*domain.Transaction, error) {
	if transactionID == 0 {
		return nil, fmt.Errorf("%w: transaction id is required", domain.ErrInvalidInput)
	}

	tx, err := m.store.CancelTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	cancelled := toDomainTransaction(tx)
	logger.InfoCtx(ctx, "Cancelled transaction", transactionFields(cancelled)...)
	m.publish(ctx, cancelled)

	return cancelled, nil
}

// GetTransaction returns a transaction by ID
func (m *manager) GetTransaction(ctx context.Context, transactionID uint64) (*domain.Transaction, error) {
	tx, err := m.store.GetTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, fmt.Errorf("%w: transaction %d", domain.ErrNotFound, transactionID)
	}
	return toDomainTransaction(tx), nil
}

// publish notifies subscribers of a committed transition. Failures never undo the transition.
func (m *manager) publish(ctx context.Context, tx *domain.Transaction) {
	event := domain.NewTransitionEvent(tx, m.clock.Now())
	if err := m.publisher.PublishTransition(ctx, event); err != nil {
		logger.WarnCtx(ctx, "Failed to publish transition", append(transactionFields(tx), zap.Error(err))...)
	}
}

func transactionFields(tx *domain.Transaction) []zap.Field {
	fields := []zap.Field{
		zap.Uint64("transaction_id", tx.ID),
		zap.Uint64("asset_id", tx.AssetID),
		zap.String("status", string(tx.Status)),
		zap.String("buyer", tx.BuyerAddress),
	}
	if tx.TransactionHash != nil {
		fields = append(fields, zap.String("tx_hash", *tx.TransactionHash))
	}
	return fields
}
