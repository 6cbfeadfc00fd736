package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/feral-file/ff-marketplace-sync/internal/domain"
	"github.com/feral-file/ff-marketplace-sync/internal/store/schema"
)

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique_violation
const pgUniqueViolation = "23505"

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// Zero values fall back to the defaults of NormalizeConnectionPoolSettings.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults to unset pool settings.
//
// Defaults (when zero):
//   - MaxOpenConns: 10
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
//
// MaxIdleConns is clamped to MaxOpenConns.
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	if maxOpenConns <= 0 {
		maxOpenConns = 10
	}
	if maxIdleConns <= 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime <= 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime <= 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// storeError tags a database failure as a transient store error
func storeError(action string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", domain.ErrStore, action, err)
}

// isUniqueViolation reports whether err is a unique constraint violation
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// GetTransactionByID retrieves a transaction with its buyer
func (s *pgStore) GetTransactionByID(ctx context.Context, id uint64) (*schema.Transaction, error) {
	var transaction schema.Transaction
	err := s.db.WithContext(ctx).
		Preload("Buyer").
		Preload("Asset").
		Where("id = ?", id).
		First(&transaction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storeError("get transaction", err)
	}
	return &transaction, nil
}

// getOrCreateUser inserts the user unless the wallet is already known, then reads it back.
// ON CONFLICT DO NOTHING keeps concurrent first references from failing each other.
func getOrCreateUser(tx *gorm.DB, walletAddress string) (*schema.User, error) {
	user := schema.User{
		WalletAddress: walletAddress,
		Username:      domain.DefaultUsername(walletAddress),
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet_address"}},
		DoNothing: true,
	}).Create(&user).Error
	if err != nil {
		return nil, storeError("create user", err)
	}
	if user.ID != 0 {
		return &user, nil
	}

	var existing schema.User
	if err := tx.Where("wallet_address = ?", walletAddress).First(&existing).Error; err != nil {
		return nil, storeError("get user", err)
	}
	return &existing, nil
}

// ReserveAsset creates a pending transaction and marks the asset unavailable.
// The asset row lock serializes concurrent reservations; the conditional update on
// is_available and the partial unique index on pending transactions back it up.
func (s *pgStore) ReserveAsset(ctx context.Context, input ReserveAssetInput) (*schema.Transaction, error) {
	var created schema.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Lock the asset row
		var asset schema.Asset
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", input.AssetID).
			First(&asset).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: asset %d does not exist", domain.ErrConflict, input.AssetID)
			}
			return storeError("lock asset", err)
		}
		if !asset.IsAvailable {
			return fmt.Errorf("%w: asset %d is not available", domain.ErrConflict, asset.ID)
		}
		if asset.OwnerAddress != nil && domain.SameAddress(*asset.OwnerAddress, input.BuyerAddress) {
			return fmt.Errorf("%w: buyer %s already owns asset %d", domain.ErrInvalidInput, input.BuyerAddress, asset.ID)
		}

		// 2. Guard against a pending transaction left behind by an out-of-sync flag
		var pending int64
		err = tx.Model(&schema.Transaction{}).
			Where("asset_id = ? AND status = ?", asset.ID, schema.TransactionStatusPending).
			Count(&pending).Error
		if err != nil {
			return storeError("count pending transactions", err)
		}
		if pending > 0 {
			return fmt.Errorf("%w: asset %d already has a pending transaction", domain.ErrConflict, asset.ID)
		}

		// 3. Materialize buyer and seller
		buyer, err := getOrCreateUser(tx, input.BuyerAddress)
		if err != nil {
			return err
		}
		var sellerID *uint64
		if asset.OwnerAddress != nil && *asset.OwnerAddress != "" {
			// Owners written outside the marketplace may carry a checksummed address
			owner, err := domain.NormalizeAddress(*asset.OwnerAddress)
			if err != nil {
				return fmt.Errorf("%w: asset %d has owner address %q", domain.ErrConflict, asset.ID, *asset.OwnerAddress)
			}
			seller, err := getOrCreateUser(tx, owner)
			if err != nil {
				return err
			}
			sellerID = &seller.ID
		}

		// 4. Insert the pending transaction
		created = schema.Transaction{
			AssetID:         asset.ID,
			BuyerID:         buyer.ID,
			SellerID:        sellerID,
			Price:           input.Price,
			TransactionHash: input.TransactionHash,
			Status:          schema.TransactionStatusPending,
		}
		if err := tx.Omit(clause.Associations).Create(&created).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: reservation for asset %d collides with an existing transaction", domain.ErrConflict, asset.ID)
			}
			return storeError("create transaction", err)
		}

		// 5. Flip availability only if still available
		result := tx.Model(&schema.Asset{}).
			Where("id = ? AND is_available = ?", asset.ID, true).
			Updates(map[string]interface{}{
				"is_available": false,
				"updated_at":   time.Now(),
			})
		if result.Error != nil {
			return storeError("mark asset unavailable", result.Error)
		}
		if result.RowsAffected != 1 {
			return fmt.Errorf("%w: asset %d was reserved concurrently", domain.ErrConflict, asset.ID)
		}

		asset.IsAvailable = false
		created.Asset = asset
		created.Buyer = *buyer
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &created, nil
}

// lockTransaction locks the asset of a transaction and then the transaction itself.
// Taking the asset lock first keeps the lock order identical to ReserveAsset.
func lockTransaction(tx *gorm.DB, transactionID uint64) (*schema.Transaction, error) {
	var probe schema.Transaction
	err := tx.Select("id", "asset_id").Where("id = ?", transactionID).First(&probe).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: transaction %d", domain.ErrNotFound, transactionID)
		}
		return nil, storeError("get transaction", err)
	}

	var asset schema.Asset
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", probe.AssetID).
		First(&asset).Error
	if err != nil {
		return nil, storeError("lock asset", err)
	}

	var locked schema.Transaction
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", probe.ID).
		First(&locked).Error
	if err != nil {
		return nil, storeError("lock transaction", err)
	}

	if err := tx.Where("id = ?", locked.BuyerID).First(&locked.Buyer).Error; err != nil {
		return nil, storeError("get buyer", err)
	}
	locked.Asset = asset

	return &locked, nil
}

// checkTransition rejects a status change the transaction lifecycle does not allow
func checkTransition(transaction *schema.Transaction, next schema.TransactionStatus) error {
	from := domain.TransactionStatus(transaction.Status)
	if !from.CanTransitionTo(domain.TransactionStatus(next)) {
		return fmt.Errorf("%w: transaction %d cannot move from %s to %s", domain.ErrInvalidTransition, transaction.ID, from, next)
	}
	return nil
}

// setTransactionStatus moves a transaction to status, guarded by the status it was locked with
func setTransactionStatus(tx *gorm.DB, transaction *schema.Transaction, status schema.TransactionStatus, now time.Time) error {
	if err := checkTransition(transaction, status); err != nil {
		return err
	}

	updates := map[string]interface{}{
		"status":     status,
		"updated_at": now,
	}
	if transaction.TransactionHash != nil {
		updates["transaction_hash"] = *transaction.TransactionHash
	}

	result := tx.Model(&schema.Transaction{}).
		Where("id = ? AND status = ?", transaction.ID, transaction.Status).
		Updates(updates)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return fmt.Errorf("%w: transaction hash already recorded on another transaction", domain.ErrConflict)
		}
		return storeError("update transaction status", result.Error)
	}
	if result.RowsAffected != 1 {
		return fmt.Errorf("%w: transaction %d is no longer %s", domain.ErrInvalidTransition, transaction.ID, transaction.Status)
	}

	transaction.Status = status
	transaction.UpdatedAt = now
	return nil
}

// AttachTransactionHash records the on-chain hash of a pending transaction
func (s *pgStore) AttachTransactionHash(ctx context.Context, transactionID uint64, hash string) (*schema.Transaction, error) {
	var updated *schema.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockTransaction(tx, transactionID)
		if err != nil {
			return err
		}
		if domain.TransactionStatus(locked.Status).Terminal() {
			return fmt.Errorf("%w: transaction %d is %s", domain.ErrInvalidTransition, locked.ID, locked.Status)
		}
		updated = locked
		if locked.TransactionHash != nil && *locked.TransactionHash == hash {
			return nil
		}

		result := tx.Model(&schema.Transaction{}).
			Where("id = ? AND status = ?", locked.ID, schema.TransactionStatusPending).
			Updates(map[string]interface{}{
				"transaction_hash": hash,
				"updated_at":       time.Now(),
			})
		if result.Error != nil {
			if isUniqueViolation(result.Error) {
				return fmt.Errorf("%w: transaction hash %s already recorded", domain.ErrConflict, hash)
			}
			return storeError("attach transaction hash", result.Error)
		}

		updated.TransactionHash = &hash
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// CompleteTransaction moves the pending transaction matching a ledger event to completed.
// Matching is by transaction hash first, then by (asset token, pending, buyer wallet).
// A transaction already completed under the same hash is returned unchanged.
func (s *pgStore) CompleteTransaction(ctx context.Context, input CompleteTransactionInput) (*CompleteTransactionResult, error) {
	result := &CompleteTransactionResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Find the candidate transaction
		var probe schema.Transaction
		err := tx.Select("id").
			Where("transaction_hash = ?", input.TransactionHash).
			First(&probe).Error
		switch {
		case err == nil:
			result.MatchedBy = MatchByHash
		case errors.Is(err, gorm.ErrRecordNotFound):
			err = tx.Model(&schema.Transaction{}).
				Select("transactions.id").
				Joins("JOIN assets ON assets.id = transactions.asset_id").
				Joins("JOIN users ON users.id = transactions.buyer_id").
				Where("assets.token_id = ? AND transactions.status = ? AND users.wallet_address = ?",
					input.TokenID, schema.TransactionStatusPending, input.BuyerAddress).
				First(&probe).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: no pending transaction for hash %s or token %s", domain.ErrNotFound, input.TransactionHash, input.TokenID)
				}
				return storeError("match transaction by token", err)
			}
			result.MatchedBy = MatchByTokenID
		default:
			return storeError("match transaction by hash", err)
		}

		// 2. Lock and re-check under the lock
		locked, err := lockTransaction(tx, probe.ID)
		if err != nil {
			return err
		}
		result.Transaction = locked

		switch locked.Status {
		case schema.TransactionStatusCompleted:
			if result.MatchedBy == MatchByHash {
				result.AlreadyCompleted = true
				return nil
			}
			return fmt.Errorf("%w: transaction %d was completed concurrently", domain.ErrNotFound, locked.ID)
		case schema.TransactionStatusCancelled:
			if result.MatchedBy == MatchByHash {
				return fmt.Errorf("%w: transaction %d is cancelled", domain.ErrInvalidTransition, locked.ID)
			}
			return fmt.Errorf("%w: transaction %d was cancelled concurrently", domain.ErrNotFound, locked.ID)
		}

		// 3. Complete the transaction
		now := time.Now()
		hash := input.TransactionHash
		locked.TransactionHash = &hash
		if err := setTransactionStatus(tx, locked, schema.TransactionStatusCompleted, now); err != nil {
			return err
		}

		// 4. Transfer the asset to the buyer
		err = tx.Model(&schema.Asset{}).
			Where("id = ?", locked.AssetID).
			Updates(map[string]interface{}{
				"owner_address": input.BuyerAddress,
				"is_available":  input.RelistOnComplete,
				"updated_at":    now,
			}).Error
		if err != nil {
			return storeError("transfer asset", err)
		}

		owner := input.BuyerAddress
		locked.Asset.OwnerAddress = &owner
		locked.Asset.IsAvailable = input.RelistOnComplete
		locked.Asset.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// CancelTransaction moves a pending transaction to cancelled and releases the asset
func (s *pgStore) CancelTransaction(ctx context.Context, transactionID uint64) (*schema.Transaction, error) {
	var cancelled *schema.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockTransaction(tx, transactionID)
		if err != nil {
			return err
		}
		now := time.Now()
		if err := setTransactionStatus(tx, locked, schema.TransactionStatusCancelled, now); err != nil {
			return err
		}

		err = tx.Model(&schema.Asset{}).
			Where("id = ?", locked.AssetID).
			Updates(map[string]interface{}{
				"is_available": true,
				"updated_at":   now,
			}).Error
		if err != nil {
			return storeError("release asset", err)
		}

		locked.Asset.IsAvailable = true
		locked.Asset.UpdatedAt = now
		cancelled = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	return cancelled, nil
}

// CreateOrphanEvent records an unmatched ledger event.
// Redelivery of the same log bumps the attempt counter instead of duplicating the row.
func (s *pgStore) CreateOrphanEvent(ctx context.Context, input CreateOrphanEventInput) error {
	orphan := schema.OrphanEvent{
		Chain:           input.Chain,
		ContractAddress: input.ContractAddress,
		TransactionHash: input.TransactionHash,
		LogIndex:        input.LogIndex,
		BlockNumber:     input.BlockNumber,
		TokenID:         input.TokenID,
		BuyerAddress:    input.BuyerAddress,
		SellerAddress:   input.SellerAddress,
		PriceWei:        input.PriceWei,
		Reason:          input.Reason,
		Payload:         input.Payload,
		Attempts:        1,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "contract_address"},
			{Name: "transaction_hash"},
			{Name: "log_index"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"attempts":   gorm.Expr("orphan_events.attempts + 1"),
			"reason":     gorm.Expr("EXCLUDED.reason"),
			"updated_at": gorm.Expr("now()"),
		}),
	}).Create(&orphan).Error
	if err != nil {
		return storeError("create orphan event", err)
	}

	return nil
}

// GetOrphanEvents lists orphan events ordered by ledger position
func (s *pgStore) GetOrphanEvents(ctx context.Context, filter OrphanEventFilter) ([]schema.OrphanEvent, error) {
	query := s.db.WithContext(ctx).Model(&schema.OrphanEvent{})
	if filter.ContractAddress != nil {
		query = query.Where("contract_address = ?", *filter.ContractAddress)
	}
	if !filter.IncludeResolved {
		query = query.Where("resolved_at IS NULL")
	}
	if filter.MaxAttempts > 0 {
		query = query.Where("attempts < ?", filter.MaxAttempts)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(int(filter.Offset)) //nolint:gosec,G115
	}

	var orphans []schema.OrphanEvent
	err := query.Order("block_number ASC, log_index ASC").Find(&orphans).Error
	if err != nil {
		return nil, storeError("get orphan events", err)
	}

	return orphans, nil
}

// MarkOrphanEventResolved flags an orphan event as confirmed
func (s *pgStore) MarkOrphanEventResolved(ctx context.Context, id uint64, resolvedAt time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&schema.OrphanEvent{}).
		Where("id = ? AND resolved_at IS NULL", id).
		Updates(map[string]interface{}{
			"resolved_at": resolvedAt,
			"updated_at":  time.Now(),
		}).Error
	if err != nil {
		return storeError("resolve orphan event", err)
	}
	return nil
}

// UpdateOrphanEventAttempt records a failed retry of an orphan event
func (s *pgStore) UpdateOrphanEventAttempt(ctx context.Context, id uint64, reason string) error {
	err := s.db.WithContext(ctx).
		Model(&schema.OrphanEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"reason":     reason,
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return storeError("update orphan event attempt", err)
	}
	return nil
}
