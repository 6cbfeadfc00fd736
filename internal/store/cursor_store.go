package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/feral-file/ff-marketplace-sync/internal/domain"
	"github.com/feral-file/ff-marketplace-sync/internal/store/schema"
)

// CursorStore defines the interface for storing and retrieving reconciliation cursors.
// A cursor is the last block whose purchase events were fully applied for one contract.
type CursorStore interface {
	// GetBlockCursor retrieves the last processed block for a contract, found is false if none was stored
	GetBlockCursor(ctx context.Context, chain domain.Chain, contractAddress string) (blockNumber uint64, found bool, err error)
	// SetBlockCursor stores the last processed block for a contract
	SetBlockCursor(ctx context.Context, chain domain.Chain, contractAddress string, blockNumber uint64) error
}

type cursorStore struct {
	db *gorm.DB
}

// NewCursorStore creates a new cursor store
func NewCursorStore(db *gorm.DB) CursorStore {
	return &cursorStore{db: db}
}

// BlockCursorKey returns the key_value_store key of a contract cursor
func BlockCursorKey(chain domain.Chain, contractAddress string) string {
	return fmt.Sprintf("block_cursor:%s:%s", chain, strings.ToLower(contractAddress))
}

// GetBlockCursor retrieves the last processed block for a contract
func (s *cursorStore) GetBlockCursor(ctx context.Context, chain domain.Chain, contractAddress string) (uint64, bool, error) {
	key := BlockCursorKey(chain, contractAddress)

	var kv schema.KeyValueStore
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, storeError("get block cursor", err)
	}

	blockNumber, err := strconv.ParseUint(kv.Value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("failed to parse block cursor %q: %w", kv.Value, err)
	}

	return blockNumber, true, nil
}

// SetBlockCursor stores the last processed block for a contract
func (s *cursorStore) SetBlockCursor(ctx context.Context, chain domain.Chain, contractAddress string, blockNumber uint64) error {
	now := time.Now()
	kv := schema.KeyValueStore{
		Key:       BlockCursorKey(chain, contractAddress),
		Value:     strconv.FormatUint(blockNumber, 10),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&kv).Error
	if err != nil {
		return storeError("set block cursor", err)
	}

	return nil
}
