package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/feral-file/ff-marketplace-sync/internal/domain"
	"github.com/feral-file/ff-marketplace-sync/internal/store/schema"
)

const (
	sellerAddress = "0xbb00000000000000000000000000000000000002"
	buyerAddress  = "0xaa00000000000000000000000000000000000001"
	otherAddress  = "0xcc00000000000000000000000000000000000003"
	purchaseHash  = "0x8f3c1a2b4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f708192a3b4c5d6e7f8"
	otherHash     = "0x1111111111111111111111111111111111111111111111111111111111111111"
)

// =============================================================================
// Test Data Builders
// =============================================================================

// seedAsset inserts an available asset owned by sellerAddress
func seedAsset(t *testing.T, db *gorm.DB, tokenID string) *schema.Asset {
	owner := sellerAddress
	asset := schema.Asset{
		Name:         "Asset " + tokenID,
		TokenID:      &tokenID,
		OwnerAddress: &owner,
		Price:        decimal.RequireFromString("0.5"),
		IsAvailable:  true,
	}
	require.NoError(t, db.Create(&asset).Error)
	return &asset
}

// findUser reads a user by wallet directly, bypassing the store
func findUser(t *testing.T, db *gorm.DB, walletAddress string) schema.User {
	var user schema.User
	require.NoError(t, db.Where("wallet_address = ?", walletAddress).First(&user).Error)
	return user
}

// reloadAsset reads the asset directly, bypassing the store
func reloadAsset(t *testing.T, db *gorm.DB, id uint64) schema.Asset {
	var asset schema.Asset
	require.NoError(t, db.Where("id = ?", id).First(&asset).Error)
	return asset
}

func buildReserveInput(assetID uint64, hash *string) ReserveAssetInput {
	return ReserveAssetInput{
		AssetID:         assetID,
		BuyerAddress:    buyerAddress,
		Price:           decimal.RequireFromString("0.5"),
		TransactionHash: hash,
	}
}

// testHash returns a distinct well-formed transaction hash
func testHash(n int) string {
	return fmt.Sprintf("0x%064x", n)
}

func stringPtr(s string) *string {
	return &s
}

// =============================================================================
// Tests
// =============================================================================

func testReserveAsset(t *testing.T, store Store, db *gorm.DB) {
	ctx := context.Background()

	t.Run("creates pending transaction and holds the asset", func(t *testing.T) {
		asset := seedAsset(t, db, "1001")

		tx, err := store.ReserveAsset(ctx, buildReserveInput(asset.ID, nil))
		require.NoError(t, err)
		assert.Equal(t, schema.TransactionStatusPending, tx.Status)
		assert.Equal(t, asset.ID, tx.AssetID)
		assert.Nil(t, tx.TransactionHash)
		assert.Equal(t, buyerAddress, tx.Buyer.WalletAddress)
		assert.Equal(t, domain.DefaultUsername(buyerAddress), tx.Buyer.Username)
		require.NotNil(t, tx.SellerID)

		assert.False(t, reloadAsset(t, db, asset.ID).IsAvailable)

		assert.Equal(t, findUser(t, db, sellerAddress).ID, *tx.SellerID)
	})

	t.Run("checksummed owner maps to the normalized seller", func(t *testing.T) {
		asset := seedAsset(t, db, "1007")
		checksummed := "0xBb00000000000000000000000000000000000002"
		require.NoError(t, db.Model(&schema.Asset{}).Where("id = ?", asset.ID).Update("owner_address", checksummed).Error)

		tx, err := store.ReserveAsset(ctx, buildReserveInput(asset.ID, nil))
		require.NoError(t, err)
		require.NotNil(t, tx.SellerID)
		assert.Equal(t, findUser(t, db, sellerAddress).ID, *tx.SellerID)

		var count int64
		require.NoError(t, db.Model(&schema.User{}).Where("lower(wallet_address) = ?", sellerAddress).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("second reservation conflicts", func(t *testing.T) {
		asset := seedAsset(t, db, "1002")

		_, err := store.ReserveAsset(ctx, buildReserveInput(asset.ID, nil))
		require.NoError(t, err)

		second := buildReserveInput(asset.ID, nil)
		second.BuyerAddress = otherAddress
		_, err = store.ReserveAsset(ctx, second)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrConflict))
	})

	t.Run("missing asset conflicts", func(t *testing.T) {
		_, err := store.ReserveAsset(ctx, buildReserveInput(999999, nil))
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrConflict))
	})

	t.Run("unavailable asset conflicts", func(t *testing.T) {
		asset := seedAsset(t, db, "1003")
		require.NoError(t, db.Model(&schema.Asset{}).Where("id = ?", asset.ID).Update("is_available", false).Error)

		_, err := store.ReserveAsset(ctx, buildReserveInput(asset.ID, nil))
		assert.True(t, errors.Is(err, domain.ErrConflict))
	})

	t.Run("owner cannot buy own asset", func(t *testing.T) {
		asset := seedAsset(t, db, "1004")
		input := buildReserveInput(asset.ID, nil)
		input.BuyerAddress = sellerAddress

		_, err := store.ReserveAsset(ctx, input)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		assert.True(t, reloadAsset(t, db, asset.ID).IsAvailable)
	})

	t.Run("hash used by another transaction conflicts", func(t *testing.T) {
		first := seedAsset(t, db, "1005")
		second := seedAsset(t, db, "1006")

		_, err := store.ReserveAsset(ctx, buildReserveInput(first.ID, stringPtr(otherHash)))
		require.NoError(t, err)

		_, err = store.ReserveAsset(ctx, buildReserveInput(second.ID, stringPtr(otherHash)))
		assert.True(t, errors.Is(err, domain.ErrConflict))
		assert.True(t, reloadAsset(t, db, second.ID).IsAvailable)
	})
}

func testCancelTransaction(t *testing.T, store Store, db *gorm.DB) {
	ctx := context.Background()

	t.Run("cancel releases the asset and allows a new reservation", func(t *testing.T) {
		asset := seedAsset(t, db, "2001")
		tx, err := store.ReserveAsset(ctx, buildReserveInput(asset.ID, nil))
		require.NoError(t, err)

		cancelled, err := store.CancelTransaction(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, schema.TransactionStatusCancelled, cancelled.Status)
		assert.True(t, cancelled.Asset.IsAvailable)
		assert.True(t, reloadAsset(t, db, asset.ID).IsAvailable)

		again, err := store.ReserveAsset(ctx, buildReserveInput(asset.ID, nil))
		require.NoError(t, err)
		assert.NotEqual(t, tx.ID, again.ID)
	})

	t.Run("cancel twice is an invalid transition", func(t *testing.T) {
		asset := seedAsset(t, db, "2002")
		tx, err := store.ReserveAsset(ctx, buildReserveInput(asset.ID, nil))
		require.NoError(t, err)

		_, err = store.CancelTransaction(ctx, tx.ID)
		require.NoError(t, err)

		_, err = store.CancelTransaction(ctx, tx.ID)
		assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	})

	t.Run("cancel of a completed transaction is an invalid transition", func(t *testing.T) {
		asset := seedAsset(t, db, "2003")
		tx, err := store.ReserveAsset(ctx, buildReserveInput(asset.ID, stringPtr(purchaseHash)))
		require.NoError(t, err)

		_, err = store.CompleteTransaction(ctx, CompleteTransactionInput{
			TransactionHash:  purchaseHash,
			TokenID:          "2003",
			BuyerAddress:     buyerAddress,
			RelistOnComplete: true,
		})
		require.NoError(t, err)

		_, err = store.CancelTransaction(ctx, tx.ID)
		assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

		reloaded, err := store.GetTransactionByID(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, schema.TransactionStatusCompleted, reloaded.Status)
	})

	t.Run("cancel of unknown transaction is not found", func(t *testing.T) {
		_, err := store.CancelTransaction(ctx, 424242)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func testCompleteTransaction(t *testing.T, store Store, db *gorm.DB) {
	ctx := context.Background()

	t.Run("round trip by hash transfers ownership", func(t *testing.T) {
		asset := seedAsset(t, db, "3001")
		tx, err := store.ReserveAsset(ctx, buildReserveInput(asset.ID, stringPtr(testHash(3001))))
		require.NoError(t, err)

		result, err := store.CompleteTransaction(ctx, CompleteTransactionInput{
			TransactionHash:  testHash(3001),
			TokenID:          "3001",
			BuyerAddress:     buyerAddress,
			RelistOnComplete: true,
		})
		require.NoError(t, err)
		assert.False(t, result.AlreadyCompleted)
		assert.Equal(t, MatchByHash, result.MatchedBy)
		assert.Equal(t, tx.ID, result.Transaction.ID)
		assert.Equal(t, schema.TransactionStatusCompleted, result.Transaction.Status)

		reloaded := reloadAsset(t, db, asset.ID)
		require.NotNil(t, reloaded.OwnerAddress)
		assert.Equal(t, buyerAddress, *reloaded.OwnerAddress)
		assert.True(t, reloaded.IsAvailable)

		// Redelivery of the same event is a no-op
		replay, err := store.CompleteTransaction(ctx, CompleteTransactionInput{
			TransactionHash:  testHash(3001),
			TokenID:          "3001",
			BuyerAddress:     buyerAddress,
			RelistOnComplete: true,
		})
		require.NoError(t, err)
		assert.True(t, replay.AlreadyCompleted)
		assert.Equal(t, tx.ID, replay.Transaction.ID)
		assert.Equal(t, schema.TransactionStatusCompleted, replay.Transaction.Status)
		assert.Equal(t, reloaded.UpdatedAt, reloadAsset(t, db, asset.ID).UpdatedAt)
	})

	t.Run("fallback by token records the hash", func(t *testing.T) {
		asset := seedAsset(t, db, "3002")
		tx, err := store.ReserveAsset(ctx, buildReserveInput(asset.ID, nil))
		require.NoError(t, err)

		result, err := store.CompleteTransaction(ctx, CompleteTransactionInput{
			TransactionHash:  testHash(3002),
			TokenID:          "3002",
			BuyerAddress:     buyerAddress,
			RelistOnComplete: false,
		})
		require.NoError(t, err)
		assert.Equal(t, MatchByTokenID, result.MatchedBy)
		assert.Equal(t, tx.ID, result.Transaction.ID)

		var byHash schema.Transaction
		require.NoError(t, db.Where("transaction_hash = ?", testHash(3002)).First(&byHash).Error)
		assert.Equal(t, tx.ID, byHash.ID)
		assert.False(t, reloadAsset(t, db, asset.ID).IsAvailable)
	})

	t.Run("fallback requires the same buyer", func(t *testing.T) {
		asset := seedAsset(t, db, "3003")
		_, err := store.ReserveAsset(ctx, buildReserveInput(asset.ID, nil))
		require.NoError(t, err)

		_, err = store.CompleteTransaction(ctx, CompleteTransactionInput{
			TransactionHash: testHash(3003),
			TokenID:         "3003",
			BuyerAddress:    otherAddress,
		})
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("orphan event mutates nothing", func(t *testing.T) {
		asset := seedAsset(t, db, "3004")
		before := reloadAsset(t, db, asset.ID)

		_, err := store.CompleteTransaction(ctx, CompleteTransactionInput{
			TransactionHash: testHash(3004),
			TokenID:         "3004",
			BuyerAddress:    buyerAddress,
		})
		assert.True(t, errors.Is(err, domain.ErrNotFound))

		after := reloadAsset(t, db, asset.ID)
		assert.Equal(t, before.OwnerAddress, after.OwnerAddress)
		assert.Equal(t, before.IsAvailable, after.IsAvailable)
	})

	t.Run("confirm after cancel is an invalid transition", func(t *testing.T) {
		asset := seedAsset(t, db, "3005")
		tx, err := store.ReserveAsset(ctx, buildReserveInput(asset.ID, stringPtr(testHash(3005))))
		require.NoError(t, err)
		_, err = store.CancelTransaction(ctx, tx.ID)
		require.NoError(t, err)

		_, err = store.CompleteTransaction(ctx, CompleteTransactionInput{
			TransactionHash: testHash(3005),
			TokenID:         "3005",
			BuyerAddress:    buyerAddress,
		})
		assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

		reloaded, err := store.GetTransactionByID(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, schema.TransactionStatusCancelled, reloaded.Status)
		assert.True(t, reloadAsset(t, db, asset.ID).IsAvailable)
	})
}

func testAttachTransactionHash(t *testing.T, store Store, db *gorm.DB) {
	ctx := context.Background()

	t.Run("attach and re-attach the same hash", func(t *testing.T) {
		asset := seedAsset(t, db, "4001")
		tx, err := store.ReserveAsset(ctx, buildReserveInput(asset.ID, nil))
		require.NoError(t, err)

		updated, err := store.AttachTransactionHash(ctx, tx.ID, purchaseHash)
		require.NoError(t, err)
		require.NotNil(t, updated.TransactionHash)
		assert.Equal(t, purchaseHash, *updated.TransactionHash)

		_, err = store.AttachTransactionHash(ctx, tx.ID, purchaseHash)
		require.NoError(t, err)
	})

	t.Run("hash owned by another transaction conflicts", func(t *testing.T) {
		first := seedAsset(t, db, "4002")
		second := seedAsset(t, db, "4003")
		_, err := store.ReserveAsset(ctx, buildReserveInput(first.ID, stringPtr(otherHash)))
		require.NoError(t, err)
		tx, err := store.ReserveAsset(ctx, buildReserveInput(second.ID, nil))
		require.NoError(t, err)

		_, err = store.AttachTransactionHash(ctx, tx.ID, otherHash)
		assert.True(t, errors.Is(err, domain.ErrConflict))
	})

	t.Run("attach on cancelled transaction is an invalid transition", func(t *testing.T) {
		asset := seedAsset(t, db, "4004")
		tx, err := store.ReserveAsset(ctx, buildReserveInput(asset.ID, nil))
		require.NoError(t, err)
		_, err = store.CancelTransaction(ctx, tx.ID)
		require.NoError(t, err)

		_, err = store.AttachTransactionHash(ctx, tx.ID, testHash(4004))
		assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	})
}

func testGetOrCreateUser(t *testing.T, db *gorm.DB) {
	first, err := getOrCreateUser(db, otherAddress)
	require.NoError(t, err)
	second, err := getOrCreateUser(db, otherAddress)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "User_0xcc0000", second.Username)
}

func testOrphanEvents(t *testing.T, store Store) {
	ctx := context.Background()

	payload, err := json.Marshal(map[string]interface{}{"token_id": "5001"})
	require.NoError(t, err)

	input := CreateOrphanEventInput{
		Chain:           string(domain.ChainEthereumMainnet),
		ContractAddress: "0xabcdef0123456789abcdef0123456789abcdef01",
		TransactionHash: purchaseHash,
		LogIndex:        3,
		BlockNumber:     100,
		TokenID:         "5001",
		BuyerAddress:    buyerAddress,
		SellerAddress:   sellerAddress,
		PriceWei:        "500000000000000000",
		Reason:          "not found",
		Payload:         datatypes.JSON(payload),
	}
	require.NoError(t, store.CreateOrphanEvent(ctx, input))

	input.Reason = "still not found"
	require.NoError(t, store.CreateOrphanEvent(ctx, input))

	later := input
	later.TransactionHash = otherHash
	later.BlockNumber = 101
	require.NoError(t, store.CreateOrphanEvent(ctx, later))

	orphans, err := store.GetOrphanEvents(ctx, OrphanEventFilter{ContractAddress: &input.ContractAddress})
	require.NoError(t, err)
	require.Len(t, orphans, 2)
	assert.Equal(t, uint64(100), orphans[0].BlockNumber)
	assert.Equal(t, 2, orphans[0].Attempts)
	assert.Equal(t, "still not found", orphans[0].Reason)

	require.NoError(t, store.UpdateOrphanEventAttempt(ctx, orphans[1].ID, "retry failed"))
	require.NoError(t, store.MarkOrphanEventResolved(ctx, orphans[0].ID, time.Now()))

	unresolved, err := store.GetOrphanEvents(ctx, OrphanEventFilter{ContractAddress: &input.ContractAddress})
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, otherHash, unresolved[0].TransactionHash)
	assert.Equal(t, 2, unresolved[0].Attempts)

	all, err := store.GetOrphanEvents(ctx, OrphanEventFilter{ContractAddress: &input.ContractAddress, IncludeResolved: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	exhausted, err := store.GetOrphanEvents(ctx, OrphanEventFilter{ContractAddress: &input.ContractAddress, MaxAttempts: 2})
	require.NoError(t, err)
	assert.Empty(t, exhausted)
}

func testBlockCursor(t *testing.T, cursors CursorStore) {
	ctx := context.Background()
	contract := "0xAbCdEf0123456789AbCdEf0123456789aBcDeF01"

	_, found, err := cursors.GetBlockCursor(ctx, domain.ChainEthereumSepolia, contract)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cursors.SetBlockCursor(ctx, domain.ChainEthereumSepolia, contract, 12345))
	require.NoError(t, cursors.SetBlockCursor(ctx, domain.ChainEthereumSepolia, contract, 12400))

	block, found, err := cursors.GetBlockCursor(ctx, domain.ChainEthereumSepolia, "0xabcdef0123456789abcdef0123456789abcdef01")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(12400), block)

	_, found, err = cursors.GetBlockCursor(ctx, domain.ChainEthereumMainnet, contract)
	require.NoError(t, err)
	assert.False(t, found)
}

func testConcurrentReserve(t *testing.T, store Store, db *gorm.DB) {
	ctx := context.Background()
	asset := seedAsset(t, db, "9001")

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			input := buildReserveInput(asset.ID, nil)
			input.BuyerAddress = fmt.Sprintf("0xdd%038x", i)
			_, err := store.ReserveAsset(ctx, input)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected reservation error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)

	var pending int64
	require.NoError(t, db.Model(&schema.Transaction{}).
		Where("asset_id = ? AND status = ?", asset.ID, schema.TransactionStatusPending).
		Count(&pending).Error)
	assert.Equal(t, int64(1), pending)
}

// RunStoreTests runs all store tests with a fresh transaction-scoped store per test
func RunStoreTests(t *testing.T, initDB func(t *testing.T) (Store, *gorm.DB)) {
	t.Run("ReserveAsset", func(t *testing.T) {
		store, db := initDB(t)
		testReserveAsset(t, store, db)
	})

	t.Run("CancelTransaction", func(t *testing.T) {
		store, db := initDB(t)
		testCancelTransaction(t, store, db)
	})

	t.Run("CompleteTransaction", func(t *testing.T) {
		store, db := initDB(t)
		testCompleteTransaction(t, store, db)
	})

	t.Run("AttachTransactionHash", func(t *testing.T) {
		store, db := initDB(t)
		testAttachTransactionHash(t, store, db)
	})

	t.Run("GetOrCreateUser", func(t *testing.T) {
		_, db := initDB(t)
		testGetOrCreateUser(t, db)
	})

	t.Run("OrphanEvents", func(t *testing.T) {
		store, _ := initDB(t)
		testOrphanEvents(t, store)
	})
}

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    schema.TransactionStatus
		to      schema.TransactionStatus
		wantErr bool
	}{
		{name: "pending to completed", from: schema.TransactionStatusPending, to: schema.TransactionStatusCompleted},
		{name: "pending to cancelled", from: schema.TransactionStatusPending, to: schema.TransactionStatusCancelled},
		{name: "completed to cancelled", from: schema.TransactionStatusCompleted, to: schema.TransactionStatusCancelled, wantErr: true},
		{name: "cancelled to completed", from: schema.TransactionStatusCancelled, to: schema.TransactionStatusCompleted, wantErr: true},
		{name: "completed to pending", from: schema.TransactionStatusCompleted, to: schema.TransactionStatusPending, wantErr: true},
		{name: "unknown status", from: schema.TransactionStatus("refunded"), to: schema.TransactionStatusCompleted, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkTransition(&schema.Transaction{ID: 1, Status: tt.from}, tt.to)
			if tt.wantErr {
				assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
