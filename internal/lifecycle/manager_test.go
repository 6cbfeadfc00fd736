package lifecycle_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-marketplace-sync/internal/domain"
	"github.com/feral-file/ff-marketplace-sync/internal/lifecycle"
	"github.com/feral-file/ff-marketplace-sync/internal/logger"
	"github.com/feral-file/ff-marketplace-sync/internal/mocks"
	"github.com/feral-file/ff-marketplace-sync/internal/store"
	"github.com/feral-file/ff-marketplace-sync/internal/store/schema"
)

const (
	buyer     = "0xaa00000000000000000000000000000000000001"
	txHash    = "0x8f3c1a2b4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f708192a3b4c5d6e7f8"
	tokenID   = "7"
	assetID   = uint64(7)
	reserveID = uint64(42)
)

func TestMain(m *testing.M) {
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

// testManagerMocks contains all the mocks needed for testing the manager
type testManagerMocks struct {
	ctrl      *gomock.Controller
	store     *mocks.MockStore
	publisher *mocks.MockPublisher
	clock     *mocks.MockClock
	manager   lifecycle.Manager
	now       time.Time
}

// setupTestManager creates all the mocks and the manager for testing
func setupTestManager(t *testing.T, relist bool) *testManagerMocks {
	ctrl := gomock.NewController(t)

	tm := &testManagerMocks{
		ctrl:      ctrl,
		store:     mocks.NewMockStore(ctrl),
		publisher: mocks.NewMockPublisher(ctrl),
		clock:     mocks.NewMockClock(ctrl),
		now:       time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	tm.clock.EXPECT().Now().Return(tm.now).AnyTimes()

	tm.manager = lifecycle.NewManager(
		lifecycle.Config{RelistOnComplete: relist},
		tm.store,
		tm.publisher,
		tm.clock,
	)

	return tm
}

func pendingTransaction(hash *string) *schema.Transaction {
	return &schema.Transaction{
		ID:              reserveID,
		AssetID:         assetID,
		BuyerID:         1,
		Price:           decimal.RequireFromString("0.5"),
		TransactionHash: hash,
		Status:          schema.TransactionStatusPending,
		Buyer:           schema.User{ID: 1, WalletAddress: buyer},
		Asset:           schema.Asset{ID: assetID, TokenID: stringPtr(tokenID), IsAvailable: false},
	}
}

func stringPtr(s string) *string {
	return &s
}

func TestManager_Reserve(t *testing.T) {
	tm := setupTestManager(t, true)
	ctx := context.Background()

	mixedCaseHash := "8F3C1A2B4D5E6F708192A3B4C5D6E7F8091A2B3C4D5E6F708192A3B4C5D6E7F8"
	tm.store.EXPECT().
		ReserveAsset(gomock.Any(), store.ReserveAssetInput{
			AssetID:         assetID,
			BuyerAddress:    buyer,
			Price:           decimal.RequireFromString("0.5"),
			TransactionHash: stringPtr(txHash),
		}).
		Return(pendingTransaction(stringPtr(txHash)), nil)

	tm.publisher.EXPECT().
		PublishTransition(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, event domain.TransitionEvent) error {
			assert.Equal(t, reserveID, event.TransactionID)
			assert.Equal(t, domain.TransactionStatusPending, event.Status)
			assert.Equal(t, tm.now, event.OccurredAt)
			return nil
		})

	tx, err := tm.manager.Reserve(ctx, lifecycle.ReserveInput{
		AssetID:         assetID,
		BuyerAddress:    "0xAA00000000000000000000000000000000000001",
		Price:           decimal.RequireFromString("0.5"),
		TransactionHash: &mixedCaseHash,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, tx.Status)
	assert.Equal(t, buyer, tx.BuyerAddress)
}

func TestManager_Reserve_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input lifecycle.ReserveInput
	}{
		{name: "missing asset", input: lifecycle.ReserveInput{BuyerAddress: buyer}},
		{name: "bad wallet", input: lifecycle.ReserveInput{AssetID: assetID, BuyerAddress: "wallet"}},
		{name: "negative price", input: lifecycle.ReserveInput{AssetID: assetID, BuyerAddress: buyer, Price: decimal.NewFromInt(-1)}},
		{name: "bad hash", input: lifecycle.ReserveInput{AssetID: assetID, BuyerAddress: buyer, TransactionHash: stringPtr("0x12")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := setupTestManager(t, true)

			_, err := tm.manager.Reserve(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		})
	}
}

func TestManager_Reserve_ConflictIsNotPublished(t *testing.T) {
	tm := setupTestManager(t, true)

	tm.store.EXPECT().
		ReserveAsset(gomock.Any(), gomock.Any()).
		Return(nil, domain.ErrConflict)

	_, err := tm.manager.Reserve(context.Background(), lifecycle.ReserveInput{
		AssetID:      assetID,
		BuyerAddress: buyer,
		Price:        decimal.RequireFromString("0.5"),
	})
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestManager_Confirm(t *testing.T) {
	tm := setupTestManager(t, true)

	completed := pendingTransaction(stringPtr(txHash))
	completed.Status = schema.TransactionStatusCompleted
	completed.Asset.OwnerAddress = stringPtr(buyer)
	completed.Asset.IsAvailable = true

	tm.store.EXPECT().
		CompleteTransaction(gomock.Any(), store.CompleteTransactionInput{
			TransactionHash:  txHash,
			TokenID:          tokenID,
			BuyerAddress:     buyer,
			RelistOnComplete: true,
		}).
		Return(&store.CompleteTransactionResult{Transaction: completed, MatchedBy: store.MatchByHash}, nil)

	tm.publisher.EXPECT().
		PublishTransition(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, event domain.TransitionEvent) error {
			assert.Equal(t, domain.TransactionStatusCompleted, event.Status)
			return nil
		})

	result, err := tm.manager.Confirm(context.Background(), lifecycle.ConfirmInput{
		TransactionHash: txHash,
		TokenID:         tokenID,
		BuyerAddress:    buyer,
		Price:           decimal.RequireFromString("0.5"),
	})
	require.NoError(t, err)
	assert.False(t, result.AlreadyCompleted)
	assert.Equal(t, domain.TransactionStatusCompleted, result.Transaction.Status)
	require.NotNil(t, result.Asset.OwnerAddress)
	assert.Equal(t, buyer, *result.Asset.OwnerAddress)
	assert.True(t, result.Asset.IsAvailable)
}

func TestManager_Confirm_AlreadyCompletedIsSilent(t *testing.T) {
	tm := setupTestManager(t, false)

	completed := pendingTransaction(stringPtr(txHash))
	completed.Status = schema.TransactionStatusCompleted

	tm.store.EXPECT().
		CompleteTransaction(gomock.Any(), gomock.Any()).
		Return(&store.CompleteTransactionResult{Transaction: completed, AlreadyCompleted: true, MatchedBy: store.MatchByHash}, nil).
		Times(2)

	// No publish expected for a replay
	for i := 0; i < 2; i++ {
		result, err := tm.manager.Confirm(context.Background(), lifecycle.ConfirmInput{
			TransactionHash: txHash,
			TokenID:         tokenID,
			BuyerAddress:    buyer,
			Price:           decimal.RequireFromString("0.5"),
		})
		require.NoError(t, err)
		assert.True(t, result.AlreadyCompleted)
		assert.Equal(t, domain.TransactionStatusCompleted, result.Transaction.Status)
	}
}

func TestManager_Confirm_PassesStoreErrorsThrough(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "orphan", err: domain.ErrNotFound},
		{name: "cancelled", err: domain.ErrInvalidTransition},
		{name: "database down", err: domain.ErrStore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := setupTestManager(t, true)
			tm.store.EXPECT().CompleteTransaction(gomock.Any(), gomock.Any()).Return(nil, tt.err)

			_, err := tm.manager.Confirm(context.Background(), lifecycle.ConfirmInput{
				TransactionHash: txHash,
				TokenID:         tokenID,
				BuyerAddress:    buyer,
			})
			assert.True(t, errors.Is(err, tt.err))
		})
	}
}

func TestManager_Confirm_PublishFailureDoesNotFail(t *testing.T) {
	tm := setupTestManager(t, true)

	completed := pendingTransaction(stringPtr(txHash))
	completed.Status = schema.TransactionStatusCompleted

	tm.store.EXPECT().CompleteTransaction(gomock.Any(), gomock.Any()).
		Return(&store.CompleteTransactionResult{Transaction: completed, MatchedBy: store.MatchByTokenID}, nil)
	tm.publisher.EXPECT().PublishTransition(gomock.Any(), gomock.Any()).Return(errors.New("nats: timeout"))

	result, err := tm.manager.Confirm(context.Background(), lifecycle.ConfirmInput{
		TransactionHash: txHash,
		TokenID:         tokenID,
		BuyerAddress:    buyer,
		Price:           decimal.RequireFromString("0.7"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, result.Transaction.Status)
}

func TestManager_Confirm_PriceMismatchStillCompletes(t *testing.T) {
	tm := setupTestManager(t, true)

	completed := pendingTransaction(stringPtr(txHash))
	completed.Status = schema.TransactionStatusCompleted

	tm.store.EXPECT().CompleteTransaction(gomock.Any(), gomock.Any()).
		Return(&store.CompleteTransactionResult{Transaction: completed, MatchedBy: store.MatchByHash}, nil)
	tm.publisher.EXPECT().PublishTransition(gomock.Any(), gomock.Any()).Return(nil)

	// One wei above the reserved price
	result, err := tm.manager.Confirm(context.Background(), lifecycle.ConfirmInput{
		TransactionHash: txHash,
		TokenID:         tokenID,
		BuyerAddress:    buyer,
		Price:           decimal.RequireFromString("0.500000000000000001"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, result.Transaction.Status)
	assert.True(t, result.Transaction.Price.Equal(decimal.RequireFromString("0.5")))
}

func TestManager_Cancel(t *testing.T) {
	tm := setupTestManager(t, true)

	cancelled := pendingTransaction(nil)
	cancelled.Status = schema.TransactionStatusCancelled
	cancelled.Asset.IsAvailable = true

	tm.store.EXPECT().CancelTransaction(gomock.Any(), reserveID).Return(cancelled, nil)
	tm.publisher.EXPECT().PublishTransition(gomock.Any(), gomock.Any()).Return(nil)

	tx, err := tm.manager.Cancel(context.Background(), reserveID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCancelled, tx.Status)

	_, err = tm.manager.Cancel(context.Background(), 0)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestManager_Cancel_InvalidTransition(t *testing.T) {
	tm := setupTestManager(t, true)
	tm.store.EXPECT().CancelTransaction(gomock.Any(), reserveID).Return(nil, domain.ErrInvalidTransition)

	_, err := tm.manager.Cancel(context.Background(), reserveID)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

func TestManager_AttachTransactionHash(t *testing.T) {
	tm := setupTestManager(t, true)

	tm.store.EXPECT().AttachTransactionHash(gomock.Any(), reserveID, txHash).
		Return(pendingTransaction(stringPtr(txHash)), nil)

	tx, err := tm.manager.AttachTransactionHash(context.Background(), reserveID, "  "+txHash[2:]+" ")
	require.NoError(t, err)
	require.NotNil(t, tx.TransactionHash)
	assert.Equal(t, txHash, *tx.TransactionHash)
}

func TestManager_GetTransaction(t *testing.T) {
	tm := setupTestManager(t, true)

	tm.store.EXPECT().GetTransactionByID(gomock.Any(), reserveID).Return(pendingTransaction(nil), nil)
	tm.store.EXPECT().GetTransactionByID(gomock.Any(), uint64(99)).Return(nil, nil)

	tx, err := tm.manager.GetTransaction(context.Background(), reserveID)
	require.NoError(t, err)
	assert.Equal(t, reserveID, tx.ID)

	_, err = tm.manager.GetTransaction(context.Background(), 99)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
