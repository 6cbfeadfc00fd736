package server_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-marketplace-sync/internal/api/middleware"
	"github.com/feral-file/ff-marketplace-sync/internal/api/server"
	apierrors "github.com/feral-file/ff-marketplace-sync/internal/api/shared/errors"
	"github.com/feral-file/ff-marketplace-sync/internal/domain"
	"github.com/feral-file/ff-marketplace-sync/internal/lifecycle"
	"github.com/feral-file/ff-marketplace-sync/internal/mocks"
)

const (
	testBuyer  = "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"
	testHash   = "0x8f3c1a2b4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f708192a3b4c5d6e7f8"
	testAPIKey = "test-api-key"
)

func setupTestServer(t *testing.T, auth middleware.AuthConfig) (http.Handler, *mocks.MockLifecycleManager) {
	ctrl := gomock.NewController(t)
	manager := mocks.NewMockLifecycleManager(ctrl)
	srv := server.New(server.Config{Auth: auth}, manager)
	return srv.Router(), manager
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func pendingTransaction() *domain.Transaction {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Transaction{
		ID:           7,
		AssetID:      3,
		BuyerID:      2,
		BuyerAddress: testBuyer,
		Price:        decimal.RequireFromString("1.5"),
		Status:       domain.TransactionStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apierrors.APIError {
	t.Helper()
	var apiErr apierrors.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}

func TestHealthCheck(t *testing.T) {
	router, _ := setupTestServer(t, middleware.AuthConfig{})

	rec := doRequest(t, router, http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, rec.Header().Get(middleware.REQUEST_ID_HEADER))
}

func TestRequestIDIsPropagated(t *testing.T) {
	router, _ := setupTestServer(t, middleware.AuthConfig{})

	rec := doRequest(t, router, http.MethodGet, "/health", nil, map[string]string{
		middleware.REQUEST_ID_HEADER: "req-123",
	})

	assert.Equal(t, "req-123", rec.Header().Get(middleware.REQUEST_ID_HEADER))
}

func TestReserveTransaction(t *testing.T) {
	router, manager := setupTestServer(t, middleware.AuthConfig{})

	manager.EXPECT().
		Reserve(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, input lifecycle.ReserveInput) (*domain.Transaction, error) {
			assert.Equal(t, uint64(3), input.AssetID)
			assert.Equal(t, testBuyer, input.BuyerAddress)
			assert.True(t, input.Price.Equal(decimal.RequireFromString("1.5")))
			require.NotNil(t, input.TransactionHash)
			assert.Equal(t, testHash, *input.TransactionHash)
			return pendingTransaction(), nil
		})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/transactions", map[string]any{
		"asset_id":         3,
		"buyer_address":    testBuyer,
		"price":            "1.5",
		"transaction_hash": testHash,
	}, nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(7), resp["id"])
	assert.Equal(t, "pending", resp["status"])
	assert.Equal(t, "1.5", resp["price"])
}

func TestReserveTransaction_Validation(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{name: "malformed body", body: "not an object"},
		{name: "missing asset", body: map[string]any{"buyer_address": testBuyer, "price": "1"}},
		{name: "missing buyer", body: map[string]any{"asset_id": 3, "price": "1"}},
		{name: "negative price", body: map[string]any{"asset_id": 3, "buyer_address": testBuyer, "price": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// The manager must not be called
			router, _ := setupTestServer(t, middleware.AuthConfig{})

			rec := doRequest(t, router, http.MethodPost, "/api/v1/transactions", tt.body, nil)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, apierrors.ErrCodeValidationFailed, decodeError(t, rec).Code)
		})
	}
}

func TestLifecycleErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   apierrors.ErrorCode
	}{
		{
			name:       "asset not available",
			err:        fmt.Errorf("%w: asset 3 already has a pending transaction", domain.ErrConflict),
			wantStatus: http.StatusConflict,
			wantCode:   apierrors.ErrCodeConflict,
		},
		{
			name:       "invalid transition",
			err:        fmt.Errorf("%w: transaction 7 is completed", domain.ErrInvalidTransition),
			wantStatus: http.StatusConflict,
			wantCode:   apierrors.ErrCodeInvalidTransition,
		},
		{
			name:       "not found",
			err:        fmt.Errorf("%w: transaction 7", domain.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   apierrors.ErrCodeNotFound,
		},
		{
			name:       "invalid input",
			err:        fmt.Errorf("%w: invalid address", domain.ErrInvalidInput),
			wantStatus: http.StatusBadRequest,
			wantCode:   apierrors.ErrCodeBadRequest,
		},
		{
			name:       "store failure",
			err:        fmt.Errorf("%w: connection refused", domain.ErrStore),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   apierrors.ErrCodeServiceUnavailable,
		},
		{
			name:       "unexpected failure",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   apierrors.ErrCodeInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, manager := setupTestServer(t, middleware.AuthConfig{})
			manager.EXPECT().Cancel(gomock.Any(), uint64(7)).Return(nil, tt.err)

			rec := doRequest(t, router, http.MethodPost, "/api/v1/transactions/7/cancel", nil, nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
			apiErr := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			if tt.wantStatus >= http.StatusInternalServerError {
				assert.Empty(t, apiErr.Details)
			}
		})
	}
}

func TestAttachTransactionHash(t *testing.T) {
	router, manager := setupTestServer(t, middleware.AuthConfig{})

	tx := pendingTransaction()
	hash := testHash
	tx.TransactionHash = &hash
	manager.EXPECT().AttachTransactionHash(gomock.Any(), uint64(7), testHash).Return(tx, nil)

	rec := doRequest(t, router, http.MethodPut, "/api/v1/transactions/7/hash", map[string]any{
		"transaction_hash": testHash,
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), testHash)

	rec = doRequest(t, router, http.MethodPut, "/api/v1/transactions/7/hash", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTransaction(t *testing.T) {
	router, manager := setupTestServer(t, middleware.AuthConfig{APIKeys: []string{testAPIKey}})

	manager.EXPECT().GetTransaction(gomock.Any(), uint64(7)).Return(pendingTransaction(), nil)

	// Reads do not require credentials
	rec := doRequest(t, router, http.MethodGet, "/api/v1/transactions/7", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"asset_id":3`)
}

func TestInvalidTransactionID(t *testing.T) {
	router, _ := setupTestServer(t, middleware.AuthConfig{})

	for _, path := range []string{"/api/v1/transactions/abc", "/api/v1/transactions/0", "/api/v1/transactions/-1"} {
		rec := doRequest(t, router, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestMutationsRequireCredentialsWhenConfigured(t *testing.T) {
	router, manager := setupTestServer(t, middleware.AuthConfig{APIKeys: []string{testAPIKey}})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/transactions/7/cancel", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/v1/transactions/7/cancel", nil, map[string]string{
		"Authorization": "ApiKey wrong-key",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tx := pendingTransaction()
	tx.Status = domain.TransactionStatusCancelled
	manager.EXPECT().Cancel(gomock.Any(), uint64(7)).Return(tx, nil)

	rec = doRequest(t, router, http.MethodPost, "/api/v1/transactions/7/cancel", nil, map[string]string{
		"Authorization": "ApiKey " + testAPIKey,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"cancelled"`)
}

// walletAuth returns an auth config trusting a fresh RSA key and a header signed for wallet
func walletAuth(t *testing.T, wallet string) (middleware.AuthConfig, map[string]string) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Subject:   wallet,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(privateKey)
	require.NoError(t, err)

	cfg := middleware.AuthConfig{
		JWTPublicKey: string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})),
		APIKeys:      []string{testAPIKey},
	}
	return cfg, map[string]string{"Authorization": "Bearer " + token}
}

func TestWalletPrincipal(t *testing.T) {
	const otherBuyer = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"

	t.Run("reserve defaults buyer to the wallet", func(t *testing.T) {
		auth, headers := walletAuth(t, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
		router, manager := setupTestServer(t, auth)

		manager.EXPECT().
			Reserve(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, input lifecycle.ReserveInput) (*domain.Transaction, error) {
				assert.Equal(t, testBuyer, input.BuyerAddress)
				return pendingTransaction(), nil
			})

		rec := doRequest(t, router, http.MethodPost, "/api/v1/transactions", map[string]any{
			"asset_id": 3,
			"price":    "1.5",
		}, headers)

		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("reserve for another buyer is forbidden", func(t *testing.T) {
		auth, headers := walletAuth(t, testBuyer)
		router, _ := setupTestServer(t, auth)

		rec := doRequest(t, router, http.MethodPost, "/api/v1/transactions", map[string]any{
			"asset_id":      3,
			"buyer_address": otherBuyer,
			"price":         "1.5",
		}, headers)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, apierrors.ErrCodeForbidden, decodeError(t, rec).Code)
	})

	t.Run("operator may reserve for any buyer", func(t *testing.T) {
		auth, _ := walletAuth(t, testBuyer)
		router, manager := setupTestServer(t, auth)
		manager.EXPECT().Reserve(gomock.Any(), gomock.Any()).Return(pendingTransaction(), nil)

		rec := doRequest(t, router, http.MethodPost, "/api/v1/transactions", map[string]any{
			"asset_id":      3,
			"buyer_address": otherBuyer,
			"price":         "1.5",
		}, map[string]string{"Authorization": "ApiKey " + testAPIKey})

		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("cancel of another buyer's transaction is forbidden", func(t *testing.T) {
		auth, headers := walletAuth(t, otherBuyer)
		router, manager := setupTestServer(t, auth)
		manager.EXPECT().GetTransaction(gomock.Any(), uint64(7)).Return(pendingTransaction(), nil)
		manager.EXPECT().Cancel(gomock.Any(), gomock.Any()).Times(0)

		rec := doRequest(t, router, http.MethodPost, "/api/v1/transactions/7/cancel", nil, headers)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, apierrors.ErrCodeForbidden, decodeError(t, rec).Code)
	})

	t.Run("cancel of own transaction", func(t *testing.T) {
		auth, headers := walletAuth(t, testBuyer)
		router, manager := setupTestServer(t, auth)

		tx := pendingTransaction()
		tx.Status = domain.TransactionStatusCancelled
		gomock.InOrder(
			manager.EXPECT().GetTransaction(gomock.Any(), uint64(7)).Return(pendingTransaction(), nil),
			manager.EXPECT().Cancel(gomock.Any(), uint64(7)).Return(tx, nil),
		)

		rec := doRequest(t, router, http.MethodPost, "/api/v1/transactions/7/cancel", nil, headers)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"cancelled"`)
	})

	t.Run("attach hash to unknown transaction", func(t *testing.T) {
		auth, headers := walletAuth(t, testBuyer)
		router, manager := setupTestServer(t, auth)
		manager.EXPECT().GetTransaction(gomock.Any(), uint64(7)).Return(nil, fmt.Errorf("%w: transaction 7", domain.ErrNotFound))

		rec := doRequest(t, router, http.MethodPut, "/api/v1/transactions/7/hash", map[string]any{
			"transaction_hash": testHash,
		}, headers)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
