package dto

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apierrors "github.com/feral-file/ff-marketplace-sync/internal/api/shared/errors"
	"github.com/feral-file/ff-marketplace-sync/internal/domain"
)

// ReserveTransactionRequest represents the request body for reserving an asset
type ReserveTransactionRequest struct {
	AssetID         uint64          `json:"asset_id"`
	BuyerAddress    string          `json:"buyer_address"`
	Price           decimal.Decimal `json:"price"`
	TransactionHash *string         `json:"transaction_hash,omitempty"`
}

// Validate validates the request body
func (r *ReserveTransactionRequest) Validate() error {
	if r.AssetID == 0 {
		return apierrors.NewValidationError("asset_id is required")
	}
	if strings.TrimSpace(r.BuyerAddress) == "" {
		return apierrors.NewValidationError("buyer_address is required")
	}
	if r.Price.IsNegative() {
		return apierrors.NewValidationError("price must not be negative")
	}
	return nil
}

// AttachTransactionHashRequest represents the request body for attaching an on-chain hash
type AttachTransactionHashRequest struct {
	TransactionHash string `json:"transaction_hash"`
}

// Validate validates the request body
func (r *AttachTransactionHashRequest) Validate() error {
	if strings.TrimSpace(r.TransactionHash) == "" {
		return apierrors.NewValidationError("transaction_hash is required")
	}
	return nil
}

// TransactionResponse represents a transaction in API responses
type TransactionResponse struct {
	ID              uint64          `json:"id"`
	AssetID         uint64          `json:"asset_id"`
	BuyerID         uint64          `json:"buyer_id"`
	SellerID        *uint64         `json:"seller_id,omitempty"`
	BuyerAddress    string          `json:"buyer_address"`
	Price           decimal.Decimal `json:"price"`
	TransactionHash *string         `json:"transaction_hash,omitempty"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// MapTransactionToDTO maps a domain transaction to its response form
func MapTransactionToDTO(tx *domain.Transaction) *TransactionResponse {
	if tx == nil {
		return nil
	}
	return &TransactionResponse{
		ID:              tx.ID,
		AssetID:         tx.AssetID,
		BuyerID:         tx.BuyerID,
		SellerID:        tx.SellerID,
		BuyerAddress:    tx.BuyerAddress,
		Price:           tx.Price,
		TransactionHash: tx.TransactionHash,
		Status:          string(tx.Status),
		CreatedAt:       tx.CreatedAt,
		UpdatedAt:       tx.UpdatedAt,
	}
}
