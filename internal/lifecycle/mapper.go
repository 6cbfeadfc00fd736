package lifecycle

import (
	"github.com/feral-file/ff-marketplace-sync/internal/domain"
	"github.com/feral-file/ff-marketplace-sync/internal/store/schema"
)

// toDomainTransaction maps a stored transaction to the record returned to callers
func toDomainTransaction(tx *schema.Transaction) *domain.Transaction {
	if tx == nil {
		return nil
	}
	return &domain.Transaction{
		ID:              tx.ID,
		AssetID:         tx.AssetID,
		BuyerID:         tx.BuyerID,
		SellerID:        tx.SellerID,
		BuyerAddress:    tx.Buyer.WalletAddress,
		Price:           tx.Price,
		TransactionHash: tx.TransactionHash,
		Status:          domain.TransactionStatus(tx.Status),
		CreatedAt:       tx.CreatedAt,
		UpdatedAt:       tx.UpdatedAt,
	}
}

// toDomainAsset maps a stored asset to the record returned to callers
func toDomainAsset(asset *schema.Asset) *domain.Asset {
	if asset == nil {
		return nil
	}
	return &domain.Asset{
		ID:           asset.ID,
		Name:         asset.Name,
		TokenID:      asset.TokenID,
		OwnerAddress: asset.OwnerAddress,
		Price:        asset.Price,
		IsAvailable:  asset.IsAvailable,
		UpdatedAt:    asset.UpdatedAt,
	}
}
