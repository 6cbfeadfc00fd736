package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus mirrors the status column values
type TransactionStatus string

const (
	// TransactionStatusPending marks a reservation awaiting on-chain confirmation
	TransactionStatusPending TransactionStatus = "pending"
	// TransactionStatusCompleted marks a purchase confirmed by a ledger event
	TransactionStatusCompleted TransactionStatus = "completed"
	// TransactionStatusCancelled marks a reservation released by the buyer or an operator
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// Transaction represents the transactions table.
// A partial unique index on asset_id WHERE status = 'pending' enforces a single open reservation per asset.
type Transaction struct {
	ID       uint64  `gorm:"column:id;primaryKey;autoIncrement"`
	AssetID  uint64  `gorm:"column:asset_id;not null;index"`
	BuyerID  uint64  `gorm:"column:buyer_id;not null;index"`
	SellerID *uint64 `gorm:"column:seller_id;index"`
	// Price is the reserved price in ether units
	Price decimal.Decimal `gorm:"column:price;not null;type:numeric(78,18)"`
	// TransactionHash is the normalized on-chain hash, nil until known
	TransactionHash *string           `gorm:"column:transaction_hash;type:text;uniqueIndex"`
	Status          TransactionStatus `gorm:"column:status;not null;type:text;default:pending"`
	CreatedAt       time.Time         `gorm:"column:created_at;not null;default:now()"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;not null;default:now()"`

	// Associations
	Asset Asset `gorm:"foreignKey:AssetID"`
	Buyer User  `gorm:"foreignKey:BuyerID"`
}

// TableName specifies the table name for the Transaction model
func (Transaction) TableName() string {
	return "transactions"
}
