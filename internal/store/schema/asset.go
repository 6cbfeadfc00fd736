package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset represents the assets table - a listing that can be reserved and bought
type Asset struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Name is the display name of the asset
	Name string `gorm:"column:name;not null;type:text"`
	// Description is free-form listing text
	Description *string `gorm:"column:description;type:text"`
	// TokenID is the on-chain token identifier (decimal string, nil until minted)
	TokenID *string `gorm:"column:token_id;type:text;uniqueIndex"`
	// OwnerAddress is the lower-case wallet address of the current owner
	OwnerAddress *string `gorm:"column:owner_address;type:text"`
	// Price is the listing price in ether units
	Price decimal.Decimal `gorm:"column:price;not null;type:numeric(78,18)"`
	// IsAvailable is false while a reservation holds the asset
	IsAvailable bool `gorm:"column:is_available;not null;default:true"`
	// CreatedAt is the timestamp when the asset was listed
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()"`
	// UpdatedAt is the timestamp of the last change
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now()"`
}

// TableName specifies the table name for the Asset model
func (Asset) TableName() string {
	return "assets"
}
