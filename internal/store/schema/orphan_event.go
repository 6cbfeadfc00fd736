package schema

import (
	"time"

	"gorm.io/datatypes"
)

// OrphanEvent represents the orphan_events table - ledger purchases that matched no pending transaction
type OrphanEvent struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Chain is the CAIP-2 chain the event was observed on
	Chain string `gorm:"column:chain;not null;type:text"`
	// ContractAddress is the lower-case address of the emitting contract
	ContractAddress string `gorm:"column:contract_address;not null;type:text;uniqueIndex:idx_orphan_events_log,priority:1"`
	// TransactionHash is the normalized hash of the purchase transaction
	TransactionHash string `gorm:"column:transaction_hash;not null;type:text;uniqueIndex:idx_orphan_events_log,priority:2"`
	// LogIndex is the position of the log inside its block
	LogIndex      uint   `gorm:"column:log_index;not null;uniqueIndex:idx_orphan_events_log,priority:3"`
	BlockNumber   uint64 `gorm:"column:block_number;not null"`
	TokenID       string `gorm:"column:token_id;not null;type:text"`
	BuyerAddress  string `gorm:"column:buyer_address;not null;type:text"`
	SellerAddress string `gorm:"column:seller_address;not null;type:text"`
	// PriceWei is the on-chain price as a decimal string in wei
	PriceWei string `gorm:"column:price_wei;not null;type:text"`
	// Reason is the lifecycle error that prevented confirmation
	Reason string `gorm:"column:reason;not null;type:text"`
	// Payload is the full decoded event
	Payload datatypes.JSON `gorm:"column:payload;type:jsonb"`
	// Attempts counts confirmation attempts including the first
	Attempts int `gorm:"column:attempts;not null;default:1"`
	// ResolvedAt is set once a later sweep confirmed the event
	ResolvedAt *time.Time `gorm:"column:resolved_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;not null;default:now()"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;not null;default:now()"`
}

// TableName specifies the table name for the OrphanEvent model
func (OrphanEvent) TableName() string {
	return "orphan_events"
}
