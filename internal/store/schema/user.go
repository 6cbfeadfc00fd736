package schema

import "time"

// User represents the users table. Rows are created lazily on first reference to a wallet.
type User struct {
	ID            uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	WalletAddress string    `gorm:"column:wallet_address;not null;type:text;uniqueIndex"`
	Username      string    `gorm:"column:username;not null;type:text"`
	CreatedAt     time.Time `gorm:"column:created_at;not null;default:now()"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}
