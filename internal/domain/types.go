package domain

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// Chain represents the blockchain network identifier using CAIP-2 format
type Chain string

const (
	ChainEthereumMainnet Chain = "eip155:1"
	ChainEthereumSepolia Chain = "eip155:11155111"
	ChainEthereumLocal   Chain = "eip155:1337"
)

// IsValidChain checks if a chain is valid
func IsValidChain(chain Chain) bool {
	return chain == ChainEthereumMainnet ||
		chain == ChainEthereumSepolia ||
		chain == ChainEthereumLocal
}

// TransactionStatus is the lifecycle status of a marketplace transaction
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// Terminal reports whether no transition is allowed out of the status
func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusCancelled
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// Only pending -> completed and pending -> cancelled exist.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	if s != TransactionStatusPending {
		return false
	}
	return next == TransactionStatusCompleted || next == TransactionStatusCancelled
}

// Asset is a tokenized asset listed on the marketplace
type Asset struct {
	ID           uint64          `json:"id"`
	Name         string          `json:"name"`
	TokenID      *string         `json:"token_id,omitempty"`
	OwnerAddress *string         `json:"owner_address,omitempty"`
	Price        decimal.Decimal `json:"price"`
	IsAvailable  bool            `json:"is_available"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// User is a marketplace participant keyed by wallet address
type User struct {
	ID            uint64 `json:"id"`
	WalletAddress string `json:"wallet_address"`
	Username      string `json:"username"`
}

// Transaction is the off-chain record of a purchase
type Transaction struct {
	ID              uint64            `json:"id"`
	AssetID         uint64            `json:"asset_id"`
	BuyerID         uint64            `json:"buyer_id"`
	SellerID        *uint64           `json:"seller_id,omitempty"`
	BuyerAddress    string            `json:"buyer_address"`
	Price           decimal.Decimal   `json:"price"`
	TransactionHash *string           `json:"transaction_hash,omitempty"`
	Status          TransactionStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// PurchaseEvent is a decoded purchase log emitted by the escrow contract
type PurchaseEvent struct {
	Chain           Chain    `json:"chain"`
	ContractAddress string   `json:"contract_address"`
	TransactionHash string   `json:"transaction_hash"`
	BlockNumber     uint64   `json:"block_number"`
	LogIndex        uint     `json:"log_index"`
	TokenID         string   `json:"token_id"`
	BuyerAddress    string   `json:"buyer_address"`
	SellerAddress   string   `json:"seller_address"`
	PriceWei        *big.Int `json:"price_wei"`
}

// Price returns the event price in ether units
func (e *PurchaseEvent) Price() decimal.Decimal {
	return WeiToEther(e.PriceWei)
}

// Position returns a printable ledger position (block:logIndex)
func (e *PurchaseEvent) Position() string {
	return fmt.Sprintf("%d:%d", e.BlockNumber, e.LogIndex)
}

// TransitionEvent describes a committed lifecycle change and is published to subscribers
type TransitionEvent struct {
	TransactionID   uint64            `json:"transaction_id"`
	AssetID         uint64            `json:"asset_id"`
	Status          TransactionStatus `json:"status"`
	TransactionHash *string           `json:"transaction_hash,omitempty"`
	BuyerAddress    string            `json:"buyer_address"`
	Price           decimal.Decimal   `json:"price"`
	OccurredAt      time.Time         `json:"occurred_at"`
}

// NewTransitionEvent builds the notification for a transaction that just changed status
func NewTransitionEvent(tx *Transaction, at time.Time) TransitionEvent {
	return TransitionEvent{
		TransactionID:   tx.ID,
		AssetID:         tx.AssetID,
		Status:          tx.Status,
		TransactionHash: tx.TransactionHash,
		BuyerAddress:    tx.BuyerAddress,
		Price:           tx.Price,
		OccurredAt:      at,
	}
}

// NormalizeTxHash returns the canonical form of a transaction hash:
// lower-case hex, 0x prefix, 32 bytes.
func NormalizeTxHash(hash string) (string, error) {
	h := strings.ToLower(strings.TrimSpace(hash))
	if !strings.HasPrefix(h, "0x") {
		h = "0x" + h
	}
	b, err := hexutil.Decode(h)
	if err != nil {
		return "", fmt.Errorf("%w: transaction hash %q is not hex: %w", ErrInvalidInput, hash, err)
	}
	if len(b) != common.HashLength {
		return "", fmt.Errorf("%w: transaction hash %q must be %d bytes", ErrInvalidInput, hash, common.HashLength)
	}
	return hexutil.Encode(b), nil
}

// NormalizeAddress returns the lower-case 0x form of an Ethereum address
func NormalizeAddress(address string) (string, error) {
	a := strings.TrimSpace(address)
	if !common.IsHexAddress(a) {
		return "", fmt.Errorf("%w: invalid wallet address %q", ErrInvalidInput, address)
	}
	return strings.ToLower(common.HexToAddress(a).Hex()), nil
}

// SameAddress compares two addresses ignoring case and checksum
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// DefaultUsername returns the username given to a lazily created user
func DefaultUsername(walletAddress string) string {
	prefix := walletAddress
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return DEFAULT_USERNAME_PREFIX + prefix
}

// WeiToEther converts a wei amount into ether units
func WeiToEther(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -WEI_DECIMALS)
}

// EtherToWei converts an ether amount into wei, truncating sub-wei precision
func EtherToWei(ether decimal.Decimal) *big.Int {
	return ether.Shift(WEI_DECIMALS).Truncate(0).BigInt()
}
