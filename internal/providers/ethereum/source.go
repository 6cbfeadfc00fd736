package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace-sync/internal/adapter"
	"github.com/feral-file/ff-marketplace-sync/internal/domain"
	"github.com/feral-file/ff-marketplace-sync/internal/logger"
	"github.com/feral-file/ff-marketplace-sync/internal/messaging"
)

// DefaultMaxBlockRange is the number of blocks read per FetchEvents call when unset
const DefaultMaxBlockRange = 2000

// Config holds the configuration for a purchase event source
type Config struct {
	ChainID         domain.Chain // e.g., "eip155:1" for Ethereum mainnet
	ContractAddress string       // escrow contract emitting the purchase event
	ABIPath         string       // optional ABI or artifact file, the built-in NFTPurchased ABI when empty
	EventName       string       // defaults to NFTPurchased
	MaxBlockRange   uint64       // blocks per fetch
	Confirmations   uint64       // blocks behind the head considered final
}

type purchaseSource struct {
	cfg             Config
	contractAddress common.Address
	event           *abi.Event
	indexed         abi.Arguments
	client          *Client
}

// NewSource creates a ledger source reading the purchase event of one contract
func NewSource(cfg Config, client *Client, fs adapter.FileSystem) (messaging.LedgerSource, error) {
	if !domain.IsValidChain(cfg.ChainID) {
		return nil, fmt.Errorf("unsupported chain: %s", cfg.ChainID)
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address: %s", cfg.ContractAddress)
	}
	if cfg.MaxBlockRange == 0 {
		cfg.MaxBlockRange = DefaultMaxBlockRange
	}

	event, err := LoadEventABI(fs, cfg.ABIPath, cfg.EventName)
	if err != nil {
		return nil, err
	}

	var indexed abi.Arguments
	for _, input := range event.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}

	return &purchaseSource{
		cfg:             cfg,
		contractAddress: common.HexToAddress(cfg.ContractAddress),
		event:           event,
		indexed:         indexed,
		client:          client,
	}, nil
}

// FetchEvents returns the purchase events in [fromBlock, min(safeHead, fromBlock+MaxBlockRange-1)]
func (s *purchaseSource) FetchEvents(ctx context.Context, fromBlock uint64) (*messaging.EventBatch, error) {
	safeHead, ok, err := s.client.SafeHead(ctx, s.cfg.Confirmations)
	if err != nil {
		return nil, err
	}

	batch := &messaging.EventBatch{FromBlock: fromBlock, SafeHead: safeHead}
	if !ok || safeHead < fromBlock {
		return batch, nil
	}

	toBlock := fromBlock + s.cfg.MaxBlockRange - 1
	if toBlock > safeHead {
		toBlock = safeHead
	}
	batch.ToBlock = toBlock

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{s.contractAddress},
		Topics:    [][]common.Hash{{s.event.ID}},
	}

	logs, err := s.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, err
	}

	sort.Slice(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})

	events := make([]domain.PurchaseEvent, 0, len(logs))
	for _, vLog := range logs {
		if vLog.Removed {
			logger.DebugCtx(ctx, "Skipping removed log",
				zap.String("txHash", vLog.TxHash.Hex()),
				zap.Uint64("blockNumber", vLog.BlockNumber))
			continue
		}

		event, err := s.ParseEventLog(vLog)
		if err != nil {
			// A log that matches the topic but cannot be decoded will never decode
			logger.ErrorCtx(ctx, err,
				zap.String("message", "Skipping undecodable purchase log"),
				zap.String("txHash", vLog.TxHash.Hex()),
				zap.Uint64("blockNumber", vLog.BlockNumber),
				zap.Uint("logIndex", vLog.Index))
			continue
		}
		events = append(events, *event)
	}

	batch.Events = events
	batch.Scanned = true

	logger.DebugCtx(ctx, "Fetched purchase events",
		zap.String("contract", s.ContractAddress()),
		zap.Uint64("fromBlock", fromBlock),
		zap.Uint64("toBlock", toBlock),
		zap.Int("count", len(events)))

	return batch, nil
}

// ParseEventLog decodes a purchase log into a purchase event
func (s *purchaseSource) ParseEventLog(vLog types.Log) (*domain.PurchaseEvent, error) {
	if len(vLog.Topics) == 0 || vLog.Topics[0] != s.event.ID {
		return nil, fmt.Errorf("log is not a %s event", s.event.Name)
	}
	if len(vLog.Topics)-1 != len(s.indexed) {
		return nil, fmt.Errorf("invalid %s event: expected %d topics, got %d", s.event.Name, len(s.indexed)+1, len(vLog.Topics))
	}

	values := make(map[string]interface{}, len(s.event.Inputs))
	if err := abi.ParseTopicsIntoMap(values, s.indexed, vLog.Topics[1:]); err != nil {
		return nil, fmt.Errorf("failed to parse indexed inputs: %w", err)
	}
	if len(s.event.Inputs.NonIndexed()) > 0 {
		if err := s.event.Inputs.UnpackIntoMap(values, vLog.Data); err != nil {
			return nil, fmt.Errorf("failed to unpack event data: %w", err)
		}
	}

	tokenID, err := bigValue(values, inputTokenID)
	if err != nil {
		return nil, err
	}
	price, err := bigValue(values, inputPrice)
	if err != nil {
		return nil, err
	}
	buyer, err := addressValue(values, inputBuyer)
	if err != nil {
		return nil, err
	}
	seller, err := addressValue(values, inputSeller)
	if err != nil {
		return nil, err
	}

	return &domain.PurchaseEvent{
		Chain:           s.cfg.ChainID,
		ContractAddress: strings.ToLower(vLog.Address.Hex()),
		TransactionHash: strings.ToLower(vLog.TxHash.Hex()),
		BlockNumber:     vLog.BlockNumber,
		LogIndex:        vLog.Index,
		TokenID:         tokenID.String(),
		BuyerAddress:    buyer,
		SellerAddress:   seller,
		PriceWei:        price,
	}, nil
}

// Chain returns the chain the source reads from
func (s *purchaseSource) Chain() domain.Chain {
	return s.cfg.ChainID
}

// ContractAddress returns the lower-case address of the watched contract
func (s *purchaseSource) ContractAddress() string {
	return strings.ToLower(s.contractAddress.Hex())
}

// Close closes the connection
func (s *purchaseSource) Close() {
	s.client.Close()
}

func bigValue(values map[string]interface{}, name string) (*big.Int, error) {
	v, ok := values[name].(*big.Int)
	if !ok || v == nil {
		return nil, fmt.Errorf("event input %s is missing or not an integer", name)
	}
	return v, nil
}

func addressValue(values map[string]interface{}, name string) (string, error) {
	v, ok := values[name].(common.Address)
	if !ok {
		return "", fmt.Errorf("event input %s is missing or not an address", name)
	}
	return strings.ToLower(v.Hex()), nil
}
