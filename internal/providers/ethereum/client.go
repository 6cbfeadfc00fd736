package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/feral-file/ff-marketplace-sync/internal/adapter"
	"github.com/feral-file/ff-marketplace-sync/internal/domain"
	"github.com/feral-file/ff-marketplace-sync/internal/logger"
)

// requestTimeout bounds a single round of log fetching
const requestTimeout = time.Minute

// Client is a reconnecting JSON-RPC client for reading contract logs.
// A failed call drops the connection so the next call dials again.
type Client struct {
	rpcURL  string
	dialer  adapter.EthClientDialer
	limiter *rate.Limiter

	mu     sync.Mutex
	client adapter.EthClient
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithRateLimit caps the JSON-RPC calls per second, zero or less means unlimited
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), max(1, int(requestsPerSecond)))
		}
	}
}

// NewClient creates a client that dials rpcURL lazily on first use
func NewClient(rpcURL string, dialer adapter.EthClientDialer, opts ...ClientOption) *Client {
	c := &Client{
		rpcURL:  rpcURL,
		dialer:  dialer,
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// conn returns the live connection, dialing if needed
func (c *Client) conn(ctx context.Context) (adapter.EthClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	client, err := c.dialer.Dial(ctx, c.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to dial ethereum node: %w", domain.ErrConnection, err)
	}
	c.client = client
	logger.InfoCtx(ctx, "Connected to ethereum node")

	return client, nil
}

// reset drops the connection after a failed call
func (c *Client) reset(client adapter.EthClient) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil || c.client != client {
		return
	}
	c.client.Close()
	c.client = nil
}

// SafeHead returns the latest block number minus the number of confirmations.
// ok is false when the chain is shorter than the confirmation depth.
func (c *Client) SafeHead(ctx context.Context, confirmations uint64) (uint64, bool, error) {
	client, err := c.conn(ctx)
	if err != nil {
		return 0, false, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, false, err
	}
	latest, err := client.BlockNumber(ctx)
	if err != nil {
		c.reset(client)
		return 0, false, fmt.Errorf("%w: failed to get latest block: %w", domain.ErrConnection, err)
	}

	if latest < confirmations {
		return 0, false, nil
	}
	return latest - confirmations, true, nil
}

// FilterLogs returns the logs matching query over its whole block range.
// Providers that reject large ranges are queried again with a halved step.
func (c *Client) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	if query.FromBlock == nil || query.ToBlock == nil {
		return nil, fmt.Errorf("%w: filter query requires a bounded block range", domain.ErrInvalidInput)
	}

	client, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	stepSize := new(big.Int).Sub(query.ToBlock, query.FromBlock).Uint64() + 1
	logs, err := c.getLogsWithRetry(timeoutCtx, client, query, stepSize)
	if err != nil {
		c.reset(client)
		return nil, fmt.Errorf("%w: failed to get logs for range %d-%d: %w",
			domain.ErrConnection, query.FromBlock.Uint64(), query.ToBlock.Uint64(), err)
	}

	return logs, nil
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return
	}
	c.client.Close()
	c.client = nil
	logger.Info("Ethereum connection closed")
}

// getLogsWithRetry processes the range from query.FromBlock to query.ToBlock in chunks,
// halving the chunk whenever the provider reports too many results
func (c *Client) getLogsWithRetry(ctx context.Context, client adapter.EthClient, query ethereum.FilterQuery, stepSize uint64) ([]types.Log, error) {
	currentStepSize := stepSize

	var allLogs []types.Log
	currentFrom := new(big.Int).Set(query.FromBlock)

	for currentFrom.Cmp(query.ToBlock) <= 0 {
		currentTo := new(big.Int).Add(currentFrom, new(big.Int).SetUint64(currentStepSize-1))
		if currentTo.Cmp(query.ToBlock) > 0 {
			currentTo.Set(query.ToBlock)
		}

		queryCopy := query
		queryCopy.FromBlock = new(big.Int).Set(currentFrom)
		queryCopy.ToBlock = new(big.Int).Set(currentTo)

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		logs, err := client.FilterLogs(ctx, queryCopy)
		if err == nil {
			allLogs = append(allLogs, logs...)
			currentFrom.SetUint64(currentTo.Uint64() + 1)
			continue
		}

		if !isTooManyResultsError(err) || currentStepSize == 1 {
			return nil, err
		}

		currentStepSize = currentStepSize / 2

		logger.Warn("Too many results, reducing step size",
			zap.Uint64("oldStepSize", currentStepSize*2),
			zap.Uint64("newStepSize", currentStepSize),
			zap.Uint64("fromBlock", currentFrom.Uint64()),
			zap.Uint64("toBlock", currentTo.Uint64()))
	}

	return allLogs, nil
}

// isTooManyResultsError checks if the error is related to too many results
func isTooManyResultsError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "query returned more than 10000 results") ||
		strings.Contains(errStr, "query timeout exceeded") ||
		strings.Contains(errStr, "too many results") ||
		strings.Contains(errStr, "exceeded maximum") ||
		strings.Contains(errStr, "block range is too wide")
}
