// Package ethnode wraps go-ethereum's RPC client into the capabilities
// the engine depends on: the block lookups state.NodeClient needs to
// mint checkpoints, and the Source capability the gapfiller and
// publisher pull log items through.
package ethnode

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/ffakenz/eth-indexer/internal/state"
)

// Client wraps a single RPC connection to an EVM node.
type Client struct {
	rpc     *ethclient.Client
	chainID *big.Int
	logger  zerolog.Logger
}

// NewClient dials rpcURL and verifies it serves the expected chain.
// A chainID of 0 skips verification: the CLI carries no --chain-id
// flag, so an operator that hasn't set config.toml's "chain.id" gets
// an unverified connection rather than a spurious fatal mismatch
// against an implicit 0.
func NewClient(ctx context.Context, rpcURL string, chainID int64, logger zerolog.Logger) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("connect to rpc endpoint: %w", err)
	}

	actual, err := rpc.ChainID(ctx)
	if err != nil {
		rpc.Close()
		return nil, fmt.Errorf("get chain id: %w", err)
	}

	expected := big.NewInt(chainID)
	if chainID != 0 && actual.Cmp(expected) != 0 {
		rpc.Close()
		return nil, fmt.Errorf("chain id mismatch: expected %d, got %d", chainID, actual)
	}

	logger.Info().Str("chain_id", actual.String()).Str("rpc_url", rpcURL).Msg("ethnode client connected")

	return &Client{
		rpc:     rpc,
		chainID: actual,
		logger:  logger.With().Str("component", "ethnode").Logger(),
	}, nil
}

// GetLatestBlockNumber returns the chain tip.
func (c *Client) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	number, err := c.rpc.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("get latest block number: %w", err)
	}
	return number, nil
}

// GetBlockByNumber satisfies state.NodeClient: it resolves a block
// number into the hash/parent-hash pair State needs to mint a
// checkpoint.
func (c *Client) GetBlockByNumber(ctx context.Context, number uint64) (*state.BlockRef, error) {
	header, err := c.rpc.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		if err == ethereum.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get block %d: %w", number, err)
	}

	return &state.BlockRef{
		Number:     header.Number.Uint64(),
		Hash:       header.Hash(),
		ParentHash: header.ParentHash,
	}, nil
}

// FilterLogs queries for logs matching query.
func (c *Client) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	logs, err := c.rpc.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("filter logs: %w", err)
	}
	return logs, nil
}

// ChainID returns the chain ID this client was verified against.
func (c *Client) ChainID() *big.Int {
	return c.chainID
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.rpc.Close()
	c.logger.Info().Msg("ethnode client closed")
}
