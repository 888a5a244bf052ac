package ethnode

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ffakenz/eth-indexer/internal/models"
)

// ChunkFilter bounds a single historical log query.
type ChunkFilter struct {
	Addresses []common.Address
	Topic     common.Hash
	FromBlock uint64
	ToBlock   uint64
}

// StreamFilter bounds a live polling log query.
type StreamFilter struct {
	Addresses    []common.Address
	Topic        common.Hash
	FromBlock    uint64
	PollInterval time.Duration
}

// Source adapts a Client into the engine's chunk/stream capability.
// Logs from transactions that have not yet been mined carry no block
// hash; both chunk and stream drop them at this boundary rather than
// let them reach the state machine, matching the semantics of a
// transaction's logs being re-emitted once it lands in a block.
type Source struct {
	client *Client
}

// NewSource wraps a Client as a Source.
func NewSource(client *Client) *Source {
	return &Source{client: client}
}

// Chunk fetches a bounded historical range of logs, ordered by the
// node, and filters out any without a confirmed block number.
func (s *Source) Chunk(ctx context.Context, filter ChunkFilter) ([]models.LogItem, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(filter.FromBlock),
		ToBlock:   new(big.Int).SetUint64(filter.ToBlock),
		Addresses: filter.Addresses,
		Topics:    [][]common.Hash{{filter.Topic}},
	}

	logs, err := s.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}

	items := make([]models.LogItem, 0, len(logs))
	for _, log := range logs {
		item := models.LogItem{Log: log}
		if _, ok := item.BlockNumber(); ok {
			items = append(items, item)
		}
	}

	return items, nil
}

// Stream polls for new logs from FromBlock onward at PollInterval,
// sending confirmed items on the returned channel until ctx is
// cancelled. The channel is closed on cancellation or fatal error.
func (s *Source) Stream(ctx context.Context, filter StreamFilter) (<-chan models.LogItem, <-chan error) {
	items := make(chan models.LogItem)
	errs := make(chan error, 1)

	go func() {
		defer close(items)
		defer close(errs)

		next := filter.FromBlock
		ticker := time.NewTicker(filter.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tip, err := s.client.GetLatestBlockNumber(ctx)
				if err != nil {
					errs <- fmt.Errorf("stream: get latest block number: %w", err)
					return
				}
				if tip < next {
					continue
				}

				chunked, err := s.Chunk(ctx, ChunkFilter{
					Addresses: filter.Addresses,
					Topic:     filter.Topic,
					FromBlock: next,
					ToBlock:   tip,
				})
				if err != nil {
					errs <- fmt.Errorf("stream: %w", err)
					return
				}

				for _, item := range chunked {
					select {
					case items <- item:
					case <-ctx.Done():
						return
					}
				}

				next = tip + 1
			}
		}
	}()

	return items, errs
}
