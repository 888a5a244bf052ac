package store

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"github.com/ffakenz/eth-indexer/internal/models"
)

// CheckpointStore persists resume markers. Insertion is idempotent on
// (block_number, block_hash); duplicates are silently ignored.
type CheckpointStore struct {
	client *Client
}

// NewCheckpointStore wraps a Client as a Checkpoint Store.
func NewCheckpointStore(client *Client) *CheckpointStore {
	return &CheckpointStore{client: client}
}

// Insert persists a checkpoint. Re-inserting the same
// (block_number, block_hash) pair is a no-op, not an error.
func (s *CheckpointStore) Insert(ctx context.Context, checkpoint models.Checkpoint) error {
	const query = `
		INSERT INTO checkpoints (block_number, block_hash, parent_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (block_number, block_hash) DO NOTHING
	`
	_, err := s.client.Pool().Exec(ctx, query,
		int64(checkpoint.BlockNumber),
		checkpoint.BlockHash.Bytes(),
		checkpoint.ParentHash.Bytes(),
	)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

// GetLast returns the most recently inserted checkpoint, or nil if the
// store is empty.
func (s *CheckpointStore) GetLast(ctx context.Context) (*models.Checkpoint, error) {
	const query = `
		SELECT block_number, block_hash, parent_hash
		FROM checkpoints
		ORDER BY id DESC
		LIMIT 1
	`
	return s.scanOne(ctx, query)
}

// GetByNumber returns the checkpoint for a given block number, if any.
func (s *CheckpointStore) GetByNumber(ctx context.Context, blockNumber uint64) (*models.Checkpoint, error) {
	const query = `
		SELECT block_number, block_hash, parent_hash
		FROM checkpoints
		WHERE block_number = $1
		ORDER BY id DESC
		LIMIT 1
	`
	return s.scanOne(ctx, query, int64(blockNumber))
}

// GetByHash returns the checkpoint for a given block hash, if any.
func (s *CheckpointStore) GetByHash(ctx context.Context, blockHash common.Hash) (*models.Checkpoint, error) {
	const query = `
		SELECT block_number, block_hash, parent_hash
		FROM checkpoints
		WHERE block_hash = $1
		LIMIT 1
	`
	return s.scanOne(ctx, query, blockHash.Bytes())
}

// ListFrom returns every persisted checkpoint at or after fromBlock,
// most recent first, for the select subcommand's dump.
func (s *CheckpointStore) ListFrom(ctx context.Context, fromBlock uint64) ([]models.Checkpoint, error) {
	const query = `
		SELECT block_number, block_hash, parent_hash
		FROM checkpoints
		WHERE block_number >= $1
		ORDER BY block_number DESC
	`
	rows, err := s.client.Pool().Query(ctx, query, int64(fromBlock))
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []models.Checkpoint
	for rows.Next() {
		var (
			blockNumber int64
			blockHash   []byte
			parentHash  []byte
		)
		if err := rows.Scan(&blockNumber, &blockHash, &parentHash); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		checkpoints = append(checkpoints, models.Checkpoint{
			BlockNumber: uint64(blockNumber),
			BlockHash:   common.BytesToHash(blockHash),
			ParentHash:  common.BytesToHash(parentHash),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	return checkpoints, nil
}

func (s *CheckpointStore) scanOne(ctx context.Context, query string, args ...any) (*models.Checkpoint, error) {
	row := s.client.Pool().QueryRow(ctx, query, args...)

	var (
		blockNumber int64
		blockHash   []byte
		parentHash  []byte
	)
	if err := row.Scan(&blockNumber, &blockHash, &parentHash); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan checkpoint: %w", err)
	}

	return &models.Checkpoint{
		BlockNumber: uint64(blockNumber),
		BlockHash:   common.BytesToHash(blockHash),
		ParentHash:  common.BytesToHash(parentHash),
	}, nil
}
