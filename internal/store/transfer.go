package store

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"github.com/ffakenz/eth-indexer/internal/models"
)

// TransferSink persists decoded Transfer elements. Insertion is
// idempotent on (transaction_hash, log_index); at-least-once delivery
// from the subscriber therefore never produces duplicate rows.
type TransferSink struct {
	client *Client
}

// NewTransferSink wraps a Client as a Transfer Sink.
func NewTransferSink(client *Client) *TransferSink {
	return &TransferSink{client: client}
}

// Process persists a single Transfer.
func (s *TransferSink) Process(ctx context.Context, transfer models.Transfer) error {
	const query = `
		INSERT INTO transfers (
			block_number, block_hash, transaction_hash, log_index,
			contract_address, from_address, to_address, amount
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (transaction_hash, log_index) DO NOTHING
	`
	_, err := s.client.Pool().Exec(ctx, query,
		int64(transfer.Block),
		transfer.BlockHash.Bytes(),
		transfer.TransactionHash.Bytes(),
		int32(transfer.LogIndex),
		transfer.ContractAddress.Bytes(),
		transfer.From.Bytes(),
		transfer.To.Bytes(),
		transfer.Amount.Bytes(),
	)
	if err != nil {
		return fmt.Errorf("process transfer: %w", err)
	}
	return nil
}

// ListFrom returns every persisted Transfer at or after fromBlock, in
// block/log-index order, for the select subcommand's dump.
func (s *TransferSink) ListFrom(ctx context.Context, fromBlock uint64) ([]models.Transfer, error) {
	const query = `
		SELECT block_number, block_hash, transaction_hash, log_index,
		       contract_address, from_address, to_address, amount
		FROM transfers
		WHERE block_number >= $1
		ORDER BY block_number ASC, log_index ASC
	`
	rows, err := s.client.Pool().Query(ctx, query, int64(fromBlock))
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []models.Transfer
	for rows.Next() {
		var (
			blockNumber     int64
			blockHash       []byte
			transactionHash []byte
			logIndex        int32
			contractAddress []byte
			fromAddress     []byte
			toAddress       []byte
			amount          []byte
		)
		if err := rows.Scan(&blockNumber, &blockHash, &transactionHash, &logIndex,
			&contractAddress, &fromAddress, &toAddress, &amount); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		transfers = append(transfers, models.Transfer{
			Block:           uint64(blockNumber),
			BlockHash:       common.BytesToHash(blockHash),
			TransactionHash: common.BytesToHash(transactionHash),
			LogIndex:        uint(logIndex),
			ContractAddress: common.BytesToAddress(contractAddress),
			From:            common.BytesToAddress(fromAddress),
			To:              common.BytesToAddress(toAddress),
			Amount:          new(big.Int).SetBytes(amount),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}

	return transfers, nil
}

// ProcessBatch persists a run of Transfers in one transaction. The
// batch is all-or-nothing: a failure on any row rolls back the whole
// run, leaving the caller free to retry the full batch at-least-once.
func (s *TransferSink) ProcessBatch(ctx context.Context, transfers []models.Transfer) error {
	if len(transfers) == 0 {
		return nil
	}

	tx, err := s.client.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("process batch: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO transfers (
			block_number, block_hash, transaction_hash, log_index,
			contract_address, from_address, to_address, amount
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (transaction_hash, log_index) DO NOTHING
	`
	for _, transfer := range transfers {
		batch.Queue(query,
			int64(transfer.Block),
			transfer.BlockHash.Bytes(),
			transfer.TransactionHash.Bytes(),
			int32(transfer.LogIndex),
			transfer.ContractAddress.Bytes(),
			transfer.From.Bytes(),
			transfer.To.Bytes(),
			transfer.Amount.Bytes(),
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range transfers {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("process batch: exec: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("process batch: close: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("process batch: commit: %w", err)
	}
	return nil
}
