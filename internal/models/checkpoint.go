package models

import "github.com/ethereum/go-ethereum/common"

// Checkpoint is a durable resume marker. (BlockNumber, BlockHash) is
// unique in the store; insertion is idempotent on that pair.
type Checkpoint struct {
	BlockNumber uint64
	BlockHash   common.Hash
	ParentHash  common.Hash
}
