package models

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Outcome is the contract a decoded domain element must satisfy so
// State can track progress by it.
type Outcome interface {
	BlockNumber() uint64
}

// Transfer is the decoded ERC20 Transfer(address,address,uint256) event.
// Its natural uniqueness key is (TransactionHash, LogIndex).
type Transfer struct {
	Block           uint64
	BlockHash       common.Hash
	TransactionHash common.Hash
	LogIndex        uint
	ContractAddress common.Address
	From            common.Address
	To              common.Address
	Amount          *big.Int
}

// BlockNumber satisfies Outcome.
func (t Transfer) BlockNumber() uint64 {
	return t.Block
}

// TransferSig is the canonical signature for the Transfer event kind
// recognized by the CLI's --event flag.
const TransferSig = "Transfer(address,address,uint256)"

// TransferTopic is the keccak256 topic hash for TransferSig.
var TransferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// DecodeTransfer converts a raw log into a Transfer. It fails on any
// log that does not structurally match the Transfer event shape,
// which State treats as a Skip rather than a fatal error.
func DecodeTransfer(item LogItem) (Transfer, error) {
	log := item.Log
	if len(log.Topics) != 3 {
		return Transfer{}, fmt.Errorf("transfer: expected 3 topics, got %d", len(log.Topics))
	}
	if log.Topics[0] != TransferTopic {
		return Transfer{}, fmt.Errorf("transfer: unexpected topic0 %s", log.Topics[0].Hex())
	}
	if len(log.Data) < 32 {
		return Transfer{}, fmt.Errorf("transfer: expected 32 bytes of data, got %d", len(log.Data))
	}

	from := common.BytesToAddress(log.Topics[1].Bytes())
	to := common.BytesToAddress(log.Topics[2].Bytes())
	amount := new(big.Int).SetBytes(log.Data[0:32])

	return Transfer{
		Block:           log.BlockNumber,
		BlockHash:       log.BlockHash,
		TransactionHash: log.TxHash,
		LogIndex:        log.Index,
		ContractAddress: log.Address,
		From:            from,
		To:              to,
		Amount:          amount,
	}, nil
}
