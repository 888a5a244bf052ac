package models

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

func validTransferLog() types.Log {
	return types.Log{
		Address: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Topics: []common.Hash{
			TransferTopic,
			common.BytesToHash(common.HexToAddress("0x2222222222222222222222222222222222222222").Bytes()),
			common.BytesToHash(common.HexToAddress("0x3333333333333333333333333333333333333333").Bytes()),
		},
		Data:        common.LeftPadBytes(big.NewInt(42).Bytes(), 32),
		BlockNumber: 100,
		BlockHash:   common.HexToHash("0xabc"),
		TxHash:      common.HexToHash("0xdef"),
		Index:       3,
	}
}

func TestDecodeTransfer_Valid(t *testing.T) {
	log := validTransferLog()

	transfer, err := DecodeTransfer(LogItem{Log: log})
	require.NoError(t, err)

	require.Equal(t, uint64(100), transfer.Block)
	require.Equal(t, common.HexToAddress("0x2222222222222222222222222222222222222222"), transfer.From)
	require.Equal(t, common.HexToAddress("0x3333333333333333333333333333333333333333"), transfer.To)
	require.Equal(t, big.NewInt(42), transfer.Amount)
	require.Equal(t, uint(3), transfer.LogIndex)
}

func TestDecodeTransfer_WrongTopicCount(t *testing.T) {
	log := validTransferLog()
	log.Topics = log.Topics[:2]

	_, err := DecodeTransfer(LogItem{Log: log})
	require.Error(t, err)
}

func TestDecodeTransfer_WrongTopic0(t *testing.T) {
	log := validTransferLog()
	log.Topics[0] = common.HexToHash("0xdeadbeef")

	_, err := DecodeTransfer(LogItem{Log: log})
	require.Error(t, err)
}

func TestDecodeTransfer_ShortData(t *testing.T) {
	log := validTransferLog()
	log.Data = []byte{1, 2, 3}

	_, err := DecodeTransfer(LogItem{Log: log})
	require.Error(t, err)
}

func TestLogItem_BlockNumber_Pending(t *testing.T) {
	item := LogItem{Log: types.Log{BlockHash: common.Hash{}}}

	_, ok := item.BlockNumber()
	require.False(t, ok)
}

func TestLogItem_BlockNumber_Mined(t *testing.T) {
	item := LogItem{Log: types.Log{BlockHash: common.HexToHash("0xabc"), BlockNumber: 55}}

	n, ok := item.BlockNumber()
	require.True(t, ok)
	require.Equal(t, uint64(55), n)
}
