// Package models defines the domain types the engine moves between
// Source, State, Sink and Checkpoint Store.
package models

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// SourceItem is anything a Source can produce. Items without a known
// block number (pending/unmined) are filtered out at the source
// boundary before they ever reach State.
type SourceItem interface {
	BlockNumber() (uint64, bool)
}

// LogItem wraps a go-ethereum log so it satisfies SourceItem and can be
// converted into a domain Element by State.
type LogItem struct {
	types.Log
}

// BlockNumber reports the log's block number. A log from a transaction
// that has not yet been mined carries a zero block hash; it is dropped
// rather than processed, and is re-emitted once the transaction lands
// in a block.
func (l LogItem) BlockNumber() (uint64, bool) {
	if l.BlockHash == (common.Hash{}) {
		return 0, false
	}
	return l.Log.BlockNumber, true
}
