// Package state implements the roll-forward state machine described in
// the engine design: it turns a linear sequence of source items into a
// linear sequence of models.Event, interleaving checkpoints at a
// configurable cadence.
//
// Reorgs are explicitly out of scope (see engine design notes). A
// source item whose decoded block number is lower than the state's
// current block number is treated as an invariant violation, logged at
// error level, and dropped as a Skip rather than rolled back — the
// state machine assumes finalized input.
package state

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ffakenz/eth-indexer/internal/models"
)

// BlockRef is the minimal chain-block information State needs to mint
// a checkpoint: its own hash and its parent's.
type BlockRef struct {
	Number     uint64
	Hash       [32]byte
	ParentHash [32]byte
}

// NodeClient is the capability State uses to resolve a block number
// into a hash when flushing a checkpoint.
type NodeClient interface {
	GetBlockByNumber(ctx context.Context, number uint64) (*BlockRef, error)
}

// LastCheckpoint is the capability State uses during resume resolution.
type LastCheckpoint interface {
	GetLast(ctx context.Context) (*models.Checkpoint, error)
}

// Decoder fallibly converts a source item into a domain element. A
// conversion failure is not fatal: it is surfaced as Skip.
type Decoder[E models.SourceItem, T models.Outcome] func(E) (T, error)

// State tracks block progress for a single active pipeline (gapfiller,
// then the live publisher). It is never touched by the subscriber.
type State struct {
	logger            zerolog.Logger
	currentBlock      uint64
	blockCounter      uint64
	checkpointCounter uint64
}

// New constructs a State positioned at the given resume block.
func New(logger zerolog.Logger, resumeBlock uint64) *State {
	return &State{
		logger:       logger.With().Str("component", "state").Logger(),
		currentBlock: resumeBlock,
	}
}

// ResolveResumeBlock picks the block a run starts from: an explicit
// from_block wins; otherwise the last persisted checkpoint; otherwise
// the current chain tip. A fresh install therefore starts at the tip
// rather than replaying all of history.
func ResolveResumeBlock(ctx context.Context, fromBlock *uint64, checkpoints LastCheckpoint, tip uint64) (uint64, error) {
	if fromBlock != nil {
		return *fromBlock, nil
	}

	last, err := checkpoints.GetLast(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolve resume block: %w", err)
	}
	if last != nil {
		return last.BlockNumber, nil
	}

	return tip, nil
}

// CurrentBlockNumber returns the block State is positioned at.
func (s *State) CurrentBlockNumber() uint64 {
	return s.currentBlock
}

// CheckpointCounter returns the number of checkpoints flushed so far.
func (s *State) CheckpointCounter() uint64 {
	return s.checkpointCounter
}

// BlockCounter returns the number of distinct advancing blocks seen
// since the last flushed checkpoint.
func (s *State) BlockCounter() uint64 {
	return s.blockCounter
}

// FlushCheckpoint looks up the current block and emits a Checkpoint
// event for it, resetting the block counter. If the node no longer
// has the block (rare, transient RPC gap) it emits Skip instead of
// failing the pipeline.
func FlushCheckpoint[T models.Outcome](ctx context.Context, s *State, node NodeClient) (models.Event[T], error) {
	block, err := node.GetBlockByNumber(ctx, s.currentBlock)
	if err != nil {
		return models.Event[T]{}, fmt.Errorf("flush checkpoint: %w", err)
	}
	if block == nil {
		s.logger.Warn().Uint64("block", s.currentBlock).Msg("checkpoint block not found, skipping")
		return models.SkipEvent[T](), nil
	}

	s.checkpointCounter++
	s.blockCounter = 0

	checkpoint := models.Checkpoint{
		BlockNumber: block.Number,
		BlockHash:   block.Hash,
		ParentHash:  block.ParentHash,
	}
	s.logger.Info().Uint64("block", block.Number).Msg("flushing checkpoint")

	return models.CheckpointEvent[T](checkpoint), nil
}

// RollForward is the single-item transition described in the engine
// design: decode, then either accumulate within the current block or
// advance to a new one, flushing a checkpoint first if the cadence has
// been reached.
func RollForward[E models.SourceItem, T models.Outcome](
	ctx context.Context,
	s *State,
	input E,
	checkpointInterval uint64,
	node NodeClient,
	decode Decoder[E, T],
) (models.Events[T], error) {
	t, err := decode(input)
	if err != nil {
		s.logger.Error().Err(err).Msg("skip: failed to convert sourced input")
		return models.Events[T]{models.SkipEvent[T]()}, nil
	}

	blockNumber := t.BlockNumber()

	if blockNumber == s.currentBlock {
		return models.Events[T]{models.ElementEvent(t)}, nil
	}

	if blockNumber < s.currentBlock {
		s.logger.Error().
			Uint64("element_block", blockNumber).
			Uint64("current_block", s.currentBlock).
			Msg("out-of-order block number observed; reorgs are not handled, dropping element")
		return models.Events[T]{models.SkipEvent[T]()}, nil
	}

	s.currentBlock = blockNumber
	s.blockCounter++

	elementEvent := models.ElementEvent(t)

	if s.blockCounter != checkpointInterval {
		return models.Events[T]{elementEvent}, nil
	}

	checkpointEvent, err := FlushCheckpoint[T](ctx, s, node)
	if err != nil {
		return nil, err
	}

	return models.Events[T]{checkpointEvent, elementEvent}, nil
}

// RollForwardBatch applies RollForward to each input in order, then
// runs the batching rewrite over the concatenated event list.
func RollForwardBatch[E models.SourceItem, T models.Outcome](
	ctx context.Context,
	s *State,
	inputs []E,
	checkpointInterval uint64,
	node NodeClient,
	decode Decoder[E, T],
) (models.Events[T], error) {
	var all models.Events[T]

	for _, input := range inputs {
		events, err := RollForward(ctx, s, input, checkpointInterval, node, decode)
		if err != nil {
			return nil, err
		}
		all = append(all, events...)
	}

	return models.BatchEvents(all), nil
}

// AdvanceToBoundary force-advances State to blockNumber when nothing
// in the caller's chunk did — a range with zero matching items still
// counts as one distinct advancing block, the same accounting
// RollForward applies per decoded item, so cadence and progress both
// keep moving even when a queried range produced no elements. It is a
// no-op if State is already at or past blockNumber.
func AdvanceToBoundary[T models.Outcome](ctx context.Context, s *State, blockNumber, checkpointInterval uint64, node NodeClient) (models.Events[T], error) {
	if blockNumber <= s.currentBlock {
		return nil, nil
	}

	s.currentBlock = blockNumber
	s.blockCounter++

	if s.blockCounter != checkpointInterval {
		return nil, nil
	}

	checkpointEvent, err := FlushCheckpoint[T](ctx, s, node)
	if err != nil {
		return nil, err
	}

	return models.Events[T]{checkpointEvent}, nil
}
