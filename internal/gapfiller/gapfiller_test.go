package gapfiller

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ffakenz/eth-indexer/internal/models"
	"github.com/ffakenz/eth-indexer/internal/state"
)

type stubItem struct {
	block uint64
}

func (s stubItem) BlockNumber() (uint64, bool) {
	return s.block, true
}

type stubElement struct {
	block uint64
}

func (e stubElement) BlockNumber() uint64 {
	return e.block
}

func decodeStub(item stubItem) (stubElement, error) {
	return stubElement{block: item.block}, nil
}

type stubSource struct {
	itemsByBlock map[uint64]stubItem
}

func (s *stubSource) Chunk(_ context.Context, fromBlock, toBlock uint64) ([]stubItem, error) {
	var items []stubItem
	for b := fromBlock; b <= toBlock; b++ {
		if item, ok := s.itemsByBlock[b]; ok {
			items = append(items, item)
		}
	}
	return items, nil
}

type stubNode struct{}

func (stubNode) GetBlockByNumber(_ context.Context, number uint64) (*state.BlockRef, error) {
	return &state.BlockRef{Number: number}, nil
}

type stubCheckpoints struct {
	inserted []models.Checkpoint
}

func (c *stubCheckpoints) Insert(_ context.Context, checkpoint models.Checkpoint) error {
	c.inserted = append(c.inserted, checkpoint)
	return nil
}

type stubSink struct {
	processed []stubElement
}

func (s *stubSink) Process(_ context.Context, element stubElement) error {
	s.processed = append(s.processed, element)
	return nil
}

func (s *stubSink) ProcessBatch(_ context.Context, elements []stubElement) error {
	s.processed = append(s.processed, elements...)
	return nil
}

func TestRun_CatchesUpToTip(t *testing.T) {
	source := &stubSource{itemsByBlock: map[uint64]stubItem{
		1: {block: 1},
		2: {block: 2},
		3: {block: 3},
	}}
	s := state.New(zerolog.Nop(), 0)
	checkpoints := &stubCheckpoints{}
	sink := &stubSink{}

	err := Run[stubItem, stubElement](
		context.Background(),
		zerolog.Nop(),
		Config{CheckpointInterval: 2, Tip: 3},
		s,
		stubNode{},
		source,
		decodeStub,
		checkpoints,
		sink,
	)

	// Chunks are [1,2] then the single-block [3,3]: the trailing chunk
	// still runs even though it is narrower than the cadence, so the
	// live stream starts strictly after the tip.
	require.NoError(t, err)
	require.Equal(t, uint64(3), s.CurrentBlockNumber())
	require.Len(t, sink.processed, 3)
	require.Len(t, checkpoints.inserted, 1)
	require.Equal(t, uint64(2), checkpoints.inserted[0].BlockNumber)
}

func TestRun_IntervalOneCheckpointsEveryBlock(t *testing.T) {
	source := &stubSource{itemsByBlock: map[uint64]stubItem{
		1: {block: 1},
		2: {block: 2},
	}}
	s := state.New(zerolog.Nop(), 0)
	checkpoints := &stubCheckpoints{}
	sink := &stubSink{}

	err := Run[stubItem, stubElement](
		context.Background(),
		zerolog.Nop(),
		Config{CheckpointInterval: 1, Tip: 2},
		s,
		stubNode{},
		source,
		decodeStub,
		checkpoints,
		sink,
	)

	require.NoError(t, err)
	require.Equal(t, uint64(2), s.CurrentBlockNumber())
	require.Len(t, sink.processed, 2)
	require.Len(t, checkpoints.inserted, 2)
	require.Equal(t, uint64(1), checkpoints.inserted[0].BlockNumber)
	require.Equal(t, uint64(2), checkpoints.inserted[1].BlockNumber)
}

func TestRun_EmptyChunkStillAdvancesAndLaterChunksCatchUp(t *testing.T) {
	source := &stubSource{itemsByBlock: map[uint64]stubItem{
		1: {block: 1},
		2: {block: 2},
		5: {block: 5},
		6: {block: 6},
	}}
	s := state.New(zerolog.Nop(), 0)
	checkpoints := &stubCheckpoints{}
	sink := &stubSink{}

	// Chunks are sized by CheckpointInterval (2), so [3,4] is queried
	// and comes back with zero items before [5,6] resumes producing
	// them. Without forcing current_block_number to the chunk boundary
	// on an empty result, the loop would recompute [3,4] forever.
	err := Run[stubItem, stubElement](
		context.Background(),
		zerolog.Nop(),
		Config{CheckpointInterval: 2, Tip: 6},
		s,
		stubNode{},
		source,
		decodeStub,
		checkpoints,
		sink,
	)

	require.NoError(t, err)
	require.Equal(t, uint64(6), s.CurrentBlockNumber())
	require.Len(t, sink.processed, 4)
	require.Len(t, checkpoints.inserted, 2)
	require.Equal(t, uint64(2), checkpoints.inserted[0].BlockNumber)
	require.Equal(t, uint64(5), checkpoints.inserted[1].BlockNumber)
}

func TestRun_AlreadyAtTipOnlyFlushesTerminalCheckpoint(t *testing.T) {
	source := &stubSource{itemsByBlock: map[uint64]stubItem{}}
	s := state.New(zerolog.Nop(), 5)
	checkpoints := &stubCheckpoints{}
	sink := &stubSink{}

	err := Run[stubItem, stubElement](
		context.Background(),
		zerolog.Nop(),
		Config{CheckpointInterval: 2, Tip: 5},
		s,
		stubNode{},
		source,
		decodeStub,
		checkpoints,
		sink,
	)

	require.NoError(t, err)
	require.Empty(t, sink.processed)
	require.Len(t, checkpoints.inserted, 1)
}
