package subscriber

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ffakenz/eth-indexer/internal/models"
)

type fakeOutcome struct {
	block uint64
}

func (f fakeOutcome) BlockNumber() uint64 {
	return f.block
}

type fakeCheckpoints struct {
	inserted []models.Checkpoint
	err      error
}

func (f *fakeCheckpoints) Insert(_ context.Context, checkpoint models.Checkpoint) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, checkpoint)
	return nil
}

type fakeSink struct {
	processed       []fakeOutcome
	batches         [][]fakeOutcome
	processErr      error
	processBatchErr error
}

func (f *fakeSink) Process(_ context.Context, element fakeOutcome) error {
	if f.processErr != nil {
		return f.processErr
	}
	f.processed = append(f.processed, element)
	return nil
}

func (f *fakeSink) ProcessBatch(_ context.Context, elements []fakeOutcome) error {
	if f.processBatchErr != nil {
		return f.processBatchErr
	}
	f.batches = append(f.batches, elements)
	return nil
}

func TestDispatch_Skip(t *testing.T) {
	sink := &fakeSink{}
	checkpoints := &fakeCheckpoints{}

	err := Dispatch(context.Background(), checkpoints, sink, models.SkipEvent[fakeOutcome]())
	require.NoError(t, err)
	require.Empty(t, sink.processed)
	require.Empty(t, checkpoints.inserted)
}

func TestDispatch_Checkpoint(t *testing.T) {
	sink := &fakeSink{}
	checkpoints := &fakeCheckpoints{}
	checkpoint := models.Checkpoint{BlockNumber: 5}

	err := Dispatch(context.Background(), checkpoints, sink, models.CheckpointEvent[fakeOutcome](checkpoint))
	require.NoError(t, err)
	require.Equal(t, []models.Checkpoint{checkpoint}, checkpoints.inserted)
}

func TestDispatch_Element(t *testing.T) {
	sink := &fakeSink{}
	checkpoints := &fakeCheckpoints{}

	err := Dispatch(context.Background(), checkpoints, sink, models.ElementEvent(fakeOutcome{block: 1}))
	require.NoError(t, err)
	require.Equal(t, []fakeOutcome{{block: 1}}, sink.processed)
}

func TestDispatch_ManyEmptyIsNoop(t *testing.T) {
	sink := &fakeSink{}
	checkpoints := &fakeCheckpoints{}

	err := Dispatch(context.Background(), checkpoints, sink, models.ManyEvent[fakeOutcome](nil))
	require.NoError(t, err)
	require.Empty(t, sink.processed)
	require.Empty(t, sink.batches)
}

func TestDispatch_ManySingleUsesProcess(t *testing.T) {
	sink := &fakeSink{}
	checkpoints := &fakeCheckpoints{}

	err := Dispatch(context.Background(), checkpoints, sink, models.ManyEvent([]fakeOutcome{{block: 2}}))
	require.NoError(t, err)
	require.Equal(t, []fakeOutcome{{block: 2}}, sink.processed)
	require.Empty(t, sink.batches)
}

func TestDispatch_ManyMultipleUsesProcessBatch(t *testing.T) {
	sink := &fakeSink{}
	checkpoints := &fakeCheckpoints{}
	elements := []fakeOutcome{{block: 2}, {block: 3}}

	err := Dispatch(context.Background(), checkpoints, sink, models.ManyEvent(elements))
	require.NoError(t, err)
	require.Equal(t, [][]fakeOutcome{elements}, sink.batches)
	require.Empty(t, sink.processed)
}

func TestDispatchAll_StopsAtFirstError(t *testing.T) {
	sink := &fakeSink{processErr: errors.New("boom")}
	checkpoints := &fakeCheckpoints{}

	events := models.Events[fakeOutcome]{
		models.ElementEvent(fakeOutcome{block: 1}),
		models.ElementEvent(fakeOutcome{block: 2}),
	}

	err := DispatchAll(context.Background(), checkpoints, sink, events)
	require.Error(t, err)
	require.Len(t, sink.processed, 0)
}
