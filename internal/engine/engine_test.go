package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArgs_BackfillInterval_FallsBackToCheckpointInterval(t *testing.T) {
	a := Args{CheckpointInterval: 50}
	require.Equal(t, uint64(50), a.backfillInterval())
}

func TestArgs_BackfillInterval_ExplicitOverrideWins(t *testing.T) {
	override := uint64(500)
	a := Args{CheckpointInterval: 50, BackfillCheckpointInterval: &override}
	require.Equal(t, uint64(500), a.backfillInterval())
}

func TestArgs_ChannelCapacity_FinalityDominant(t *testing.T) {
	a := Args{CheckpointInterval: 5}
	require.Equal(t, finality*avgEventsPerBlock*burst, a.channelCapacity())
}

func TestArgs_ChannelCapacity_CheckpointIntervalDominant(t *testing.T) {
	a := Args{CheckpointInterval: 1000}
	require.Equal(t, 1000*avgEventsPerBlock*burst, a.channelCapacity())
}
