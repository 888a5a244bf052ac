// Package gapfiller drives chunked historical catch-up from the
// resume block to the tip snapshot captured at engine start, feeding
// State batch-wise and dispatching every resulting event through the
// same routine the live subscriber uses.
package gapfiller

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ffakenz/eth-indexer/internal/models"
	"github.com/ffakenz/eth-indexer/internal/state"
	"github.com/ffakenz/eth-indexer/internal/subscriber"
)

// Source fetches a bounded historical range of source items.
type Source[E models.SourceItem] interface {
	Chunk(ctx context.Context, fromBlock, toBlock uint64) ([]E, error)
}

// Config bounds a single gapfiller run.
type Config struct {
	// CheckpointInterval is the backfill cadence: args.backfill_checkpoint_interval
	// if set, otherwise args.checkpoint_interval.
	CheckpointInterval uint64
	// Tip is the chain height snapshotted at engine start. Gapfilling
	// never chases a moving target; it stops here and hands off to
	// the live publisher.
	Tip uint64
}

// Run iterates chunk-by-chunk until State.CurrentBlockNumber reaches
// Tip, dispatching every event the chunk produces through checkpoints
// and sink before requesting the next chunk. On exit, if no
// checkpoint has yet been flushed it flushes one so a restart resumes
// at the tip rather than replaying the whole range again.
func Run[E models.SourceItem, T models.Outcome](
	ctx context.Context,
	logger zerolog.Logger,
	cfg Config,
	s *state.State,
	node state.NodeClient,
	source Source[E],
	decode state.Decoder[E, T],
	checkpoints subscriber.CheckpointStore,
	sink subscriber.Sink[T],
) error {
	log := logger.With().Str("component", "gapfiller").Logger()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		from := s.CurrentBlockNumber() + 1
		if from > cfg.Tip {
			log.Info().Uint64("current_block", s.CurrentBlockNumber()).Msg("gapfill ended")
			break
		}

		chunkTo := saturatingAdd(from, cfg.CheckpointInterval-1)
		if chunkTo > cfg.Tip {
			chunkTo = cfg.Tip
		}

		inputs, err := source.Chunk(ctx, from, chunkTo)
		if err != nil {
			return fmt.Errorf("gapfiller: chunk [%d,%d]: %w", from, chunkTo, err)
		}

		events, err := state.RollForwardBatch(ctx, s, inputs, cfg.CheckpointInterval, node, decode)
		if err != nil {
			return fmt.Errorf("gapfiller: roll forward batch: %w", err)
		}

		if err := subscriber.DispatchAll(ctx, checkpoints, sink, events); err != nil {
			return fmt.Errorf("gapfiller: dispatch: %w", err)
		}

		// A chunk with no matching items must still advance past it:
		// RollForwardBatch only moves current_block_number on a
		// decoded item, so an empty range needs its own forced step to
		// chunkTo or the next iteration recomputes the same [from,
		// chunkTo] range forever.
		boundaryEvents, err := state.AdvanceToBoundary[T](ctx, s, chunkTo, cfg.CheckpointInterval, node)
		if err != nil {
			return fmt.Errorf("gapfiller: advance to chunk boundary: %w", err)
		}
		if err := subscriber.DispatchAll(ctx, checkpoints, sink, boundaryEvents); err != nil {
			return fmt.Errorf("gapfiller: dispatch chunk boundary: %w", err)
		}

		log.Debug().Uint64("from", from).Uint64("to", chunkTo).Msg("gapfill chunk processed")
	}

	if s.CheckpointCounter() == 0 {
		event, err := state.FlushCheckpoint[T](ctx, s, node)
		if err != nil {
			return fmt.Errorf("gapfiller: terminal checkpoint: %w", err)
		}
		if err := subscriber.Dispatch(ctx, checkpoints, sink, event); err != nil {
			return fmt.Errorf("gapfiller: dispatch terminal checkpoint: %w", err)
		}
	}

	return nil
}

func saturatingAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return ^uint64(0)
	}
	return sum
}
