// Package publisher implements the live producer: it pulls items off
// a lazy, bounded, polling source stream, advances State one item at
// a time, and emits the resulting events on a bounded channel for the
// subscriber to drain.
package publisher

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ffakenz/eth-indexer/internal/models"
	"github.com/ffakenz/eth-indexer/internal/runner"
	"github.com/ffakenz/eth-indexer/internal/state"
)

// Run drains items from the source stream, advancing the shared State
// under lock and sending the resulting events on out. Sending blocks
// if out is full: backpressure lands on the publisher, nothing is
// dropped. End-of-stream or a stream error is fatal and stops the
// producer; out is closed so the subscriber observes the end.
func Run[E models.SourceItem, T models.Outcome](
	ctx context.Context,
	logger zerolog.Logger,
	s *state.State,
	node state.NodeClient,
	checkpointInterval uint64,
	items <-chan E,
	streamErrs <-chan error,
	decode state.Decoder[E, T],
	out chan<- models.Events[T],
) error {
	log := logger.With().Str("component", "publisher").Logger()

	return runner.RunProducer(ctx, log, out, func(ctx context.Context) (models.Events[T], error) {
		select {
		case input, ok := <-items:
			if !ok {
				log.Error().Msg("stream ended")
				return nil, fmt.Errorf("publisher: stream ended")
			}
			return state.RollForward(ctx, s, input, checkpointInterval, node, decode)
		case err := <-streamErrs:
			if err != nil {
				return nil, fmt.Errorf("publisher: stream error: %w", err)
			}
			return nil, fmt.Errorf("publisher: stream ended")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}
