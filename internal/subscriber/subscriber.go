// Package subscriber implements the consume-one-outcome dispatch
// shared by the live subscriber and the gapfiller: it drains a batch
// of decoded events and routes each to the checkpoint store or the
// sink.
package subscriber

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ffakenz/eth-indexer/internal/models"
	"github.com/ffakenz/eth-indexer/internal/runner"
)

// CheckpointStore is the capability events are checkpointed through.
type CheckpointStore interface {
	Insert(ctx context.Context, checkpoint models.Checkpoint) error
}

// Sink is the capability decoded elements are persisted through.
type Sink[T models.Outcome] interface {
	Process(ctx context.Context, element T) error
	ProcessBatch(ctx context.Context, elements []T) error
}

// Dispatch implements consume_event_outcome: a single-event dispatch
// to the checkpoint store or the sink. Skip is a no-op. A Many event
// with zero elements is a no-op; one element takes the single-element
// path; more than one takes the batch path.
func Dispatch[T models.Outcome](ctx context.Context, checkpoints CheckpointStore, sink Sink[T], event models.Event[T]) error {
	switch event.Kind {
	case models.EventSkip:
		return nil
	case models.EventCheckpoint:
		if err := checkpoints.Insert(ctx, event.Checkpoint); err != nil {
			return fmt.Errorf("dispatch checkpoint: %w", err)
		}
		return nil
	case models.EventElement:
		if err := sink.Process(ctx, event.Element); err != nil {
			return fmt.Errorf("dispatch element: %w", err)
		}
		return nil
	case models.EventMany:
		switch len(event.Elements) {
		case 0:
			return nil
		case 1:
			if err := sink.Process(ctx, event.Elements[0]); err != nil {
				return fmt.Errorf("dispatch many: %w", err)
			}
			return nil
		default:
			if err := sink.ProcessBatch(ctx, event.Elements); err != nil {
				return fmt.Errorf("dispatch many: %w", err)
			}
			return nil
		}
	default:
		return fmt.Errorf("dispatch: unknown event kind %v", event.Kind)
	}
}

// DispatchAll runs Dispatch over an ordered batch of events, in order,
// stopping at the first error.
func DispatchAll[T models.Outcome](ctx context.Context, checkpoints CheckpointStore, sink Sink[T], events models.Events[T]) error {
	for _, event := range events {
		if err := Dispatch(ctx, checkpoints, sink, event); err != nil {
			return err
		}
	}
	return nil
}

// Run drains the live channel, dispatching every batch in order. Any
// dispatch error stops the subscriber; the caller is expected to
// cancel the shared context so the publisher also stops.
func Run[T models.Outcome](ctx context.Context, logger zerolog.Logger, in <-chan models.Events[T], checkpoints CheckpointStore, sink Sink[T]) error {
	log := logger.With().Str("component", "subscriber").Logger()

	return runner.RunConsumer(ctx, log, in, func(ctx context.Context, events models.Events[T]) error {
		// Writes are detached from cancellation so a shutdown lets the
		// batch already in hand finish instead of aborting it mid-write.
		return DispatchAll(context.WithoutCancel(ctx), checkpoints, sink, events)
	})
}
