// Package runner provides the generic producer/consumer loop the live
// publisher and subscriber are built from (the gapfiller runs its own
// sequential loop and does not use it): a goroutine that
// repeatedly calls a callback and pushes its result onto a bounded
// channel, cooperatively stopping on a shutdown signal or a closed
// channel.
package runner

import (
	"context"

	"github.com/rs/zerolog"
)

// ProducerFunc produces the next message to publish. It is called
// repeatedly until ctx is cancelled; a returned error stops the
// producer.
type ProducerFunc[T any] func(ctx context.Context) (T, error)

// ConsumerFunc handles a single message pulled off the channel. A
// returned error stops the consumer.
type ConsumerFunc[T any] func(ctx context.Context, message T) error

// RunProducer calls produce in a loop, sending each result on out,
// until ctx is cancelled or produce returns an error. A send blocks
// while out is full and gives way only to ctx cancellation. It always
// closes out before returning.
func RunProducer[T any](ctx context.Context, logger zerolog.Logger, out chan<- T, produce ProducerFunc[T]) error {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("producer stopping: shutdown signal received")
			return nil
		default:
		}

		message, err := produce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case out <- message:
		case <-ctx.Done():
			logger.Debug().Msg("producer stopping: shutdown signal received")
			return nil
		}
	}
}

// RunConsumer pulls messages off in and calls consume on each, until
// ctx is cancelled, in is closed, or consume returns an error.
func RunConsumer[T any](ctx context.Context, logger zerolog.Logger, in <-chan T, consume ConsumerFunc[T]) error {
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("consumer stopping: shutdown signal received")
			return nil
		case message, ok := <-in:
			if !ok {
				logger.Debug().Msg("consumer stopping: channel closed")
				return nil
			}
			if err := consume(ctx, message); err != nil {
				return err
			}
		}
	}
}
