// Package notify publishes a best-effort side-channel notification for
// each checkpoint and batch the subscriber dispatches. It is never on
// the at-least-once delivery path: a publish failure is logged and
// swallowed, never returned to the caller, so a flaky NATS connection
// cannot stall indexing.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

const (
	streamName           = "EVENTS"
	streamSubjectPattern = "EVENTS.*"
	streamCreateTimeout  = 10 * time.Second
	duplicateWindow      = 20 * time.Minute
)

// Notifier publishes checkpoint and batch notifications to NATS
// JetStream subjects EVENTS.checkpoint and EVENTS.transfer.
type Notifier struct {
	js     jetstream.JetStream
	nc     *nats.Conn
	logger zerolog.Logger
}

// New connects to NATS and ensures the EVENTS stream exists. A nil
// Notifier is a valid, inert value: Notify* become no-ops on it, so
// the engine can run with notifications disabled entirely.
func New(natsURL string, persistDuration time.Duration, logger zerolog.Logger) (*Notifier, error) {
	if natsURL == "" {
		return nil, nil
	}

	nc, err := nats.Connect(natsURL,
		nats.Name("eth-indexer"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Error().Err(err).Msg("notify: nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info().Msg("notify: nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("notify: connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("notify: create jetstream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), streamCreateTimeout)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       streamName,
		Subjects:   []string{streamSubjectPattern},
		MaxAge:     persistDuration,
		Storage:    jetstream.FileStorage,
		Duplicates: duplicateWindow,
		Retention:  jetstream.LimitsPolicy,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("notify: create stream: %w", err)
	}

	logger.Info().Str("stream", streamName).Msg("notify: initialized")

	return &Notifier{js: js, nc: nc, logger: logger.With().Str("component", "notify").Logger()}, nil
}

// NotifyCheckpoint publishes a checkpoint notification. Failures are
// logged and swallowed.
func (n *Notifier) NotifyCheckpoint(ctx context.Context, blockNumber uint64, blockHash string) {
	if n == nil {
		return
	}
	n.publish(ctx, "EVENTS.checkpoint", fmt.Sprintf("checkpoint-%d", blockNumber), map[string]any{
		"block_number": blockNumber,
		"block_hash":   blockHash,
	})
}

// NotifyBatch publishes a notification summarizing a dispatched batch
// of decoded elements. Failures are logged and swallowed.
func (n *Notifier) NotifyBatch(ctx context.Context, kind string, count int, firstBlock, lastBlock uint64) {
	if n == nil {
		return
	}
	n.publish(ctx, "EVENTS."+kind, fmt.Sprintf("%s-%d-%d", kind, firstBlock, lastBlock), map[string]any{
		"kind":        kind,
		"count":       count,
		"first_block": firstBlock,
		"last_block":  lastBlock,
	})
}

func (n *Notifier) publish(ctx context.Context, subject, msgID string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error().Err(err).Msg("notify: marshal payload")
		return
	}

	if _, err := n.js.Publish(ctx, subject, data, jetstream.WithMsgID(msgID)); err != nil {
		n.logger.Warn().Err(err).Str("subject", subject).Msg("notify: publish failed, continuing")
	}
}

// Healthy reports whether the NATS connection is currently connected.
func (n *Notifier) Healthy() bool {
	return n != nil && n.nc != nil && n.nc.IsConnected()
}

// Close closes the NATS connection. Safe to call on a nil Notifier.
func (n *Notifier) Close() {
	if n == nil || n.nc == nil {
		return
	}
	n.nc.Close()
	n.logger.Info().Msg("notify: closed")
}
