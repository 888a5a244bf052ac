// Package engine owns the indexer's lifecycle: it resolves the
// starting block, runs the gapfiller to completion against a
// snapshotted tip, then spawns the live publisher and subscriber and
// waits for either a shutdown request or a fatal pipeline error.
//
// Shutdown is cooperative: cancelling the run context fans out to
// both the publisher (which stops pulling from the stream) and the
// subscriber (which stops draining the channel); each exits its
// select loop at the next suspension point, and in-flight writes run
// to completion before the goroutines join.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/ffakenz/eth-indexer/internal/ethnode"
	"github.com/ffakenz/eth-indexer/internal/gapfiller"
	"github.com/ffakenz/eth-indexer/internal/models"
	"github.com/ffakenz/eth-indexer/internal/notify"
	"github.com/ffakenz/eth-indexer/internal/publisher"
	"github.com/ffakenz/eth-indexer/internal/state"
	"github.com/ffakenz/eth-indexer/internal/store"
	"github.com/ffakenz/eth-indexer/internal/subscriber"
)

const (
	// finality is the conservative lower bound on the channel sizing
	// formula: at least this many blocks' worth of events must fit in
	// flight before backpressure engages.
	finality = 12
	// avgEventsPerBlock estimates the average number of decoded
	// elements per block, used only to size the channel.
	avgEventsPerBlock = 50
	// burst multiplies the base capacity to absorb short spikes above
	// the average without blocking the publisher.
	burst = 2
)

var (
	blocksBehind = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eth_indexer_blocks_behind",
		Help: "Difference between the snapshotted tip and the current block number.",
	})

	currentBlockNumber = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eth_indexer_current_block_number",
		Help: "Block number State is currently positioned at.",
	})

	checkpointCounterMetric = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eth_indexer_checkpoint_counter",
		Help: "Number of checkpoints flushed since State was constructed.",
	})

	eventsEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eth_indexer_events_emitted_total",
		Help: "Total number of events dispatched, by kind.",
	}, []string{"kind"})

	producerErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eth_indexer_producer_errors_total",
		Help: "Total number of fatal publisher errors.",
	})

	consumerErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eth_indexer_consumer_errors_total",
		Help: "Total number of fatal subscriber errors.",
	})
)

// Args bundles the arguments the engine resolves into a running
// pipeline. It mirrors the CLI's engine subcommand flags directly.
type Args struct {
	Addresses                  []common.Address
	Topic                      common.Hash
	FromBlock                  *uint64
	PollInterval               time.Duration
	CheckpointInterval         uint64
	BackfillCheckpointInterval *uint64
}

func (a Args) backfillInterval() uint64 {
	if a.BackfillCheckpointInterval != nil {
		return *a.BackfillCheckpointInterval
	}
	return a.CheckpointInterval
}

func (a Args) channelCapacity() int {
	base := finality
	if int(a.CheckpointInterval) > base {
		base = int(a.CheckpointInterval)
	}
	return base * avgEventsPerBlock * burst
}

// Engine is the running pipeline: a cancel function and the handles
// needed to wait for both goroutines to stop.
type Engine struct {
	logger zerolog.Logger
	cancel context.CancelFunc
	done   chan error
}

// Start resolves the starting block, drives the gapfiller to
// completion, then spawns the live publisher and subscriber. It
// returns once both are running; call Wait to block until the
// pipeline stops, or Shutdown to stop it.
func Start(
	ctx context.Context,
	logger zerolog.Logger,
	args Args,
	node *ethnode.Client,
	source *ethnode.Source,
	checkpoints *store.CheckpointStore,
	sink *store.TransferSink,
	notifier *notify.Notifier,
) (*Engine, error) {
	log := logger.With().Str("component", "engine").Logger()

	tip, err := node.GetLatestBlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: get latest block number: %w", err)
	}

	resumeBlock, err := state.ResolveResumeBlock(ctx, args.FromBlock, checkpoints, tip)
	if err != nil {
		return nil, fmt.Errorf("engine: resolve resume block: %w", err)
	}
	blocksBehind.Set(float64(tip) - float64(resumeBlock))

	s := state.New(log, resumeBlock)
	log.Info().Uint64("resume_block", resumeBlock).Uint64("tip", tip).Msg("engine starting")

	notifyingCheckpoints := notifyingCheckpointStore{checkpoints: checkpoints, notifier: notifier}
	notifyingTransferSink := notifyingSink{sink: sink, notifier: notifier}

	gapfillSource := gapfillerSourceAdapter{source: source, addresses: args.Addresses, topic: args.Topic}
	err = gapfiller.Run[models.LogItem, models.Transfer](
		ctx, log,
		gapfiller.Config{CheckpointInterval: args.backfillInterval(), Tip: tip},
		s, node, gapfillSource, models.DecodeTransfer, notifyingCheckpoints, notifyingTransferSink,
	)
	if err != nil {
		return nil, fmt.Errorf("engine: gapfill: %w", err)
	}

	currentBlockNumber.Set(float64(s.CurrentBlockNumber()))
	checkpointCounterMetric.Set(float64(s.CheckpointCounter()))
	blocksBehind.Set(float64(tip) - float64(s.CurrentBlockNumber()))

	runCtx, cancel := context.WithCancel(ctx)

	events := make(chan models.Events[models.Transfer], args.channelCapacity())

	streamItems, streamErrs := source.Stream(runCtx, ethnode.StreamFilter{
		Addresses:    args.Addresses,
		Topic:        args.Topic,
		FromBlock:    s.CurrentBlockNumber() + 1,
		PollInterval: args.PollInterval,
	})

	done := make(chan error, 2)

	go func() {
		err := subscriber.Run[models.Transfer](runCtx, log, events, notifyingCheckpoints, notifyingTransferSink)
		if err != nil {
			consumerErrorsTotal.Inc()
			cancel()
		}
		done <- err
	}()

	go func() {
		err := publisher.Run[models.LogItem, models.Transfer](
			runCtx, log, s, node, args.CheckpointInterval, streamItems, streamErrs, models.DecodeTransfer, events,
		)
		if err != nil {
			producerErrorsTotal.Inc()
			cancel()
		}
		done <- err
	}()

	return &Engine{logger: log, cancel: cancel, done: done}, nil
}

// Wait blocks until both the publisher and subscriber have stopped,
// returning the first non-nil error either reported.
func (e *Engine) Wait() error {
	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-e.done; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Shutdown requests cooperative shutdown and waits for both tasks to
// finish.
func (e *Engine) Shutdown() error {
	e.logger.Info().Msg("engine shutdown requested")
	e.cancel()
	return e.Wait()
}

type gapfillerSourceAdapter struct {
	source    *ethnode.Source
	addresses []common.Address
	topic     common.Hash
}

func (a gapfillerSourceAdapter) Chunk(ctx context.Context, fromBlock, toBlock uint64) ([]models.LogItem, error) {
	return a.source.Chunk(ctx, ethnode.ChunkFilter{
		Addresses: a.addresses,
		Topic:     a.topic,
		FromBlock: fromBlock,
		ToBlock:   toBlock,
	})
}

// notifyingCheckpointStore wraps the checkpoint store so every
// inserted checkpoint also fires a best-effort side-channel
// notification.
type notifyingCheckpointStore struct {
	checkpoints *store.CheckpointStore
	notifier    *notify.Notifier
}

func (n notifyingCheckpointStore) Insert(ctx context.Context, checkpoint models.Checkpoint) error {
	if err := n.checkpoints.Insert(ctx, checkpoint); err != nil {
		return err
	}
	n.notifier.NotifyCheckpoint(ctx, checkpoint.BlockNumber, checkpoint.BlockHash.Hex())
	return nil
}

// notifyingSink wraps the transfer sink so every dispatched element or
// batch also fires a best-effort side-channel notification. Notifier
// failures never propagate: see package notify's doc comment.
type notifyingSink struct {
	sink     *store.TransferSink
	notifier *notify.Notifier
}

func (n notifyingSink) Process(ctx context.Context, element models.Transfer) error {
	if err := n.sink.Process(ctx, element); err != nil {
		return err
	}
	eventsEmittedTotal.WithLabelValues("transfer").Inc()
	n.notifier.NotifyBatch(ctx, "transfer", 1, element.Block, element.Block)
	return nil
}

func (n notifyingSink) ProcessBatch(ctx context.Context, elements []models.Transfer) error {
	if err := n.sink.ProcessBatch(ctx, elements); err != nil {
		return err
	}
	eventsEmittedTotal.WithLabelValues("transfer").Add(float64(len(elements)))
	if len(elements) > 0 {
		n.notifier.NotifyBatch(ctx, "transfer", len(elements), elements[0].Block, elements[len(elements)-1].Block)
	}
	return nil
}
