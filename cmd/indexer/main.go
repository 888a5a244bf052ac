// Command eth-indexer is the CLI entrypoint: "engine" runs the
// indexer until SIGINT or a fatal error, "select" dumps persisted
// rows as JSON. Flag parsing and subcommand dispatch are a thin shell
// around internal/engine, internal/store and internal/ethnode; a
// flag.FlagSet per subcommand is all that's needed here.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ffakenz/eth-indexer/internal/engine"
	"github.com/ffakenz/eth-indexer/internal/ethnode"
	"github.com/ffakenz/eth-indexer/internal/eventkind"
	"github.com/ffakenz/eth-indexer/internal/localstate"
	"github.com/ffakenz/eth-indexer/internal/models"
	"github.com/ffakenz/eth-indexer/internal/notify"
	"github.com/ffakenz/eth-indexer/internal/store"
	"github.com/ffakenz/eth-indexer/internal/util"
	"github.com/ffakenz/eth-indexer/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "engine":
		runEngine(os.Args[2:])
	case "select":
		runSelect(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: eth-indexer <engine|select> [flags]")
}

// runEngine implements the "engine" subcommand: wire up the node
// client, stores and notifier, then hand off to engine.Start.
func runEngine(args []string) {
	fs := flag.NewFlagSet("engine", flag.ExitOnError)
	rpcURL := fs.String("rpc-url", "", "HTTP endpoint of the chain node (required)")
	dbURL := fs.String("db-url", "", "connection string for local durable storage (required)")
	signerPK := fs.String("signer-pk", "", "signing key held by the RPC client wallet (required, unused by the core)")
	addressesFlag := fs.String("addresses", "", "comma-separated list of 20-byte hex addresses (required)")
	eventFlag := fs.String("event", "", fmt.Sprintf("recognized event kind (required; one of %v)", eventkind.Names()))
	fromBlockFlag := fs.Uint64("from-block", 0, "0 means resume-or-tip")
	checkpointInterval := fs.Uint64("checkpoint-interval", 100, "blocks between flushed checkpoints")
	pollIntervalMS := fs.Uint64("poll-interval", 500, "milliseconds between stream polls")
	backfillCheckpointInterval := fs.Uint64("backfill-checkpoint-interval", 0, "defaults to --checkpoint-interval when 0")
	fs.Parse(args)

	logger := util.InitLogger()
	logger.Info().Msg("starting eth-indexer engine")

	ko := util.InitConfig(logger, "config.toml")
	util.UpdateLogLevel(ko, logger)
	op := config.FromKoanf(ko)

	if *rpcURL == "" || *dbURL == "" || *signerPK == "" || *addressesFlag == "" || *eventFlag == "" {
		logger.Fatal().Msg("engine: --rpc-url, --db-url, --signer-pk, --addresses and --event are all required")
	}
	if *checkpointInterval == 0 {
		logger.Fatal().Msg("engine: --checkpoint-interval must be positive")
	}
	if *pollIntervalMS == 0 {
		logger.Fatal().Msg("engine: --poll-interval must be positive")
	}

	addresses, err := parseAddresses(*addressesFlag)
	if err != nil {
		logger.Fatal().Err(err).Msg("engine: invalid --addresses")
	}

	kind, err := eventkind.Resolve(*eventFlag)
	if err != nil {
		logger.Fatal().Err(err).Msg("engine: invalid --event")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	node, err := ethnode.NewClient(ctx, *rpcURL, op.ChainID, *logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("engine: connect to rpc node")
	}
	defer node.Close()

	source := ethnode.NewSource(node)

	dbClient, err := store.NewClient(ctx, *dbURL, *logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("engine: open storage")
	}
	defer dbClient.Close()

	checkpoints := store.NewCheckpointStore(dbClient)
	sink := store.NewTransferSink(dbClient)

	notifier, err := notify.New(op.NATSURL, op.NATSMaxAge, *logger)
	if err != nil {
		logger.Error().Err(err).Msg("engine: nats notifier unavailable, continuing without it")
		notifier = nil
	}
	defer notifier.Close()

	localStore, err := localstate.Open(op.LocalStatePath)
	if err != nil {
		logger.Warn().Err(err).Msg("engine: local state unavailable, continuing without run history")
	} else {
		defer localStore.Close()
		if err := localStore.RecordRun(*rpcURL, localstate.RunMarker{
			DBURL:         *dbURL,
			StartBlock:    *fromBlockFlag,
			SchemaApplied: true,
		}); err != nil {
			logger.Warn().Err(err).Msg("engine: record run marker")
		}
	}

	engineArgs := engine.Args{
		Addresses:          addresses,
		Topic:              kind.Topic,
		PollInterval:       time.Duration(*pollIntervalMS) * time.Millisecond,
		CheckpointInterval: *checkpointInterval,
	}
	if *fromBlockFlag != 0 {
		engineArgs.FromBlock = fromBlockFlag
	}
	if *backfillCheckpointInterval != 0 {
		engineArgs.BackfillCheckpointInterval = backfillCheckpointInterval
	}

	metricsServer := &http.Server{Addr: op.MetricsAddress, Handler: promhttp.Handler()}
	go func() {
		logger.Info().Str("address", op.MetricsAddress).Msg("starting metrics server")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	healthServer := &http.Server{Addr: op.HealthAddress, Handler: healthHandler(notifier)}
	go func() {
		logger.Info().Str("address", op.HealthAddress).Msg("starting health check server")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("health check server error")
		}
	}()

	eng, err := engine.Start(ctx, *logger, engineArgs, node, source, checkpoints, sink, notifier)
	if err != nil {
		logger.Fatal().Err(err).Msg("engine: start")
	}

	runErr := eng.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("metrics server shutdown error")
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("health server shutdown error")
	}

	if runErr != nil {
		logger.Error().Err(runErr).Msg("engine stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("shutdown complete")
}

func healthHandler(notifier *notify.Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !notifier.Healthy() {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, "healthy (notifier disabled or reconnecting)")
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "healthy")
	}
}

func parseAddresses(raw string) ([]common.Address, error) {
	parts := strings.Split(raw, ",")
	addresses := make([]common.Address, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if !common.IsHexAddress(part) {
			return nil, fmt.Errorf("%q is not a valid 20-byte hex address", part)
		}
		addresses = append(addresses, common.HexToAddress(part))
	}
	return addresses, nil
}

// runSelect implements the "select" subcommand: dump persisted rows
// for one entity as pretty JSON on stdout.
func runSelect(args []string) {
	fs := flag.NewFlagSet("select", flag.ExitOnError)
	dbURL := fs.String("db-url", "", "connection string for local durable storage (required)")
	entity := fs.String("entity", "", "transfer|checkpoint (required)")
	fromBlockFlag := fs.String("from-block", "0", `<u64> or "last"`)
	fs.Parse(args)

	logger := util.InitLogger()

	if *dbURL == "" {
		logger.Fatal().Msg("select: --db-url is required")
	}
	if *entity != "transfer" && *entity != "checkpoint" {
		logger.Fatal().Str("entity", *entity).Msg(`select: --entity must be "transfer" or "checkpoint"`)
	}

	ctx := context.Background()

	dbClient, err := store.NewClient(ctx, *dbURL, *logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("select: open storage")
	}
	defer dbClient.Close()

	checkpoints := store.NewCheckpointStore(dbClient)

	fromBlock, err := resolveFromBlock(ctx, *fromBlockFlag, checkpoints)
	if err != nil {
		logger.Fatal().Err(err).Msg("select: resolve --from-block")
	}

	switch *entity {
	case "transfer":
		sink := store.NewTransferSink(dbClient)
		rows, err := sink.ListFrom(ctx, fromBlock)
		if err != nil {
			logger.Fatal().Err(err).Msg("select: list transfers")
		}
		printTransfers(rows)
	case "checkpoint":
		rows, err := checkpoints.ListFrom(ctx, fromBlock)
		if err != nil {
			logger.Fatal().Err(err).Msg("select: list checkpoints")
		}
		printCheckpoints(rows)
	}
}

func resolveFromBlock(ctx context.Context, raw string, checkpoints *store.CheckpointStore) (uint64, error) {
	if raw == "last" {
		last, err := checkpoints.GetLast(ctx)
		if err != nil {
			return 0, err
		}
		if last == nil {
			return 0, nil
		}
		return last.BlockNumber, nil
	}

	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid --from-block %q: %w", raw, err)
	}
	return n, nil
}

// transferJSON shapes a persisted Transfer for select's JSON output:
// binary fields as 0x-prefixed hex, addresses checksummed, amount as
// a decimal string.
type transferJSON struct {
	BlockNumber     uint64 `json:"block_number"`
	BlockHash       string `json:"block_hash"`
	TransactionHash string `json:"transaction_hash"`
	LogIndex        uint   `json:"log_index"`
	ContractAddress string `json:"contract_address"`
	FromAddress     string `json:"from_address"`
	ToAddress       string `json:"to_address"`
	Amount          string `json:"amount"`
}

type checkpointJSON struct {
	BlockNumber uint64 `json:"block_number"`
	BlockHash   string `json:"block_hash"`
	ParentHash  string `json:"parent_hash"`
}

func printTransfers(rows []models.Transfer) {
	if len(rows) == 0 {
		fmt.Println("not found")
		return
	}
	out := make([]transferJSON, 0, len(rows))
	for _, t := range rows {
		out = append(out, transferJSON{
			BlockNumber:     t.Block,
			BlockHash:       t.BlockHash.Hex(),
			TransactionHash: t.TransactionHash.Hex(),
			LogIndex:        t.LogIndex,
			ContractAddress: t.ContractAddress.Hex(),
			FromAddress:     t.From.Hex(),
			ToAddress:       t.To.Hex(),
			Amount:          t.Amount.String(),
		})
	}
	printJSON(out)
}

func printCheckpoints(rows []models.Checkpoint) {
	if len(rows) == 0 {
		fmt.Println("not found")
		return
	}
	out := make([]checkpointJSON, 0, len(rows))
	for _, c := range rows {
		out = append(out, checkpointJSON{
			BlockNumber: c.BlockNumber,
			BlockHash:   c.BlockHash.Hex(),
			ParentHash:  c.ParentHash.Hex(),
		})
	}
	printJSON(out)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "select: encode json: %v\n", err)
		os.Exit(1)
	}
}
