// Package config loads the engine's operational knobs: the settings
// config.toml/environment supply alongside the per-run CLI flags
// (rpc-url, db-url, addresses, ...). Metrics/health addresses, log
// level and the NATS side-channel have no CLI flag because they're
// deployment-environment knobs, not per-run indexing parameters.
package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Operational holds everything the engine subcommand reads from
// config.toml/env rather than from its own flags.
type Operational struct {
	LogLevel       string
	MetricsAddress string
	HealthAddress  string
	NATSURL        string
	NATSMaxAge     time.Duration
	LocalStatePath string
	ChainID        int64 // 0 disables the RPC client's chain-id verification
}

// FromKoanf extracts Operational from an already-loaded koanf
// instance (internal/util.InitConfig), applying defaults for any
// setting config.toml and the environment leave unset.
func FromKoanf(ko *koanf.Koanf) Operational {
	op := Operational{
		LogLevel:       ko.String("logging.level"),
		MetricsAddress: ko.String("metrics.address"),
		HealthAddress:  ko.String("health.address"),
		NATSURL:        ko.String("nats.url"),
		NATSMaxAge:     ko.Duration("nats.max_age"),
		LocalStatePath: ko.String("localstate.path"),
		ChainID:        ko.Int64("chain.id"),
	}
	op.applyDefaults()
	return op
}

func (o *Operational) applyDefaults() {
	if o.LogLevel == "" {
		o.LogLevel = "info"
	}
	if o.MetricsAddress == "" {
		o.MetricsAddress = ":9090"
	}
	if o.HealthAddress == "" {
		o.HealthAddress = ":8080"
	}
	if o.NATSMaxAge == 0 {
		o.NATSMaxAge = 24 * time.Hour
	}
	if o.LocalStatePath == "" {
		o.LocalStatePath = "eth-indexer.localstate.db"
	}
}
