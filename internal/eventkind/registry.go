// Package eventkind maps the CLI's --event enum onto the canonical
// ABI signature string and topic hash State/Source need to filter and
// decode logs. The table is keyed by the user-facing name rather than
// by inbound topic: this engine runs a single decoder per process
// instead of routing an open set of event kinds.
package eventkind

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ffakenz/eth-indexer/internal/models"
)

// Kind is one recognized --event value.
type Kind struct {
	Name      string
	Signature string
	Topic     common.Hash
}

// registry holds the recognized kinds: transfer only, for now. Adding
// a new kind means adding an entry here plus a models.Decode* function
// and wiring it into internal/engine, whose Start uses
// models.DecodeTransfer and models.Transfer directly.
var registry = map[string]Kind{
	"transfer": {Name: "transfer", Signature: models.TransferSig, Topic: models.TransferTopic},
}

// Resolve looks up a CLI --event value, returning an error listing the
// recognized set if it doesn't match.
func Resolve(name string) (Kind, error) {
	kind, ok := registry[name]
	if !ok {
		return Kind{}, fmt.Errorf("eventkind: unrecognized event %q (recognized: %v)", name, Names())
	}
	return kind, nil
}

// Names returns the recognized --event values, sorted for stable help text.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
