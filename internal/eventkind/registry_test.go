package eventkind

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ffakenz/eth-indexer/internal/models"
)

func TestResolve_Transfer(t *testing.T) {
	kind, err := Resolve("transfer")
	require.NoError(t, err)
	require.Equal(t, models.TransferSig, kind.Signature)
	require.Equal(t, models.TransferTopic, kind.Topic)
}

func TestResolve_Unrecognized(t *testing.T) {
	_, err := Resolve("order_filled")
	require.Error(t, err)
}

func TestNames_IncludesTransfer(t *testing.T) {
	require.Contains(t, Names(), "transfer")
}
