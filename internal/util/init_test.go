package util

import (
	"testing"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestInitConfig_MissingFileIsNotFatal(t *testing.T) {
	logger := zerolog.Nop()

	ko := InitConfig(&logger, "does-not-exist.toml")

	require.NotNil(t, ko)
	require.Empty(t, ko.String("logging.level"))
}

func TestUpdateLogLevel_DefaultsToInfoOnUnknown(t *testing.T) {
	logger := zerolog.Nop()
	ko := koanf.New(".")
	require.NoError(t, ko.Load(confmap.Provider(map[string]interface{}{
		"logging.level": "chatty",
	}, "."), nil))

	UpdateLogLevel(ko, &logger)

	require.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestUpdateLogLevel_Debug(t *testing.T) {
	logger := zerolog.Nop()
	ko := koanf.New(".")
	require.NoError(t, ko.Load(confmap.Provider(map[string]interface{}{
		"logging.level": "debug",
	}, "."), nil))

	UpdateLogLevel(ko, &logger)

	require.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}
