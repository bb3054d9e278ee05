package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbook-quoter/internal/config"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv(config.EnvSymbol, "ethusdt")
	t.Setenv(config.EnvLogLevel, "")

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", cfg.Symbol)
	assert.Equal(t, "info", cfg.App.LogLevel)
}

func TestLoadConfig_FlagOverridesFile(t *testing.T) {
	t.Setenv(config.EnvSymbol, "")
	t.Setenv(config.EnvLogLevel, "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("symbol: ethusdt\n"), 0o644))

	cfg, err := loadConfig(path, "solusdt")
	require.NoError(t, err)
	assert.Equal(t, "SOLUSDT", cfg.Symbol)
}

func TestLoadConfig_InvalidFlagSymbol(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), "BTC-USDT")
	require.Error(t, err)
}

func TestNewLogger_FallsBackToInfo(t *testing.T) {
	assert.NotNil(t, newLogger("nonsense"))
}
