package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides_Poller(t *testing.T) {
	t.Run("SURPRISE_CONTRACT_NAME overrides contract", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SURPRISE_CONTRACT_NAME", "prizepool.mainnet")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "prizepool.mainnet", cfg.Poller.Contract)
		assert.Equal(t, "prizedraw.testnet", cfg.Poller.Account)
	})

	t.Run("PRIZE_DRAW_ACCOUNT_NAME overrides account", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PRIZE_DRAW_ACCOUNT_NAME", "drawer.mainnet")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "drawer.mainnet", cfg.Poller.Account)
	})

	t.Run("Empty value keeps default", func(t *testing.T) {
		clearEnv(t)

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, DefaultSurpriseContract, cfg.Poller.Contract)
		assert.Equal(t, DefaultPrizeDrawAccount, cfg.Poller.Account)
	})
}

func TestEnvOverrides_Near(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEAR_CLI_BIN", "/opt/near/bin/near")
	t.Setenv("NEAR_NODE_URL", "http://localhost:3030")
	t.Setenv("NEAR_ENV", "localnet")
	t.Setenv("PRIZEOPS_LOG_LEVEL", "debug")

	cfg := &Config{}
	cfg.applyEnvOverrides()

	assert.Equal(t, "/opt/near/bin/near", cfg.Near.Binary)
	assert.Equal(t, "http://localhost:3030", cfg.Near.NodeURL)
	assert.Equal(t, "http://localhost:3030", cfg.CleanerNodeURL())
	assert.Equal(t, "localnet", cfg.Near.Network)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverrides_BeatFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "prizeops.yaml")
	cfg := DefaultConfig()
	cfg.Poller.Contract = "from-file.testnet"
	require.NoError(t, cfg.Save(path))

	t.Setenv("SURPRISE_CONTRACT_NAME", "from-env.testnet")
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.testnet", loaded.Poller.Contract)
}

func TestEnvOverrides_ApplyWithoutFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRIZE_DRAW_ACCOUNT_NAME", "env-only.testnet")

	loaded, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-only.testnet", loaded.Poller.Account)
}
