package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable applyEnvOverrides reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SURPRISE_CONTRACT_NAME", "PRIZE_DRAW_ACCOUNT_NAME",
		"NEAR_CLI_BIN", "NEAR_NODE_URL", "NEAR_ENV", "PRIZEOPS_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Poller.Contract != "prizepool.superise.testnet" {
		t.Errorf("expected default contract, got %s", cfg.Poller.Contract)
	}
	if cfg.Poller.Account != "prizedraw.testnet" {
		t.Errorf("expected default account, got %s", cfg.Poller.Account)
	}
	if cfg.Poller.Gas != "100000000000000" {
		t.Errorf("expected 100 Tgas, got %s", cfg.Poller.Gas)
	}
	if cfg.GetPollInterval() != 40*time.Second {
		t.Errorf("expected 40s interval, got %s", cfg.GetPollInterval())
	}
	require.NoError(t, cfg.Validate())
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "nested", "prizeops.yaml")

	cfg := DefaultConfig()
	cfg.Poller.Contract = "pool.example.testnet"
	cfg.Poller.MetricsAddr = ":9191"
	cfg.Cleaner.Gas = "300000000000000"

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "pool.example.testnet", loaded.Poller.Contract)
	assert.Equal(t, ":9191", loaded.Poller.MetricsAddr)
	assert.Equal(t, "300000000000000", loaded.Cleaner.Gas)
	assert.Equal(t, "clean", loaded.Cleaner.Method)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "prizeops.yaml")
	content := "poller:\n  interval: 5s\nnear:\n  node_url: https://rpc.testnet.near.org\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.GetPollInterval())
	assert.Equal(t, "https://rpc.testnet.near.org", cfg.Near.NodeURL)
	assert.Equal(t, "prizedraw.testnet", cfg.Poller.Account)
	assert.Equal(t, "near", cfg.Near.Binary)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("poller: [unterminated"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty binary", func(c *Config) { c.Near.Binary = "" }},
		{"empty contract", func(c *Config) { c.Poller.Contract = "" }},
		{"empty account", func(c *Config) { c.Poller.Account = "" }},
		{"bad interval", func(c *Config) { c.Poller.Interval = "soon" }},
		{"zero interval", func(c *Config) { c.Poller.Interval = "0s" }},
		{"non-numeric gas", func(c *Config) { c.Poller.Gas = "100T" }},
		{"missing draw gas", func(c *Config) { c.Poller.Gas = "" }},
		{"bad cleaner gas", func(c *Config) { c.Cleaner.Gas = "-1" }},
		{"empty source", func(c *Config) { c.Cleaner.SourceContract = "" }},
		{"bad timeout", func(c *Config) { c.Execution.Timeout = "forever" }},
		{"bad max timeout", func(c *Config) { c.Execution.MaxTimeout = "never" }},
		{"timeout above max", func(c *Config) { c.Execution.Timeout = "30m" }},
		{"negative output cap", func(c *Config) { c.Execution.MaxOutputBytes = -1 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGetExecutionTimeoutFallback(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 2*time.Minute, cfg.GetExecutionTimeout())

	cfg.Execution.Timeout = "nonsense"
	assert.Equal(t, 2*time.Minute, cfg.GetExecutionTimeout())

	cfg.Execution.Timeout = "15s"
	assert.Equal(t, 15*time.Second, cfg.GetExecutionTimeout())
}

func TestMaxExecutionTimeout(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10*time.Minute, cfg.GetMaxExecutionTimeout())

	cfg.Execution.Timeout = "30m"
	cfg.Execution.MaxTimeout = "1h"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Hour, cfg.GetMaxExecutionTimeout())
}

func TestCleanerNodeURLFallback(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, DefaultCleanerNodeURL, cfg.CleanerNodeURL())

	cfg.Cleaner.NodeURL = ""
	cfg.Near.NodeURL = "https://rpc.mainnet.near.org"
	assert.Equal(t, "https://rpc.mainnet.near.org", cfg.CleanerNodeURL())
}
