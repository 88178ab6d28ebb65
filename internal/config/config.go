package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all prizeops configuration.
type Config struct {
	// near CLI settings shared by every job
	Near NearConfig `yaml:"near"`

	// Drawable-pool poller
	Poller PollerConfig `yaml:"poller"`

	// State cleanup
	Cleaner CleanerConfig `yaml:"cleaner"`

	// Subprocess execution
	Execution ExecutionConfig `yaml:"execution"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// NearConfig configures how the near CLI is invoked.
type NearConfig struct {
	Binary  string `yaml:"binary"`
	NodeURL string `yaml:"node_url"` // empty = CLI default for the network
	Network string `yaml:"network"`  // exported as NEAR_ENV when set
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Near: NearConfig{
			Binary: "near",
		},

		Poller: PollerConfig{
			Contract:       DefaultSurpriseContract,
			Account:        DefaultPrizeDrawAccount,
			Interval:       "40s",
			Gas:            DefaultDrawGas,
			ViewMethod:     "view_exist_drawable_pool",
			DrawMethod:     "pools_prize_draw",
			DrawableMarker: "true",
		},

		Cleaner: CleanerConfig{
			SourceContract: DefaultSurpriseContract,
			NodeURL:        DefaultCleanerNodeURL,
			Finality:       "final",
			Method:         "clean",
		},

		Execution: ExecutionConfig{
			Timeout:        "2m",
			MaxTimeout:     "10m",
			MaxOutputBytes: 16 * 1024 * 1024,
			AllowedEnvVars: []string{
				"PATH", "HOME", "USER", "NEAR_ENV", "NEAR_CLI_LOCALNET_NETWORK_ID",
			},
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
// Empty values are treated as unset.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SURPRISE_CONTRACT_NAME"); v != "" {
		c.Poller.Contract = v
	}
	if v := os.Getenv("PRIZE_DRAW_ACCOUNT_NAME"); v != "" {
		c.Poller.Account = v
	}

	if v := os.Getenv("NEAR_CLI_BIN"); v != "" {
		c.Near.Binary = v
	}
	if v := os.Getenv("NEAR_NODE_URL"); v != "" {
		c.Near.NodeURL = v
		c.Cleaner.NodeURL = v
	}
	if v := os.Getenv("NEAR_ENV"); v != "" {
		c.Near.Network = v
	}

	if v := os.Getenv("PRIZEOPS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// GetPollInterval returns the poll interval as a duration.
func (c *Config) GetPollInterval() time.Duration {
	d, err := time.ParseDuration(c.Poller.Interval)
	if err != nil || d <= 0 {
		return 40 * time.Second
	}
	return d
}

// GetExecutionTimeout returns the per-command timeout as a duration.
func (c *Config) GetExecutionTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.Timeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// GetMaxExecutionTimeout returns the timeout ceiling as a duration.
func (c *Config) GetMaxExecutionTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.MaxTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// CleanerNodeURL returns the node URL for cleanup calls, falling back to
// the shared near setting.
func (c *Config) CleanerNodeURL() string {
	if c.Cleaner.NodeURL != "" {
		return c.Cleaner.NodeURL
	}
	return c.Near.NodeURL
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Near.Binary == "" {
		return fmt.Errorf("near binary not configured (set near.binary or NEAR_CLI_BIN)")
	}
	if c.Poller.Contract == "" {
		return fmt.Errorf("poller contract not configured (set poller.contract or SURPRISE_CONTRACT_NAME)")
	}
	if c.Poller.Account == "" {
		return fmt.Errorf("poller account not configured (set poller.account or PRIZE_DRAW_ACCOUNT_NAME)")
	}
	if d, err := time.ParseDuration(c.Poller.Interval); err != nil || d <= 0 {
		return fmt.Errorf("invalid poller interval: %q", c.Poller.Interval)
	}
	if err := validateGas(c.Poller.Gas, false); err != nil {
		return fmt.Errorf("poller: %w", err)
	}
	if err := validateGas(c.Cleaner.Gas, true); err != nil {
		return fmt.Errorf("cleaner: %w", err)
	}
	if c.Cleaner.SourceContract == "" {
		return fmt.Errorf("cleaner source contract not configured")
	}
	if c.Execution.Timeout != "" {
		if d, err := time.ParseDuration(c.Execution.Timeout); err != nil || d <= 0 {
			return fmt.Errorf("invalid execution timeout: %q", c.Execution.Timeout)
		}
	}
	if c.Execution.MaxTimeout != "" {
		if d, err := time.ParseDuration(c.Execution.MaxTimeout); err != nil || d <= 0 {
			return fmt.Errorf("invalid execution max_timeout: %q", c.Execution.MaxTimeout)
		}
	}
	if c.GetExecutionTimeout() > c.GetMaxExecutionTimeout() {
		return fmt.Errorf("execution timeout %s exceeds max_timeout %s", c.GetExecutionTimeout(), c.GetMaxExecutionTimeout())
	}
	if c.Execution.MaxOutputBytes < 0 {
		return fmt.Errorf("invalid execution max_output_bytes: %d", c.Execution.MaxOutputBytes)
	}
	return c.Logging.Validate()
}

// validateGas checks that gas is a base-10 unsigned integer.
func validateGas(gas string, optional bool) error {
	if gas == "" {
		if optional {
			return nil
		}
		return fmt.Errorf("gas not configured")
	}
	if _, err := strconv.ParseUint(gas, 10, 64); err != nil {
		return fmt.Errorf("invalid gas %q: %w", gas, err)
	}
	return nil
}
