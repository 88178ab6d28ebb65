package config

// Fallbacks used when neither the config file nor the environment names a
// contract or account.
const (
	DefaultSurpriseContract = "prizepool.superise.testnet"
	DefaultPrizeDrawAccount = "prizedraw.testnet"
	DefaultCleanerNodeURL   = "https://public-rpc.blockpi.io/http/near-testnet"

	// 100 Tgas
	DefaultDrawGas = "100000000000000"
)

// PollerConfig configures the drawable-pool poller.
type PollerConfig struct {
	Contract       string `yaml:"contract"`
	Account        string `yaml:"account"`
	Interval       string `yaml:"interval"`
	Gas            string `yaml:"gas"`
	ViewMethod     string `yaml:"view_method"`
	DrawMethod     string `yaml:"draw_method"`
	DrawableMarker string `yaml:"drawable_marker"`

	// Address for the Prometheus endpoint (e.g. ":9090"). Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
}

// CleanerConfig configures the state cleanup job.
type CleanerConfig struct {
	SourceContract string `yaml:"source_contract"`
	NodeURL        string `yaml:"node_url"`
	Finality       string `yaml:"finality"`
	Method         string `yaml:"method"`
	Gas            string `yaml:"gas"` // empty = CLI default
}

// ExecutionConfig configures the tactile interface.
type ExecutionConfig struct {
	// Per-command timeout
	Timeout string `yaml:"timeout"`

	// Upper bound for timeout
	MaxTimeout string `yaml:"max_timeout"`

	// Capture limit per output stream; a larger view-state dump is an error
	MaxOutputBytes int64 `yaml:"max_output_bytes"`

	// Environment variables passed through to the near CLI
	AllowedEnvVars []string `yaml:"allowed_env_vars"`
}
