package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"prizeops/internal/config"
	"prizeops/internal/logging"
	"prizeops/internal/near"
	"prizeops/internal/tactile"
)

var (
	// Global flags
	configPath string
	verbose    bool
	nearBin    string
	nodeURL    string

	// Resolved in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "prizeops",
	Short: "Operational jobs for the prize-pool contract",
	Long: `prizeops wraps the near CLI to run the prize-pool maintenance jobs:

  draw-cron    poll for drawable pools and trigger the draw
  state-clean  dump a contract's storage keys and clean them in one call

Configuration is read from --config (YAML), then SURPRISE_CONTRACT_NAME,
PRIZE_DRAW_ACCOUNT_NAME and friends, then command-line flags.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if nearBin != "" {
			cfg.Near.Binary = nearBin
		}
		if nodeURL != "" {
			cfg.Near.NodeURL = nodeURL
			cfg.Cleaner.NodeURL = nodeURL
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		if err := cfg.Logging.Validate(); err != nil {
			return err
		}

		if err := logging.Initialize(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			File:   cfg.Logging.File,
		}); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = logging.Base()
		if configPath != "" {
			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				logging.BootWarn("config file %s not found; using defaults and environment", configPath)
			}
		}
		logging.Boot("%s starting", cmd.CommandPath())
		logging.BootDebug("config resolved: near=%s node_url=%q", cfg.Near.Binary, cfg.Near.NodeURL)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&nearBin, "near-bin", "", "near CLI executable (or set NEAR_CLI_BIN)")
	rootCmd.PersistentFlags().StringVar(&nodeURL, "node-url", "", "RPC node URL passed as --node_url (or set NEAR_NODE_URL)")

	rootCmd.AddCommand(drawCronCmd)
	rootCmd.AddCommand(stateCleanCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext returns a context canceled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// newExecutor builds the direct executor from the execution settings.
func newExecutor(c *config.Config) tactile.Executor {
	ec := tactile.DefaultExecutorConfig()
	ec.DefaultTimeout = c.GetExecutionTimeout()
	ec.MaxTimeout = c.GetMaxExecutionTimeout()
	if c.Execution.MaxOutputBytes > 0 {
		ec.MaxOutputBytes = c.Execution.MaxOutputBytes
	}
	if len(c.Execution.AllowedEnvVars) > 0 {
		ec.AllowedEnvironment = c.Execution.AllowedEnvVars
	}
	ec.AuditCallback = func(e tactile.AuditEvent) {
		switch e.Type {
		case tactile.AuditEventKilled, tactile.AuditEventError, tactile.AuditEventBlocked:
			logging.TactileWarn("%s: %s (req=%s)", e.Type, e.Command.CommandString(), e.Command.RequestID)
		}
	}
	return tactile.NewDirectExecutorWithConfig(ec)
}

// newNearClient builds a near client over exec.
func newNearClient(c *config.Config, exec tactile.Executor) *near.Client {
	return near.NewClient(exec,
		near.WithBinary(c.Near.Binary),
		near.WithNodeURL(c.Near.NodeURL),
		near.WithNetwork(c.Near.Network),
		near.WithTimeout(c.GetExecutionTimeout()),
	)
}

// executorFactory is swapped in tests to avoid spawning near.
var executorFactory = newExecutor
