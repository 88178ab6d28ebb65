package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"prizeops/internal/cleaner"
	"prizeops/internal/logging"
	"prizeops/internal/statekeys"
)

var (
	cleanSource   string
	cleanFinality string
	cleanGas      string
	cleanDryRun   bool
)

// stateCleanCmd removes every storage key of a contract
var stateCleanCmd = &cobra.Command{
	Use:   "state-clean <contract> <account>",
	Short: "Dump storage keys and clean them in a single call",
	Long: `Runs near view-state on the source contract, extracts every key: '...'
entry and calls <contract>.clean({"keys": [...]}) signed by <account>.

Example:
  prizeops state-clean your_contract_name.testnet your_account.testnet`,
	Args: cobra.ExactArgs(2),
	RunE: runStateClean,
}

func init() {
	stateCleanCmd.Flags().StringVar(&cleanSource, "source", "", "Contract whose state is dumped (default prizepool.superise.testnet)")
	stateCleanCmd.Flags().StringVar(&cleanFinality, "finality", "", "view-state finality: final or optimistic")
	stateCleanCmd.Flags().StringVar(&cleanGas, "gas", "", "Gas for the clean call (default: CLI default)")
	stateCleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "Print the clean argument without sending the call")
}

func runStateClean(cmd *cobra.Command, args []string) error {
	contract, account := args[0], args[1]

	if cleanSource != "" {
		cfg.Cleaner.SourceContract = cleanSource
	}
	if cleanFinality != "" {
		cfg.Cleaner.Finality = cleanFinality
	}
	if cleanGas != "" {
		cfg.Cleaner.Gas = cleanGas
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client := newNearClient(cfg, executorFactory(cfg))
	c, err := cleaner.New(client, cleaner.Options{
		SourceContract: cfg.Cleaner.SourceContract,
		Finality:       cfg.Cleaner.Finality,
		NodeURL:        cfg.CleanerNodeURL(),
		Method:         cfg.Cleaner.Method,
		Gas:            cfg.Cleaner.Gas,
		DryRun:         cleanDryRun,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	report, err := c.Run(ctx, contract, account)
	out := cmd.OutOrStdout()
	if report != nil {
		fmt.Fprintf(out, "states_key_arg: %s\n", statekeys.ArrayLiteral(report.Keys))
		if report.CallOutput != nil {
			fmt.Fprintln(out, strings.TrimRight(report.CallOutput.Stdout, "\n"))
		}
		if cleanDryRun {
			fmt.Fprintf(out, "dry run, would call %s.%s %s as %s\n", contract, cfg.Cleaner.Method, report.Args, account)
		}
	}
	if err != nil {
		logging.CleanerError("state-clean %s failed: %v", contract, err)
	}
	return err
}
