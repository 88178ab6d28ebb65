// Package cleaner wipes a contract's storage: it dumps the state of a
// source account, extracts every storage key and hands them all to the
// target contract's clean method in a single call.
package cleaner

import (
	"context"
	"fmt"

	"prizeops/internal/logging"
	"prizeops/internal/near"
	"prizeops/internal/statekeys"
)

// Client is the subset of near.Client the cleaner needs.
type Client interface {
	ViewState(ctx context.Context, account, finality, nodeURL string) (*near.Output, error)
	Call(ctx context.Context, req near.CallRequest) (*near.Output, error)
}

// Options configures a cleanup run.
type Options struct {
	SourceContract string // account whose state is dumped
	Finality       string
	NodeURL        string
	Method         string // defaults to "clean"
	Gas            string // empty = CLI default
	DryRun         bool   // stop after building the argument
}

// Report describes what a run did.
type Report struct {
	StateDump  string
	Keys       []string
	Args       []byte
	CallOutput *near.Output // nil on dry run
}

// Cleaner performs state cleanup.
type Cleaner struct {
	client Client
	opts   Options
}

// New creates a Cleaner.
func New(client Client, opts Options) (*Cleaner, error) {
	if client == nil {
		return nil, fmt.Errorf("cleaner: client is required")
	}
	if opts.SourceContract == "" {
		return nil, fmt.Errorf("cleaner: source contract is required")
	}
	if opts.Method == "" {
		opts.Method = "clean"
	}
	if opts.Finality == "" {
		opts.Finality = near.FinalityFinal
	}
	return &Cleaner{client: client, opts: opts}, nil
}

// Run cleans contract's storage on behalf of account. Any failure aborts
// the run; nothing is retried.
func (c *Cleaner) Run(ctx context.Context, contract, account string) (*Report, error) {
	if contract == "" || account == "" {
		return nil, fmt.Errorf("contract and account are required")
	}

	state, err := c.client.ViewState(ctx, c.opts.SourceContract, c.opts.Finality, c.opts.NodeURL)
	if err != nil {
		return nil, fmt.Errorf("dump state of %s: %w", c.opts.SourceContract, err)
	}
	logging.CleanerDebug("states: %s", state.Stdout)

	report := &Report{StateDump: state.Stdout}
	report.Keys = statekeys.Extract(state.Stdout)
	if len(report.Keys) == 0 {
		logging.CleanerWarn("no storage keys found in state of %s; calling %s with an empty list", c.opts.SourceContract, c.opts.Method)
	}
	logging.Cleaner("extracted %d keys from %s", len(report.Keys), c.opts.SourceContract)

	report.Args, err = statekeys.Encode(report.Keys)
	if err != nil {
		return report, err
	}

	if c.opts.DryRun {
		logging.Cleaner("dry run: skipping %s on %s", c.opts.Method, contract)
		return report, nil
	}

	report.CallOutput, err = c.client.Call(ctx, near.CallRequest{
		Contract: contract,
		Method:   c.opts.Method,
		Args:     report.Args,
		Account:  account,
		Gas:      c.opts.Gas,
		NodeURL:  c.opts.NodeURL,
	})
	if err != nil {
		return report, fmt.Errorf("%s on %s: %w", c.opts.Method, contract, err)
	}
	logging.Cleaner("%s on %s done", c.opts.Method, contract)
	return report, nil
}
