// Package poller runs the drawable-pool loop: ask the prize-pool contract
// whether any pool can be drawn and, if so, trigger the draw.
//
// The loop is best-effort and never stops on its own. Every error is logged
// and counted, then the next iteration runs after the fixed interval.
package poller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"prizeops/internal/logging"
	"prizeops/internal/near"
)

// Client is the subset of near.Client the poller needs.
type Client interface {
	View(ctx context.Context, contract, method string, args []byte) (*near.Output, error)
	Call(ctx context.Context, req near.CallRequest) (*near.Output, error)
}

// Outcome summarizes one iteration.
type Outcome string

const (
	OutcomeIdle   Outcome = "idle"   // nothing drawable
	OutcomeDrawn  Outcome = "drawn"  // draw call exited cleanly
	OutcomeFailed Outcome = "failed" // view or draw failed; error swallowed
)

// Config holds the poller's fixed parameters.
type Config struct {
	Contract   string
	Account    string
	Gas        string
	Interval   time.Duration
	ViewMethod string
	DrawMethod string
	Marker     string // substring of the view result that means "drawable"
}

// Poller checks for drawable pools and draws them.
type Poller struct {
	client  Client
	cfg     Config
	metrics *Metrics

	// sleep waits between iterations; swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Poller. metrics may be nil.
func New(client Client, cfg Config, metrics *Metrics) (*Poller, error) {
	if client == nil {
		return nil, fmt.Errorf("poller: client is required")
	}
	if cfg.Contract == "" || cfg.Account == "" {
		return nil, fmt.Errorf("poller: contract and account are required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("poller: interval must be positive, got %s", cfg.Interval)
	}
	if cfg.ViewMethod == "" {
		cfg.ViewMethod = "view_exist_drawable_pool"
	}
	if cfg.DrawMethod == "" {
		cfg.DrawMethod = "pools_prize_draw"
	}
	if cfg.Marker == "" {
		cfg.Marker = "true"
	}
	return &Poller{client: client, cfg: cfg, metrics: metrics, sleep: sleepCtx}, nil
}

// CheckDrawable runs the view call and reports whether its output contains
// the drawable marker.
func (p *Poller) CheckDrawable(ctx context.Context) (bool, error) {
	out, err := p.client.View(ctx, p.cfg.Contract, p.cfg.ViewMethod, nil)
	if err != nil {
		return false, fmt.Errorf("%s: %w", p.cfg.ViewMethod, err)
	}
	logging.Poller("%s result: %s", p.cfg.ViewMethod, strings.TrimSpace(out.Stdout))
	return strings.Contains(out.Stdout, p.cfg.Marker), nil
}

// Draw issues the state-changing draw call with the fixed gas budget.
func (p *Poller) Draw(ctx context.Context) error {
	out, err := p.client.Call(ctx, near.CallRequest{
		Contract: p.cfg.Contract,
		Method:   p.cfg.DrawMethod,
		Account:  p.cfg.Account,
		Gas:      p.cfg.Gas,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", p.cfg.DrawMethod, err)
	}
	logging.Poller("%s result: %s", p.cfg.DrawMethod, strings.TrimSpace(out.Stdout))
	return nil
}

// Tick runs one iteration. Errors never escape; they are logged and
// reflected in the returned Outcome.
func (p *Poller) Tick(ctx context.Context) Outcome {
	p.metrics.iteration()

	drawable, err := p.CheckDrawable(ctx)
	if err != nil {
		p.metrics.failed(StageView)
		logging.PollerError("%v", err)
		return OutcomeFailed
	}
	p.metrics.setDrawable(drawable)
	if !drawable {
		logging.PollerDebug("no drawable pool on %s", p.cfg.Contract)
		return OutcomeIdle
	}

	if err := p.Draw(ctx); err != nil {
		p.metrics.failed(StageDraw)
		logging.PollerError("%v", err)
		return OutcomeFailed
	}
	p.metrics.drew()
	return OutcomeDrawn
}

// Run ticks immediately and then once per interval until ctx ends.
// It only returns ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	logging.Poller("polling %s every %s (draw account %s)", p.cfg.Contract, p.cfg.Interval, p.cfg.Account)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.Tick(ctx)
		if err := p.sleep(ctx, p.cfg.Interval); err != nil {
			logging.Poller("poller stopped: %v", err)
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
