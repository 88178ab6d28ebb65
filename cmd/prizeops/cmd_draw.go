package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"prizeops/internal/logging"
	"prizeops/internal/metrics"
	"prizeops/internal/poller"
)

var (
	drawContract    string
	drawAccount     string
	drawInterval    time.Duration
	drawGas         string
	drawMetricsAddr string
	drawOnce        bool
)

// drawCronCmd runs the drawable-pool poller
var drawCronCmd = &cobra.Command{
	Use:   "draw-cron",
	Short: "Poll for drawable pools and trigger the prize draw",
	Long: `Every interval, calls the view method (view_exist_drawable_pool) on the
prize-pool contract. When the result contains "true", calls the draw method
(pools_prize_draw) with a 100 Tgas budget signed by the draw account.

Errors are logged and the loop carries on. It runs until interrupted.

Example:
  SURPRISE_CONTRACT_NAME=prizepool.superise.testnet \
  PRIZE_DRAW_ACCOUNT_NAME=prizedraw.testnet prizeops draw-cron`,
	Args: cobra.NoArgs,
	RunE: runDrawCron,
}

func init() {
	drawCronCmd.Flags().StringVar(&drawContract, "contract", "", "Prize-pool contract (overrides SURPRISE_CONTRACT_NAME)")
	drawCronCmd.Flags().StringVar(&drawAccount, "account", "", "Draw account (overrides PRIZE_DRAW_ACCOUNT_NAME)")
	drawCronCmd.Flags().DurationVar(&drawInterval, "interval", 0, "Delay between iterations (default 40s)")
	drawCronCmd.Flags().StringVar(&drawGas, "gas", "", "Gas for the draw call (default 100000000000000)")
	drawCronCmd.Flags().StringVar(&drawMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	drawCronCmd.Flags().BoolVar(&drawOnce, "once", false, "Run a single iteration and exit")
}

func runDrawCron(cmd *cobra.Command, args []string) error {
	if drawContract != "" {
		cfg.Poller.Contract = drawContract
	}
	if drawAccount != "" {
		cfg.Poller.Account = drawAccount
	}
	if drawInterval > 0 {
		cfg.Poller.Interval = drawInterval.String()
	}
	if drawGas != "" {
		cfg.Poller.Gas = drawGas
	}
	if drawMetricsAddr != "" {
		cfg.Poller.MetricsAddr = drawMetricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	client := newNearClient(cfg, executorFactory(cfg))
	p, err := poller.New(client, poller.Config{
		Contract:   cfg.Poller.Contract,
		Account:    cfg.Poller.Account,
		Gas:        cfg.Poller.Gas,
		Interval:   cfg.GetPollInterval(),
		ViewMethod: cfg.Poller.ViewMethod,
		DrawMethod: cfg.Poller.DrawMethod,
		Marker:     cfg.Poller.DrawableMarker,
	}, poller.NewMetrics(reg))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if drawOnce {
		outcome := p.Tick(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "draw-cron: %s\n", outcome)
		if outcome == poller.OutcomeFailed {
			return fmt.Errorf("iteration failed")
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.Run(gctx)
	})
	if addr := cfg.Poller.MetricsAddr; addr != "" {
		g.Go(func() error {
			serveMetrics(gctx, addr, reg)
			return nil
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("draw-cron stopped")
		return nil
	}
	if err != nil {
		logger.Error("draw-cron failed", zap.Error(err))
	}
	return err
}

// serveMetrics runs the metrics endpoint. A failure is logged and never
// stops the poller.
func serveMetrics(ctx context.Context, addr string, gatherer prometheus.Gatherer) {
	if err := metrics.Serve(ctx, addr, gatherer); err != nil {
		logging.MetricsError("metrics endpoint disabled: %v", err)
	}
}
