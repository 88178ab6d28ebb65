package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"prizeops/internal/near"
	"prizeops/internal/tactile/tactiletest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	viewPrefix = []string{"view", "pool.testnet", "view_exist_drawable_pool"}
	drawPrefix = []string{"call", "pool.testnet", "pools_prize_draw"}
)

func testConfig() Config {
	return Config{
		Contract: "pool.testnet",
		Account:  "prizedraw.testnet",
		Gas:      "100000000000000",
		Interval: 40 * time.Second,
	}
}

func newPoller(t *testing.T, fake *tactiletest.Executor, reg *prometheus.Registry) *Poller {
	t.Helper()
	var m *Metrics
	if reg != nil {
		m = NewMetrics(reg)
	}
	p, err := New(near.NewClient(fake), testConfig(), m)
	require.NoError(t, err)
	return p
}

func metricValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return 0
}

func TestTick_DrawableTriggersExactlyOneDraw(t *testing.T) {
	fake := tactiletest.New().
		On(viewPrefix, tactiletest.Response{Stdout: "View call: pool.testnet.view_exist_drawable_pool()\ntrue\n"})
	reg := prometheus.NewRegistry()
	p := newPoller(t, fake, reg)

	for i := 1; i <= 3; i++ {
		assert.Equal(t, OutcomeDrawn, p.Tick(context.Background()))
		assert.Equal(t, i, fake.CountPrefix(drawPrefix...))
	}

	draw := fake.Calls()[1]
	assert.Equal(t, []string{
		"call", "pool.testnet", "pools_prize_draw",
		"--accountId", "prizedraw.testnet", "--gas", "100000000000000",
	}, draw.Arguments)

	assert.Equal(t, 3.0, metricValue(t, reg, "prizeops_poller_iterations_total", nil))
	assert.Equal(t, 3.0, metricValue(t, reg, "prizeops_poller_draws_total", nil))
	assert.Equal(t, 1.0, metricValue(t, reg, "prizeops_poller_drawable", nil))
	assert.Greater(t, metricValue(t, reg, "prizeops_poller_last_draw_timestamp_seconds", nil), 0.0)
}

func TestTick_NotDrawableSkipsDraw(t *testing.T) {
	fake := tactiletest.New().
		On(viewPrefix, tactiletest.Response{Stdout: "View call: pool.testnet.view_exist_drawable_pool()\nfalse\n"})
	reg := prometheus.NewRegistry()
	p := newPoller(t, fake, reg)

	assert.Equal(t, OutcomeIdle, p.Tick(context.Background()))
	assert.Equal(t, 1, fake.CountPrefix(viewPrefix...))
	assert.Equal(t, 0, fake.CountPrefix("call"))
	assert.Equal(t, 0.0, metricValue(t, reg, "prizeops_poller_drawable", nil))
}

func TestTick_ViewFailureIsSwallowed(t *testing.T) {
	fake := tactiletest.New().
		On(viewPrefix, tactiletest.Response{ExitCode: 1, Stderr: "Error: RPC timeout"})
	reg := prometheus.NewRegistry()
	p := newPoller(t, fake, reg)

	assert.Equal(t, OutcomeFailed, p.Tick(context.Background()))
	assert.Equal(t, 0, fake.CountPrefix("call"))
	assert.Equal(t, 1.0, metricValue(t, reg, "prizeops_poller_failures_total", map[string]string{"stage": StageView}))
}

func TestTick_DrawFailureIsSwallowed(t *testing.T) {
	fake := tactiletest.New().
		On(viewPrefix, tactiletest.Response{Stdout: "true"}).
		On(drawPrefix, tactiletest.Response{ExitCode: 1, Stderr: "Exceeded the prepaid gas"})
	reg := prometheus.NewRegistry()
	p := newPoller(t, fake, reg)

	assert.Equal(t, OutcomeFailed, p.Tick(context.Background()))
	assert.Equal(t, 1.0, metricValue(t, reg, "prizeops_poller_failures_total", map[string]string{"stage": StageDraw}))
	assert.Equal(t, 0.0, metricValue(t, reg, "prizeops_poller_draws_total", nil))
}

func TestTick_InfrastructureErrorIsSwallowed(t *testing.T) {
	fake := tactiletest.New()
	fake.Fallback = tactiletest.Response{Err: errors.New("binary not allowed")}
	p := newPoller(t, fake, nil)

	assert.Equal(t, OutcomeFailed, p.Tick(context.Background()))
}

func TestCheckDrawable_CustomMarker(t *testing.T) {
	fake := tactiletest.New().
		On([]string{"view", "pool.testnet", "has_pending"}, tactiletest.Response{Stdout: "1"})
	cfg := testConfig()
	cfg.ViewMethod = "has_pending"
	cfg.Marker = "1"
	p, err := New(near.NewClient(fake), cfg, nil)
	require.NoError(t, err)

	ok, err := p.CheckDrawable(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRun_ContinuesAfterErrorsUntilCanceled(t *testing.T) {
	var views atomic.Int32
	fake := tactiletest.New()
	// alternate: fail, drawable, not drawable, ...
	fake.OnFunc(func(args []string) bool {
		return tactiletest.HasPrefix(args, viewPrefix) && views.Add(1)%3 == 1
	}, tactiletest.Response{ExitCode: 1, Stderr: "boom"})
	fake.OnFunc(func(args []string) bool {
		return tactiletest.HasPrefix(args, viewPrefix) && views.Load()%3 == 2
	}, tactiletest.Response{Stdout: "true"})
	fake.Fallback = tactiletest.Response{Stdout: "false"}

	p := newPoller(t, fake, nil)

	ctx, cancel := context.WithCancel(context.Background())
	var sleeps []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		if len(sleeps) == 6 {
			cancel()
		}
		return ctx.Err()
	}

	err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, sleeps, 6)
	for _, d := range sleeps {
		assert.Equal(t, 40*time.Second, d)
	}
	assert.Equal(t, 6, fake.CountPrefix(viewPrefix...))
	assert.Equal(t, 2, fake.CountPrefix(drawPrefix...))
}

func TestRun_RealSleepStopsOnCancel(t *testing.T) {
	fake := tactiletest.New()
	fake.Fallback = tactiletest.Response{Stdout: "false"}
	cfg := testConfig()
	cfg.Interval = 10 * time.Millisecond
	p, err := New(near.NewClient(fake), cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err = p.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, fake.CountPrefix(viewPrefix...), 2)
}

func TestNew_Validation(t *testing.T) {
	client := near.NewClient(tactiletest.New())

	_, err := New(nil, testConfig(), nil)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.Account = ""
	_, err = New(client, cfg, nil)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Interval = 0
	_, err = New(client, cfg, nil)
	assert.Error(t, err)

	p, err := New(client, testConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, "view_exist_drawable_pool", p.cfg.ViewMethod)
	assert.Equal(t, "pools_prize_draw", p.cfg.DrawMethod)
	assert.Equal(t, "true", p.cfg.Marker)
}
