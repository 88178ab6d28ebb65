package poller

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Failure stages reported on the failures counter.
const (
	StageView = "view"
	StageDraw = "draw"
)

// Metrics holds the poller's Prometheus collectors.
type Metrics struct {
	iterations prometheus.Counter
	draws      prometheus.Counter
	failures   *prometheus.CounterVec
	drawable   prometheus.Gauge
	lastDraw   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "prizeops",
			Subsystem: "poller",
			Name:      "iterations_total",
			Help:      "Number of poll iterations run.",
		}),
		draws: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "prizeops",
			Subsystem: "poller",
			Name:      "draws_total",
			Help:      "Number of prize draw calls that exited cleanly.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prizeops",
			Subsystem: "poller",
			Name:      "failures_total",
			Help:      "Number of swallowed errors by stage.",
		}, []string{"stage"}),
		drawable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "prizeops",
			Subsystem: "poller",
			Name:      "drawable",
			Help:      "1 if the last view call reported a drawable pool.",
		}),
		lastDraw: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "prizeops",
			Subsystem: "poller",
			Name:      "last_draw_timestamp_seconds",
			Help:      "Unix time of the last clean draw call.",
		}),
	}
	reg.MustRegister(m.iterations, m.draws, m.failures, m.drawable, m.lastDraw)
	return m
}

// The methods below tolerate a nil receiver so a Poller can run without metrics.

func (m *Metrics) iteration() {
	if m != nil {
		m.iterations.Inc()
	}
}

func (m *Metrics) setDrawable(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.drawable.Set(1)
	} else {
		m.drawable.Set(0)
	}
}

func (m *Metrics) drew() {
	if m != nil {
		m.draws.Inc()
		m.lastDraw.SetToCurrentTime()
	}
}

func (m *Metrics) failed(stage string) {
	if m != nil {
		m.failures.WithLabelValues(stage).Inc()
	}
}
