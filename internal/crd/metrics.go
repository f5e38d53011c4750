package crd

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the run collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	merges      *prometheus.CounterVec
	hitsMerged  *prometheus.CounterVec
	hitsDropped *prometheus.CounterVec
	violations  *prometheus.CounterVec
	runs        *prometheus.CounterVec
	events      prometheus.Counter
	energy      prometheus.Gauge
	runDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg.
// With a nil reg the collectors are created but not registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		merges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crd_merges_total",
			Help: "Event batches merged into the run aggregate by category",
		}, []string{"category"}),
		hitsMerged: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crd_hits_merged_total",
			Help: "Hit records offered to the run aggregate by category",
		}, []string{"category"}),
		hitsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crd_hits_dropped_total",
			Help: "Hit records discarded by the retention policy by category",
		}, []string{"category"}),
		violations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crd_contract_violations_total",
			Help: "Lifecycle contract violations by kind",
		}, []string{"kind"}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crd_runs_total",
			Help: "Finished runs by result",
		}, []string{"result"}),
		events: f.NewCounter(prometheus.CounterOpts{
			Name: "crd_events_total",
			Help: "Events ended by all workers",
		}),
		energy: f.NewGauge(prometheus.GaugeOpts{
			Name: "crd_energy_deposit_ev",
			Help: "Total energy deposited in the scoring volume by the last finalized run, eV",
		}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "crd_run_duration_seconds",
			Help:    "Wall time from BeginRun to the end of the result write",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		}),
	}
}

func (m *Metrics) observeMerge(c HitCategory, offered, dropped int) {
	if m == nil {
		return
	}
	l := c.String()
	m.merges.WithLabelValues(l).Inc()
	m.hitsMerged.WithLabelValues(l).Add(float64(offered))
	if dropped > 0 {
		m.hitsDropped.WithLabelValues(l).Add(float64(dropped))
	}
}

func (m *Metrics) violation(kind string) {
	if m == nil {
		return
	}
	m.violations.WithLabelValues(kind).Inc()
}

func (m *Metrics) eventEnded() {
	if m == nil {
		return
	}
	m.events.Inc()
}

func (m *Metrics) runStarted() {
	if m == nil {
		return
	}
	m.energy.Set(0)
}

func (m *Metrics) finalized(energy Real) {
	if m == nil {
		return
	}
	m.energy.Set(energy)
}

func (m *Metrics) runEnded(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.runs.WithLabelValues(result).Inc()
	m.runDuration.Observe(d.Seconds())
}
