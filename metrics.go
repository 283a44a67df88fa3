package casal

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts model runs on a private registry so several batches in one
// process do not collide
type Metrics struct {
	Registry  *prometheus.Registry
	runs      prometheus.Counter
	penalties prometheus.Counter
	objective prometheus.Gauge
	duration  prometheus.Histogram
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		runs: f.NewCounter(prometheus.CounterOpts{
			Namespace: "casal",
			Name:      "runs_total",
			Help:      "Completed model runs.",
		}),
		penalties: f.NewCounter(prometheus.CounterOpts{
			Namespace: "casal",
			Name:      "penalty_triggers_total",
			Help:      "Penalties triggered across all runs.",
		}),
		objective: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "casal",
			Name:      "objective",
			Help:      "Objective function value of the last completed run.",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "casal",
			Name:      "run_duration_seconds",
			Help:      "Wall time of one model run.",
			Buckets:   prometheus.ExponentialBuckets(.001, 4, 8),
		}),
	}
}

func (mt *Metrics) observe(r *Result, penalties int, d time.Duration) {
	mt.runs.Inc()
	mt.penalties.Add(float64(penalties))
	mt.objective.Set(r.Objective)
	mt.duration.Observe(d.Seconds())
}

// WriteToTextfile writes the metrics in the node exporter textfile format
func (mt *Metrics) WriteToTextfile(fp string) error {
	return prometheus.WriteToTextfile(fp, mt.Registry)
}
