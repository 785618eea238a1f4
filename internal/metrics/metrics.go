package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recipe outcomes.
const (
	OutcomeFetched = "fetched"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
	OutcomeIndexed = "indexed"
)

// Run collects the counters of a single crawl in a private registry, so
// they can be dumped as a node-exporter textfile when the run ends.
type Run struct {
	reg             *prometheus.Registry
	recipes         *prometheus.CounterVec
	requestDuration prometheus.Histogram
	lastRun         prometheus.Gauge
	now             func() time.Time
}

// New creates the run metrics for mode.
func New(mode string) *Run {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"mode": mode}

	return &Run{
		reg: reg,
		recipes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "soupchef_recipes_total",
				Help:        "Recipes handled during the last run by outcome",
				ConstLabels: labels,
			},
			[]string{"outcome"}, // fetched, skipped, failed or indexed
		),
		requestDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:        "soupchef_request_duration_seconds",
				Help:        "Duration of outbound HTTP requests, excluding the rate limit delay",
				ConstLabels: labels,
				Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		lastRun: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "soupchef_last_run_timestamp_seconds",
				Help:        "Unix time the last run finished",
				ConstLabels: labels,
			},
		),
		now: time.Now,
	}
}

func (r *Run) RecipeFetched() { r.recipes.WithLabelValues(OutcomeFetched).Inc() }
func (r *Run) RecipeSkipped() { r.recipes.WithLabelValues(OutcomeSkipped).Inc() }
func (r *Run) RecipeFailed()  { r.recipes.WithLabelValues(OutcomeFailed).Inc() }
func (r *Run) RecipeIndexed() { r.recipes.WithLabelValues(OutcomeIndexed).Inc() }

// ObserveRequest records one request duration.
func (r *Run) ObserveRequest(d time.Duration) {
	r.requestDuration.Observe(d.Seconds())
}

// Registry exposes the underlying registry.
func (r *Run) Registry() *prometheus.Registry { return r.reg }

// WriteTextfile stamps the finish time and writes all metrics to path.
func (r *Run) WriteTextfile(path string) error {
	r.lastRun.Set(float64(r.now().Unix()))
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
