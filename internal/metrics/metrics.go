package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gauges
var (
	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "model_mirror_active_runs",
		Help: "Number of upload runs accepted and not yet finished",
	})
)

// Counters
var (
	RunsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "model_mirror_runs_started_total",
		Help: "Total upload runs started",
	})
	RunsFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "model_mirror_runs_finished_total",
		Help: "Total upload runs finished by outcome and failure kind",
	}, []string{"outcome", "kind"})
	SearchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "model_mirror_search_requests_total",
		Help: "Total gallery searches by outcome",
	}, []string{"outcome"})
)

// Histograms
var (
	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "model_mirror_run_duration_seconds",
		Help:    "Upload run duration in seconds by outcome",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
	}, []string{"outcome"})
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "model_mirror_stage_duration_seconds",
		Help:    "Time spent in each pipeline state",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"stage"})
	PayloadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "model_mirror_payload_bytes",
		Help:    "Size of fetched asset payloads",
		Buckets: prometheus.ExponentialBuckets(64<<10, 4, 8),
	})
)

// Pipeline reports upload runs to the package metrics
type Pipeline struct{}

func (Pipeline) RunStarted() {
	RunsStartedTotal.Inc()
}

func (Pipeline) RunFinished(outcome, kind string, d time.Duration) {
	RunsFinishedTotal.WithLabelValues(outcome, kind).Inc()
	RunDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (Pipeline) StageCompleted(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (Pipeline) PayloadFetched(bytes int) {
	PayloadBytes.Observe(float64(bytes))
}

func (Pipeline) ActiveRuns(n int) {
	ActiveRuns.Set(float64(n))
}
