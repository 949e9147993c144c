package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vuldin/socrev-cms/pkg/monitoring"
)

// Metrics holds the sync loop's Prometheus instruments. A nil *Metrics is
// valid and records nothing, which keeps tests free of registry setup.
type Metrics struct {
	cycles               *prometheus.CounterVec
	cycleDuration        *prometheus.HistogramVec
	postsSynced          *prometheus.CounterVec
	categoryReplacements *prometheus.CounterVec
	lastSuccess          *prometheus.GaugeVec
}

func NewMetrics(collector *monitoring.MetricsCollector) *Metrics {
	return &Metrics{
		cycles: collector.NewCounter(
			"sync_cycles_total",
			"Sync cycles run, by result",
			[]string{"result"},
		),
		cycleDuration: collector.NewHistogram(
			"sync_cycle_duration_seconds",
			"Wall time of sync cycles",
			[]string{},
			[]float64{0.1, 0.5, 1, 5, 15, 60, 300},
		),
		postsSynced: collector.NewCounter(
			"sync_posts_total",
			"Posts pushed to the destination store, by status",
			[]string{"status"},
		),
		categoryReplacements: collector.NewCounter(
			"sync_category_replacements_total",
			"Category snapshot replacements pushed to the destination store",
			[]string{},
		),
		lastSuccess: collector.NewGauge(
			"sync_last_success_timestamp_seconds",
			"Unix time of the last successful sync cycle",
			[]string{},
		),
	}
}

func (m *Metrics) observeCycle(ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.cycles.WithLabelValues(result).Inc()
	m.cycleDuration.WithLabelValues().Observe(elapsed.Seconds())
	if ok {
		m.lastSuccess.WithLabelValues().SetToCurrentTime()
	}
}

func (m *Metrics) countPost(status string) {
	if m == nil {
		return
	}
	m.postsSynced.WithLabelValues(status).Inc()
}

func (m *Metrics) countCategoryReplacement() {
	if m == nil {
		return
	}
	m.categoryReplacements.WithLabelValues().Inc()
}
