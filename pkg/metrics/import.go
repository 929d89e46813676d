package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ImportMetrics tracks catalog import runs.
type ImportMetrics struct {
	duration prometheus.Histogram
	rows     *prometheus.CounterVec
}

func NewImportMetrics(reg prometheus.Registerer) *ImportMetrics {
	if reg == nil {
		return &ImportMetrics{}
	}
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "partsdesk_catalog_import_duration_seconds",
		Help:    "Duration of catalog imports in seconds.",
		Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
	})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "partsdesk_catalog_import_rows_total",
		Help: "Catalog import rows by result.",
	}, []string{"result"})
	reg.MustRegister(duration, rows)
	return &ImportMetrics{duration: duration, rows: rows}
}

// ObserveRun records a finished import.
func (m *ImportMetrics) ObserveRun(duration time.Duration, applied, skipped int) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Observe(duration.Seconds())
	m.rows.WithLabelValues("applied").Add(float64(applied))
	m.rows.WithLabelValues("skipped").Add(float64(skipped))
}
