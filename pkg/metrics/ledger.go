package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ledger outcomes.
const (
	OutcomeOK                = "ok"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeStale             = "stale"
	OutcomeNotFound          = "not_found"
	OutcomeError             = "error"
)

// LedgerMetrics counts stock ledger primitive calls by outcome.
type LedgerMetrics struct {
	operations *prometheus.CounterVec
	units      *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger counters on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "partsdesk_ledger_operations_total",
		Help: "Stock ledger primitive calls by operation and outcome.",
	}, []string{"op", "outcome"})
	units := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "partsdesk_ledger_units_total",
		Help: "Units moved by successful stock ledger operations.",
	}, []string{"op"})
	reg.MustRegister(operations, units)
	return &LedgerMetrics{operations: operations, units: units}
}

// Observe records one call; qty is only counted for successful calls.
func (l *LedgerMetrics) Observe(op, outcome string, qty int) {
	if l == nil || l.operations == nil {
		return
	}
	l.operations.WithLabelValues(normalizeLabel(op), outcome).Inc()
	if outcome == OutcomeOK && qty > 0 {
		l.units.WithLabelValues(normalizeLabel(op)).Add(float64(qty))
	}
}
