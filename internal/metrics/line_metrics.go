package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vladislavdragonenkov/subway/internal/domain"
)

// Результаты операций над линиями.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// LineMetrics содержит метрики операций сервиса линий.
type LineMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	sections   prometheus.Histogram
}

// NewLineMetrics регистрирует метрики в DefaultRegisterer.
func NewLineMetrics() *LineMetrics {
	return NewLineMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewLineMetricsWithRegisterer регистрирует метрики в переданном registerer.
func NewLineMetricsWithRegisterer(registerer prometheus.Registerer) *LineMetrics {
	return &LineMetrics{
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "subway_line_operations_total",
			Help: "Total number of line operations by result",
		}, []string{"operation", "result"}),
		duration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "subway_line_operation_duration_seconds",
			Help:    "Duration of line operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"operation"}),
		sections: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "subway_line_sections",
			Help:    "Number of sections of a line after a successful mutation",
			Buckets: prometheus.LinearBuckets(1, 5, 10),
		}),
	}
}

// ObserveOperation фиксирует исход и длительность операции.
// Нарушения правил домена считаются rejected, остальные ошибки считаются error.
func (m *LineMetrics) ObserveOperation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, Result(err)).Inc()
	m.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveSections записывает длину цепочки линии.
func (m *LineMetrics) ObserveSections(count int) {
	if m == nil {
		return
	}
	m.sections.Observe(float64(count))
}

// Result классифицирует ошибку операции для label `result`.
func Result(err error) string {
	switch {
	case err == nil:
		return ResultSuccess
	case domain.IsNotFound(err), domain.IsRuleViolation(err), domain.IsConflict(err):
		return ResultRejected
	default:
		return ResultError
	}
}
