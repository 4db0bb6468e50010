package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vladislavdragonenkov/subway/internal/domain"
)

// OutboxMetrics — метрики публикации transactional outbox.
type OutboxMetrics struct {
	attempts       *prometheus.CounterVec
	pending        prometheus.Gauge
	oldestAge      prometheus.Gauge
	cleanupRuns    *prometheus.CounterVec
	cleanupDeleted prometheus.Counter
}

// NewOutboxMetrics регистрирует метрики в DefaultRegisterer.
func NewOutboxMetrics() *OutboxMetrics {
	return NewOutboxMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOutboxMetricsWithRegisterer регистрирует метрики в переданном registerer.
func NewOutboxMetricsWithRegisterer(registerer prometheus.Registerer) *OutboxMetrics {
	return &OutboxMetrics{
		attempts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "subway_outbox_publish_attempts_total",
			Help: "Total number of outbox publish attempts grouped by result.",
		}, []string{"result"}),
		pending: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "subway_outbox_pending_records",
			Help: "Current number of pending records in transactional outbox.",
		}),
		oldestAge: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "subway_outbox_oldest_pending_age_seconds",
			Help: "Age in seconds of the oldest pending outbox record.",
		}),
		cleanupRuns: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "subway_outbox_cleanup_runs_total",
			Help: "Total number of outbox retention cleanup runs grouped by result.",
		}, []string{"result"}),
		cleanupDeleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "subway_outbox_cleanup_deleted_total",
			Help: "Total number of sent outbox records removed by retention cleanup.",
		}),
	}
}

// RecordCleanup фиксирует прогон очистки: result: ok или error.
func (m *OutboxMetrics) RecordCleanup(result string, deleted int) {
	if m == nil {
		return
	}
	m.cleanupRuns.WithLabelValues(result).Inc()
	if deleted > 0 {
		m.cleanupDeleted.Add(float64(deleted))
	}
}

// RecordAttempt увеличивает счётчик попыток с указанным результатом
// (sent, retry_error, failed, dlq_failed).
func (m *OutboxMetrics) RecordAttempt(result string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(result).Inc()
}

// SetBacklog обновляет gauges backlog.
func (m *OutboxMetrics) SetBacklog(stats domain.OutboxStats, now time.Time) {
	if m == nil {
		return
	}
	m.pending.Set(float64(stats.PendingCount))
	if stats.PendingCount == 0 || stats.OldestPendingAt.IsZero() {
		m.oldestAge.Set(0)
		return
	}

	age := now.Sub(stats.OldestPendingAt).Seconds()
	if age < 0 {
		age = 0
	}
	m.oldestAge.Set(age)
}
