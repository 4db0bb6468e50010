package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/vladislavdragonenkov/subway/internal/domain"
)

func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if labelsMatch(metric, labels) {
				return metric
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return nil
}

func labelsMatch(metric *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(metric.GetLabel()))
	for _, pair := range metric.GetLabel() {
		got[pair.GetName()] = pair.GetValue()
	}
	return fmt.Sprint(got) == fmt.Sprint(want)
}

func TestResult(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{err: nil, want: ResultSuccess},
		{err: domain.ErrLineNotFound, want: ResultRejected},
		{err: fmt.Errorf("wrap: %w", domain.ErrSectionNotMatchable), want: ResultRejected},
		{err: domain.ErrLineVersionConflict, want: ResultRejected},
		{err: errors.New("db down"), want: ResultError},
	}
	for _, tc := range cases {
		if got := Result(tc.err); got != tc.want {
			t.Errorf("Result(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestLineMetrics_ObserveOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLineMetricsWithRegisterer(reg)

	m.ObserveOperation("add_section", nil, 10*time.Millisecond)
	m.ObserveOperation("add_section", nil, 20*time.Millisecond)
	m.ObserveOperation("add_section", domain.ErrSectionInvalidStation, time.Millisecond)
	m.ObserveSections(3)

	success := findMetric(t, reg, "subway_line_operations_total", map[string]string{"operation": "add_section", "result": "success"})
	if success.GetCounter().GetValue() != 2 {
		t.Fatalf("expected 2 successes, got %v", success.GetCounter().GetValue())
	}
	rejected := findMetric(t, reg, "subway_line_operations_total", map[string]string{"operation": "add_section", "result": "rejected"})
	if rejected.GetCounter().GetValue() != 1 {
		t.Fatalf("expected 1 rejection, got %v", rejected.GetCounter().GetValue())
	}
	duration := findMetric(t, reg, "subway_line_operation_duration_seconds", map[string]string{"operation": "add_section"})
	if duration.GetHistogram().GetSampleCount() != 3 {
		t.Fatalf("expected 3 duration samples, got %d", duration.GetHistogram().GetSampleCount())
	}
	sections := findMetric(t, reg, "subway_line_sections", map[string]string{})
	if sections.GetHistogram().GetSampleSum() != 3 {
		t.Fatalf("expected sections sum 3, got %v", sections.GetHistogram().GetSampleSum())
	}
}

func TestLineMetrics_NilSafe(t *testing.T) {
	var m *LineMetrics
	m.ObserveOperation("create_line", nil, time.Millisecond)
	m.ObserveSections(1)

	var h *HTTPMetrics
	h.ObserveRequest("GET", "/lines", 200, time.Millisecond)
}

func TestLineMetrics_ReRegistrationReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewLineMetricsWithRegisterer(reg)
	second := NewLineMetricsWithRegisterer(reg)

	first.ObserveOperation("delete_line", nil, time.Millisecond)
	second.ObserveOperation("delete_line", nil, time.Millisecond)

	metric := findMetric(t, reg, "subway_line_operations_total", map[string]string{"operation": "delete_line", "result": "success"})
	if metric.GetCounter().GetValue() != 2 {
		t.Fatalf("expected shared counter value 2, got %v", metric.GetCounter().GetValue())
	}
}

func TestHTTPMetrics_ObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetricsWithRegisterer(reg)

	m.ObserveRequest("POST", "/lines/{id}/sections", 201, 5*time.Millisecond)
	m.ObserveRequest("GET", "", 404, time.Millisecond)

	created := findMetric(t, reg, "subway_http_requests_total", map[string]string{"method": "POST", "route": "/lines/{id}/sections", "status": "201"})
	if created.GetCounter().GetValue() != 1 {
		t.Fatalf("expected 1 request, got %v", created.GetCounter().GetValue())
	}
	findMetric(t, reg, "subway_http_requests_total", map[string]string{"method": "GET", "route": "unmatched", "status": "404"})
}

func TestOutboxMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetricsWithRegisterer(reg)

	m.RecordAttempt("sent")
	m.RecordAttempt("sent")
	m.RecordAttempt("failed")

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m.SetBacklog(domain.OutboxStats{PendingCount: 4, OldestPendingAt: now.Add(-30 * time.Second)}, now)

	sent := findMetric(t, reg, "subway_outbox_publish_attempts_total", map[string]string{"result": "sent"})
	if sent.GetCounter().GetValue() != 2 {
		t.Fatalf("expected 2 sent attempts, got %v", sent.GetCounter().GetValue())
	}
	pending := findMetric(t, reg, "subway_outbox_pending_records", map[string]string{})
	if pending.GetGauge().GetValue() != 4 {
		t.Fatalf("expected pending 4, got %v", pending.GetGauge().GetValue())
	}
	age := findMetric(t, reg, "subway_outbox_oldest_pending_age_seconds", map[string]string{})
	if age.GetGauge().GetValue() != 30 {
		t.Fatalf("expected age 30s, got %v", age.GetGauge().GetValue())
	}

	m.SetBacklog(domain.OutboxStats{}, now)
	age = findMetric(t, reg, "subway_outbox_oldest_pending_age_seconds", map[string]string{})
	if age.GetGauge().GetValue() != 0 {
		t.Fatalf("expected age reset to 0, got %v", age.GetGauge().GetValue())
	}
}

func TestOutboxMetrics_Cleanup(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetricsWithRegisterer(reg)

	m.RecordCleanup("ok", 3)
	m.RecordCleanup("ok", 0)
	m.RecordCleanup("error", 0)

	ok := findMetric(t, reg, "subway_outbox_cleanup_runs_total", map[string]string{"result": "ok"})
	if ok.GetCounter().GetValue() != 2 {
		t.Fatalf("expected 2 ok runs, got %v", ok.GetCounter().GetValue())
	}
	deleted := findMetric(t, reg, "subway_outbox_cleanup_deleted_total", map[string]string{})
	if deleted.GetCounter().GetValue() != 3 {
		t.Fatalf("expected 3 deleted, got %v", deleted.GetCounter().GetValue())
	}

	var nilMetrics *OutboxMetrics
	nilMetrics.RecordCleanup("ok", 1)
}
