package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestDriftMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDriftMetrics(reg)
	m.ObserveEvaluation(TriggerAuto, 0.8, false, false)
	m.ObserveEvaluation(TriggerManual, 0.2, true, true)
	m.ObserveSupervisor("llm", 0.3)
	m.SetActiveSessions(3)
	m.ObserveEviction("idle")
	m.ObserveAlert("ok")
	m.AddSubscribers(1)

	if got := counterValue(t, m.evaluationsTotal.WithLabelValues(TriggerManual, "drifting")); got != 1 {
		t.Fatalf("expected 1 manual drifting evaluation, got %v", got)
	}
	if got := counterValue(t, m.degradedTotal); got != 1 {
		t.Fatalf("expected 1 degraded evaluation, got %v", got)
	}
	var gauge dto.Metric
	if err := m.activeSessions.Write(&gauge); err != nil {
		t.Fatalf("write gauge: %v", err)
	}
	if got := gauge.GetGauge().GetValue(); got != 3 {
		t.Fatalf("expected 3 active sessions, got %v", got)
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		t.Fatalf("write counter: %v", err)
	}
	return metric.GetCounter().GetValue()
}

func TestDriftMetricsNilSafe(t *testing.T) {
	var m *DriftMetrics
	m.ObserveEvaluation(TriggerAuto, 0.5, false, false)
	m.ObserveSupervisor("heuristic", 0)
	m.SetActiveSessions(1)
	m.ObserveEviction("capacity")
	m.ObserveAlert("error")
	m.AddSubscribers(-1)
}

func TestSnapshotAggregates(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDriftMetrics(reg)
	m.ObserveEvaluation(TriggerAuto, 0.9, false, false)
	m.ObserveEvaluation(TriggerAuto, 0.2, true, false)
	m.ObserveEvaluation(TriggerManual, 0.1, true, true)
	m.ObserveEvaluation(TriggerManual, 0.4, true, false)
	m.ObserveSupervisor("llm", 0.1)
	m.ObserveSupervisor("heuristic", 0.0)
	m.ObserveSupervisor("heuristic", 0.0)
	m.SetActiveSessions(2)
	m.ObserveEviction("idle")
	m.AddSubscribers(2)
	m.AddSubscribers(-1)

	s := Snapshot(reg)
	if s.Evaluations != 4 || s.Drifting != 3 {
		t.Fatalf("unexpected evaluation counts %+v", s)
	}
	if s.DriftRate != 0.75 {
		t.Fatalf("expected drift rate 0.75, got %v", s.DriftRate)
	}
	if s.MeanSimilarity < 0.399 || s.MeanSimilarity > 0.401 {
		t.Fatalf("expected mean similarity 0.4, got %v", s.MeanSimilarity)
	}
	if s.Degraded != 1 || s.ActiveSessions != 2 || s.Subscribers != 1 {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if s.SupervisorCalls["heuristic"] != 2 || s.SupervisorCalls["llm"] != 1 {
		t.Fatalf("unexpected supervisor calls %v", s.SupervisorCalls)
	}
	if s.Evictions["idle"] != 1 {
		t.Fatalf("unexpected evictions %v", s.Evictions)
	}
}

func TestSnapshotEmptyRegistry(t *testing.T) {
	s := Snapshot(prometheus.NewRegistry())
	if s.Evaluations != 0 || s.DriftRate != 0 {
		t.Fatalf("expected zero stats, got %+v", s)
	}
}
