package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "context_rot"
	subsystem = "drift"
)

// Trigger labels.
const (
	TriggerAuto   = "auto"
	TriggerManual = "manual"
)

// DriftMetrics exposes counters, histograms and gauges for drift monitoring.
type DriftMetrics struct {
	evaluationsTotal  *prometheus.CounterVec
	similarity        prometheus.Histogram
	degradedTotal     prometheus.Counter
	supervisorTotal   *prometheus.CounterVec
	supervisorLatency prometheus.Histogram
	activeSessions    prometheus.Gauge
	evictionsTotal    *prometheus.CounterVec
	alertsTotal       *prometheus.CounterVec
	subscribers       prometheus.Gauge
}

func NewDriftMetrics(reg prometheus.Registerer) *DriftMetrics {
	m := &DriftMetrics{
		evaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "evaluations_total",
			Help:      "Total drift evaluations by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		similarity: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "similarity_score",
			Help:      "Similarity between the goal and the recent conversation window",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		degradedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "degraded_total",
			Help:      "Evaluations scored with the lexical overlap fallback",
		}),
		supervisorTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "analyses_total",
			Help:      "Supervisor analyses by source",
		}, []string{"source"}),
		supervisorLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "latency_seconds",
			Help:      "Latency of supervisor analyses",
			Buckets:   prometheus.DefBuckets,
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Live monitored sessions",
		}),
		evictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "evictions_total",
			Help:      "Sessions removed from the registry by reason",
		}, []string{"reason"}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "written_total",
			Help:      "Drift alerts written to the journal by status",
		}, []string{"status"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "subscribers",
			Help:      "Connected verdict stream subscribers",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.evaluationsTotal, m.similarity, m.degradedTotal,
		m.supervisorTotal, m.supervisorLatency,
		m.activeSessions, m.evictionsTotal,
		m.alertsTotal, m.subscribers,
	)
	return m
}

// ObserveEvaluation records one verdict.
func (m *DriftMetrics) ObserveEvaluation(trigger string, score float64, drifting, degraded bool) {
	if m == nil {
		return
	}
	outcome := "on_track"
	if drifting {
		outcome = "drifting"
	}
	m.evaluationsTotal.WithLabelValues(trigger, outcome).Inc()
	m.similarity.Observe(score)
	if degraded {
		m.degradedTotal.Inc()
	}
}

func (m *DriftMetrics) ObserveSupervisor(source string, seconds float64) {
	if m == nil {
		return
	}
	m.supervisorTotal.WithLabelValues(source).Inc()
	m.supervisorLatency.Observe(seconds)
}

func (m *DriftMetrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func (m *DriftMetrics) ObserveEviction(reason string) {
	if m == nil {
		return
	}
	m.evictionsTotal.WithLabelValues(reason).Inc()
}

func (m *DriftMetrics) ObserveAlert(status string) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(status).Inc()
}

func (m *DriftMetrics) AddSubscribers(delta int) {
	if m == nil {
		return
	}
	m.subscribers.Add(float64(delta))
}
