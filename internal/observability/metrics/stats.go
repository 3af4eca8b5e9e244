package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Stats is a point-in-time summary of the drift metrics.
type Stats struct {
	Evaluations     uint64            `json:"evaluations"`
	Drifting        uint64            `json:"drifting"`
	DriftRate       float64           `json:"drift_rate"`
	MeanSimilarity  float64           `json:"mean_similarity"`
	Degraded        uint64            `json:"degraded"`
	ActiveSessions  int               `json:"active_sessions"`
	SupervisorCalls map[string]uint64 `json:"supervisor_calls"`
	Evictions       map[string]uint64 `json:"evictions"`
	Subscribers     int               `json:"stream_subscribers"`
}

// Snapshot reads the drift metric families out of gatherer.
func Snapshot(gatherer prometheus.Gatherer) Stats {
	stats := Stats{
		SupervisorCalls: map[string]uint64{},
		Evictions:       map[string]uint64{},
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mfs, err := gatherer.Gather()
	if err != nil {
		return stats
	}

	for _, mf := range mfs {
		if mf == nil {
			continue
		}
		switch mf.GetName() {
		case "context_rot_drift_evaluations_total":
			for _, metric := range mf.Metric {
				n := uint64(metric.GetCounter().GetValue())
				stats.Evaluations += n
				if hasLabel(metric, "outcome", "drifting") {
					stats.Drifting += n
				}
			}
		case "context_rot_drift_similarity_score":
			for _, metric := range mf.Metric {
				h := metric.GetHistogram()
				if h != nil && h.GetSampleCount() > 0 {
					stats.MeanSimilarity = h.GetSampleSum() / float64(h.GetSampleCount())
				}
			}
		case "context_rot_drift_degraded_total":
			for _, metric := range mf.Metric {
				stats.Degraded += uint64(metric.GetCounter().GetValue())
			}
		case "context_rot_supervisor_analyses_total":
			for _, metric := range mf.Metric {
				stats.SupervisorCalls[labelValue(metric, "source")] += uint64(metric.GetCounter().GetValue())
			}
		case "context_rot_sessions_active":
			for _, metric := range mf.Metric {
				stats.ActiveSessions = int(metric.GetGauge().GetValue())
			}
		case "context_rot_sessions_evictions_total":
			for _, metric := range mf.Metric {
				stats.Evictions[labelValue(metric, "reason")] += uint64(metric.GetCounter().GetValue())
			}
		case "context_rot_stream_subscribers":
			for _, metric := range mf.Metric {
				stats.Subscribers = int(metric.GetGauge().GetValue())
			}
		}
	}
	if stats.Evaluations > 0 {
		stats.DriftRate = float64(stats.Drifting) / float64(stats.Evaluations)
	}
	return stats
}

func hasLabel(metric *dto.Metric, name, value string) bool {
	return labelValue(metric, name) == value
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.Label {
		if lp == nil {
			continue
		}
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
