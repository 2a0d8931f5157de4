package engine

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

var (
	// planCache counts plan lookups by result (hit, miss).
	planCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sweep",
			Name:      "plan_cache_total",
			Help:      "Plan cache lookups by result",
		},
		[]string{"result"},
	)

	// traversals counts finished traversals by kind and outcome.
	traversals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sweep",
			Name:      "traversals_total",
			Help:      "Finished traversals by collection kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	forcedYields = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sweep",
			Name:      "forced_yields_total",
			Help:      "Tasks forced to yield by an expired time slice, by priority",
		},
		[]string{"priority"},
	)

	liveTasks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sweep",
			Name:      "live_tasks",
			Help:      "Cooperative traversal tasks that have not finished",
		},
	)
)

// MetricSample is one series of a gathered engine metric.
type MetricSample struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
}

// GatherMetrics collects the engine's counters and gauges from g. Families
// outside the sweep namespace are ignored. Samples come back in gather
// order: by name, then by label values.
func GatherMetrics(g prometheus.Gatherer) ([]MetricSample, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}
	var out []MetricSample
	for _, fam := range families {
		if !strings.HasPrefix(fam.GetName(), "sweep_") {
			continue
		}
		for _, m := range fam.GetMetric() {
			s := MetricSample{Name: fam.GetName(), Value: sampleValue(fam.GetType(), m)}
			if pairs := m.GetLabel(); len(pairs) > 0 {
				s.Labels = make(map[string]string, len(pairs))
				for _, lp := range pairs {
					s.Labels[lp.GetName()] = lp.GetValue()
				}
			}
			out = append(out, s)
		}
	}
	return out, nil
}

func sampleValue(typ dto.MetricType, m *dto.Metric) float64 {
	switch typ {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	default:
		return m.GetUntyped().GetValue()
	}
}
