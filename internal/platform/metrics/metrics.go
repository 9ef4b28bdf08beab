package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for merges and DOI dispatch.
type Metrics struct {
	MergeRuns   *prometheus.CounterVec
	DOIDispatch *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MergeRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scholarsphere_merge_runs_total",
			Help: "Collection merges by result (success, rejected, failed)",
		}, []string{"result"}),
		DOIDispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scholarsphere_doi_dispatch_total",
			Help: "DOI dispatches by resource kind and action taken",
		}, []string{"kind", "action"}),
	}
	reg.MustRegister(m.MergeRuns, m.DOIDispatch)
	return m
}

func (m *Metrics) IncMerge(result string) {
	if m == nil {
		return
	}
	m.MergeRuns.WithLabelValues(result).Inc()
}

func (m *Metrics) IncDOIDispatch(kind, action string) {
	if m == nil {
		return
	}
	m.DOIDispatch.WithLabelValues(kind, action).Inc()
}
