package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FlowStateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "monitor",
		Subsystem: "bridge",
		Name:      "flow_state",
		Help:      "1 for the current state of the bridge flow.",
	}, []string{"state"})

	ActionResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "monitor",
		Subsystem: "bridge",
		Name:      "action_results_total",
	}, []string{"action", "result"})
)

func observeFlowState(state FlowState) {
	for _, s := range AllFlowStates {
		if s == state {
			FlowStateGauge.WithLabelValues(string(s)).Set(1)
		} else {
			FlowStateGauge.WithLabelValues(string(s)).Set(0)
		}
	}
}
