package ccip

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/apollos-finance/bridge-tracker/entity"
)

var (
	PollResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "monitor",
		Subsystem: "ccip",
		Name:      "poll_results_total",
	}, []string{"result"})

	MessageStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "monitor",
		Subsystem: "ccip",
		Name:      "message_status",
		Help:      "1 for the current status of the tracked CCIP message.",
	}, []string{"status"})
)

func observeStatus(status entity.CCIPStatus) {
	for _, s := range entity.AllCCIPStatuses {
		if s == status {
			MessageStatus.WithLabelValues(string(s)).Set(1)
		} else {
			MessageStatus.WithLabelValues(string(s)).Set(0)
		}
	}
}
