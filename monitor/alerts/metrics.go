package alerts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messageLabels = []string{"message_id", "tx_hash", "status"}

var (
	AlertStuckMessage = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "alert",
		Subsystem: "tracker",
		Name:      "stuck_message",
		Help:      "Shows CCIP messages not yet recorded by the destination receiver.",
	}, messageLabels)
	AlertUnexecutedDeposit = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "alert",
		Subsystem: "tracker",
		Name:      "unexecuted_deposit",
		Help:      "Shows deposits recorded by the destination receiver but not executed.",
	}, messageLabels)
	AlertFailedMessage = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "alert",
		Subsystem: "tracker",
		Name:      "failed_message",
		Help:      "Shows CCIP messages that were marked as failed.",
	}, messageLabels)
)
