package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StatusChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "monitor",
		Subsystem: "tracker",
		Name:      "status_changes_total",
		Help:      "Number of observed status changes of tracked CCIP messages.",
	}, []string{"status"})
	TrackedStep = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "monitor",
		Subsystem: "tracker",
		Name:      "tracked_step",
		Help:      "Shows the persisted progress step of the tracked bridge attempt.",
	})
	ActiveTrackers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "monitor",
		Subsystem: "tracker",
		Name:      "active",
		Help:      "Shows 1 while a CCIP message is being tracked.",
	})
)
