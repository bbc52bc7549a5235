package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MarketDebt = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "monitor",
		Subsystem: "dashboard",
		Name:      "market_debt_usdc",
		Help:      "Shows the USDC debt of every vault market on the lending pool.",
	}, []string{"vault"})
	HealthFactor = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "monitor",
		Subsystem: "dashboard",
		Name:      "health_factor",
		Help:      "Shows the lowest health factor of the vault markets with debt, 0 without debt.",
	})
	Utilization = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "monitor",
		Subsystem: "dashboard",
		Name:      "utilization_rate",
		Help:      "Shows the USDC utilization rate of the lending pool in percent.",
	})
)

func observe(lb *LendBorrow) {
	for _, m := range lb.Markets {
		MarketDebt.WithLabelValues(m.Vault).Set(m.DebtUSDC)
	}
	if lb.HealthFactor != nil {
		HealthFactor.Set(*lb.HealthFactor)
	} else {
		HealthFactor.Set(0)
	}
	Utilization.Set(lb.UtilizationRate)
}
