package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

var (
	ordersPlaced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chasebot_orders_placed_total",
		Help: "Orders submitted to the exchange.",
	}, []string{"product", "side", "type"})

	slippageEscalations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chasebot_slippage_escalations_total",
		Help: "Chases that hit max slippage and crossed to a market order.",
	}, []string{"product", "side"})

	balanceRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chasebot_balance_refreshes_total",
		Help: "Balance refresh attempts by result.",
	}, []string{"result"})

	fiatEquivalentGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chasebot_fiat_equivalent",
		Help: "Total holdings marked at last known prices, in fiat.",
	})
)

func init() {
	prometheus.MustRegister(ordersPlaced, slippageEscalations, balanceRefreshes, fiatEquivalentGauge)
}

func fiatGaugeValue(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
