package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"

	PathCompletion = "completion"
	PathWebhook    = "webhook"
)

var (
	checkoutAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_checkout_attempts_total",
		Help: "Checkout initiations by outcome.",
	}, []string{"outcome"})

	reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_reconciliations_total",
		Help: "Order reconciliation attempts by path and outcome.",
	}, []string{"path", "outcome"})

	reconciliationReplays = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_reconciliation_replays_total",
		Help: "Reconciliation calls short-circuited because the order was already paid.",
	})
)

func ObserveCheckout(outcome string) {
	checkoutAttempts.WithLabelValues(outcome).Inc()
}

func ObserveReconciliation(path, outcome string) {
	reconciliations.WithLabelValues(path, outcome).Inc()
}

func ObserveReplay() {
	reconciliationReplays.Inc()
}

// Handler exposes the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
