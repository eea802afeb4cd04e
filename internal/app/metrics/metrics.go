// Package metrics exposes Prometheus collectors for the wallet core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	balanceRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletcore",
			Subsystem: "session",
			Name:      "balance_refreshes_total",
			Help:      "Total number of balance refresh attempts.",
		},
		[]string{"status"},
	)

	authorizations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletcore",
			Subsystem: "auth",
			Name:      "authorizations_total",
			Help:      "Total number of wallet authorization handshakes.",
		},
		[]string{"kind", "status"},
	)

	transactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletcore",
			Subsystem: "stake",
			Name:      "transactions_total",
			Help:      "Total number of stake transactions by terminal outcome.",
		},
		[]string{"outcome"},
	)

	rpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletcore",
			Subsystem: "chain",
			Name:      "rpc_requests_total",
			Help:      "Total number of ledger RPC requests by method and status.",
		},
		[]string{"method", "status"},
	)

	confirmationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "walletcore",
			Subsystem: "stake",
			Name:      "confirmation_duration_seconds",
			Help:      "Time from sign-and-send to a terminal confirmation state.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10), // 500ms to ~4m
		},
	)
)

func init() {
	Registry.MustRegister(balanceRefreshes, authorizations, transactions, rpcRequests, confirmationDuration)
}

// ObserveBalanceRefresh records a balance refresh attempt.
func ObserveBalanceRefresh(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	balanceRefreshes.WithLabelValues(status).Inc()
}

// ObserveAuthorization records an authorization handshake. kind is "connect"
// or "reauthorize".
func ObserveAuthorization(kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	authorizations.WithLabelValues(kind, status).Inc()
}

// ObserveTransaction records a terminal transaction outcome: "confirmed",
// "denied", "expired", "timeout", or "failed".
func ObserveTransaction(outcome string) {
	transactions.WithLabelValues(outcome).Inc()
}

// ObserveRPCRequest records one ledger RPC call.
func ObserveRPCRequest(method string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	rpcRequests.WithLabelValues(method, status).Inc()
}

// ObserveConfirmation records the duration of a confirmation wait.
func ObserveConfirmation(seconds float64) {
	confirmationDuration.Observe(seconds)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
