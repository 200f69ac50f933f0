// Package metrics defines the Prometheus metrics exported by the account service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "accounts"

// ChangesProposed counts pending changes created.
// Label kind: signup, login, username, password, email, delete.
var ChangesProposed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "changes_proposed_total",
		Help:      "Total number of pending changes created.",
	},
	[]string{"kind"},
)

// ChangesConfirmed counts confirmation attempts by outcome (ok, not_found, step_mismatch, conflict, error).
var ChangesConfirmed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "changes_confirmed_total",
		Help:      "Total number of confirmation attempts by outcome.",
	},
	[]string{"outcome"},
)

// DeliveryFailures counts notifier failures.
var DeliveryFailures = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "delivery_failures_total",
		Help:      "Total number of confirmation codes that could not be delivered.",
	},
)

// SweptRows counts rows removed by the expiry sweeper.
// Label kind: changes, unverified, idle.
var SweptRows = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "swept_rows_total",
		Help:      "Total number of rows removed by the expiry sweeper.",
	},
	[]string{"kind"},
)

// SweepErrors counts failed sweep steps.
var SweepErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweep_errors_total",
		Help:      "Total number of sweep steps that failed.",
	},
	[]string{"kind"},
)

// RPCDuration observes handler latency by method and gRPC code.
var RPCDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rpc_duration_seconds",
		Help:      "Duration of gRPC handlers.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "code"},
)

// Handler exposes the default registry.
func Handler() http.Handler { return promhttp.Handler() }
