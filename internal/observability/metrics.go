// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Auction metrics
	AuctionsInitialized prometheus.Counter
	ClaimsTotal         *prometheus.CounterVec
	ClaimErrors         *prometheus.CounterVec
	SettledLamports     prometheus.Counter
	LastSettledPrice    prometheus.Gauge

	// Latency metrics
	OperationDuration *prometheus.HistogramVec
	RPCCallLatency    *prometheus.HistogramVec

	// Feed metrics
	FeedSubscribers prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered on reg.
// A nil reg registers on the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "dutch_auction"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		AuctionsInitialized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "initialized_total",
			Help:      "Total number of auctions initialized",
		}),
		ClaimsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "claims_total",
			Help:      "Total number of claims by outcome",
		}, []string{"outcome"}),
		ClaimErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "claim_errors_total",
			Help:      "Total number of failed claims by reason",
		}, []string{"reason"}),
		SettledLamports: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "settled_lamports_total",
			Help:      "Total lamports paid to sellers by settled auctions",
		}),
		LastSettledPrice: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "last_settled_price_lamports",
			Help:      "Price of the most recent settlement",
		}),

		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "latency",
			Name:      "operation_duration_seconds",
			Help:      "Duration of auction operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "latency",
			Name:      "rpc_call_seconds",
			Help:      "Latency of cluster RPC calls",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method"}),

		FeedSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Current number of price feed websocket subscribers",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordAuctionInitialized increments the initialized auctions counter.
func RecordAuctionInitialized() {
	DefaultMetrics.AuctionsInitialized.Inc()
}

// RecordClaim records a claim that produced an outcome.
func RecordClaim(outcome string) {
	DefaultMetrics.ClaimsTotal.WithLabelValues(outcome).Inc()
}

// RecordClaimError records a claim that failed.
func RecordClaimError(reason string) {
	DefaultMetrics.ClaimErrors.WithLabelValues(reason).Inc()
}

// RecordSettlement records lamports moved by a settlement.
func RecordSettlement(lamports uint64) {
	DefaultMetrics.SettledLamports.Add(float64(lamports))
	DefaultMetrics.LastSettledPrice.Set(float64(lamports))
}

// RecordOperation records the duration of an auction operation.
func RecordOperation(operation string, seconds float64) {
	DefaultMetrics.OperationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// FeedSubscribed adjusts the subscriber gauge by delta.
func FeedSubscribed(delta int) {
	DefaultMetrics.FeedSubscribers.Add(float64(delta))
}
