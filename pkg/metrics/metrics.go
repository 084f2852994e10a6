// Package metrics exposes Prometheus instrumentation shared by the three
// services: HTTP request counters/latency plus the ledger business counters.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests processed",
		},
		[]string{"service", "method", "endpoint", "status_code"},
	)

	requestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_latency_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)

	// DepositCount counts successfully completed deposits.
	DepositCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_deposits_total",
		Help: "Number of deposits completed successfully",
	})

	// TransferCount counts successfully completed interbank transfers.
	TransferCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_transfers_total",
		Help: "Number of interbank transfers completed successfully",
	})

	// P2PTransferCount counts successfully completed in-house transfers.
	P2PTransferCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_p2p_transfers_total",
		Help: "Number of P2P transfers completed successfully",
	})

	// ContributionCount counts successfully completed group contributions.
	ContributionCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_contributions_total",
		Help: "Number of group contributions completed successfully",
	})

	// ReconciliationFlagged tracks transactions currently needing operator
	// attention, as seen by the reconciliation sweeper.
	ReconciliationFlagged = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ledger_reconciliation_flagged",
		Help: "Transactions flagged for operator reconciliation by status",
	}, []string{"status"})
)

// Middleware records request count and latency for every route. Routed
// path templates are used so path parameters do not explode cardinality.
func Middleware(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		requestLatency.WithLabelValues(service, endpoint).
			Observe(time.Since(start).Seconds())
		requestCount.WithLabelValues(
			service,
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
	}
}

// Handler serves the Prometheus scrape endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
