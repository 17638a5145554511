package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec

	// Payment lifecycle metrics
	paymentsCreatedTotal   *prometheus.CounterVec
	paymentChecksTotal     *prometheus.CounterVec
	forwardAttemptsTotal   *prometheus.CounterVec
	forwardedLamportsTotal *prometheus.CounterVec

	// Price feed metrics
	priceFeedRequestsTotal *prometheus.CounterVec

	// HTTP metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS metrics
	natsEventsPublished *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method"},
		),
		paymentsCreatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_created_total",
				Help: "Total number of payments created",
			},
			[]string{"status"},
		),
		paymentChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_checks_total",
				Help: "Total number of payment status checks by resulting state",
			},
			[]string{"state"},
		),
		forwardAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forward_attempts_total",
				Help: "Total number of fund forwarding attempts by outcome",
			},
			[]string{"outcome"},
		),
		forwardedLamportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forwarded_lamports_total",
				Help: "Total lamports moved by forwarding transactions by leg",
			},
			[]string{"leg"},
		),
		priceFeedRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "price_feed_requests_total",
				Help: "Total number of price feed lookups by status",
			},
			[]string{"status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"handler", "method"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by handler, method and status code",
			},
			[]string{"handler", "method", "status"},
		),
		natsEventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_events_published_total",
				Help: "Total number of payment lifecycle events published to NATS",
			},
			[]string{"event_type", "status"},
		),
	}
}

// RecordRPCCall records a Solana RPC call with its duration.
func (m *Metrics) RecordRPCCall(method, status string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method).Observe(duration)
}

// RecordPaymentCreated records a payment creation attempt.
func (m *Metrics) RecordPaymentCreated(status string) {
	m.paymentsCreatedTotal.WithLabelValues(status).Inc()
}

// RecordPaymentCheck records a status check and the state it resolved to.
func (m *Metrics) RecordPaymentCheck(state string) {
	m.paymentChecksTotal.WithLabelValues(state).Inc()
}

// RecordForwardAttempt records a forwarding attempt outcome.
func (m *Metrics) RecordForwardAttempt(outcome string) {
	m.forwardAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordForwardedLamports records lamports moved on a forwarding leg
// ("principal" or "fee").
func (m *Metrics) RecordForwardedLamports(leg string, lamports uint64) {
	m.forwardedLamportsTotal.WithLabelValues(leg).Add(float64(lamports))
}

// RecordPriceFeedRequest records a price feed lookup.
func (m *Metrics) RecordPriceFeedRequest(status string) {
	m.priceFeedRequestsTotal.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records an HTTP request with its duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusClass(statusCode)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
	m.httpRequestDuration.WithLabelValues(handler, method).Observe(duration)
}

// RecordNATSEventPublished records a published lifecycle event.
func (m *Metrics) RecordNATSEventPublished(eventType, status string) {
	m.natsEventsPublished.WithLabelValues(eventType, status).Inc()
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
