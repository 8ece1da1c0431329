// Package metrics collects Prometheus metrics for client operations.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the stores and the API client report to
type Recorder interface {
	RecordCartMutation(op string)
	RecordCheckout(outcome string)
	RecordAPIRequest(endpoint string, statusCode int, duration time.Duration)
	RecordSessionEnded(reason string)
}

// Checkout outcomes
const (
	CheckoutRedirected = "redirected"
	CheckoutEmptyCart  = "empty_cart"
	CheckoutFailed     = "failed"
	CheckoutMalformed  = "malformed_response"
)

// Collector is the Prometheus implementation of Recorder
type Collector struct {
	cartMutations *prometheus.CounterVec
	checkouts     *prometheus.CounterVec
	apiRequests   *prometheus.CounterVec
	apiLatency    *prometheus.HistogramVec
	sessionsEnded *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "Cart mutations by operation",
		}, []string{"op"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_checkout_total",
			Help: "Checkout attempts by outcome",
		}, []string{"outcome"}),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_api_requests_total",
			Help: "Backend API requests by endpoint and status code (0 = transport error)",
		}, []string{"endpoint", "status_code"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_api_request_duration_seconds",
			Help:    "Backend API request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		sessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_sessions_ended_total",
			Help: "Sessions ended by reason",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		c.cartMutations,
		c.checkouts,
		c.apiRequests,
		c.apiLatency,
		c.sessionsEnded,
	)

	return c
}

func (c *Collector) RecordCartMutation(op string) {
	c.cartMutations.WithLabelValues(op).Inc()
}

func (c *Collector) RecordCheckout(outcome string) {
	c.checkouts.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordAPIRequest(endpoint string, statusCode int, duration time.Duration) {
	c.apiRequests.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
	c.apiLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (c *Collector) RecordSessionEnded(reason string) {
	c.sessionsEnded.WithLabelValues(reason).Inc()
}

// Handler returns the scrape handler for gatherer
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// WriteFile dumps gatherer in the text exposition format
func WriteFile(path string, gatherer prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, gatherer)
}

// Nop discards everything
type Nop struct{}

func (Nop) RecordCartMutation(string)                   {}
func (Nop) RecordCheckout(string)                       {}
func (Nop) RecordAPIRequest(string, int, time.Duration) {}
func (Nop) RecordSessionEnded(string)                   {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
