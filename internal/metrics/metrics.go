package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// API client metrics

	APIRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tienda",
		Name:      "api_request_duration_seconds",
		Help:      "Latency of storefront API calls.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"endpoint", "status"})

	APIRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tienda",
		Name:      "api_requests_total",
		Help:      "Total storefront API calls.",
	}, []string{"endpoint", "status"})

	// Auth store metrics

	LoginAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tienda",
		Name:      "login_attempts_total",
		Help:      "Login attempts, by outcome.",
	}, []string{"outcome"})

	SessionChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tienda",
		Name:      "session_checks_total",
		Help:      "Startup session validations, by outcome.",
	}, []string{"outcome"})

	// Cart store metrics

	CartLines = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tienda",
		Name:      "cart_lines",
		Help:      "Number of distinct lines currently in the cart.",
	})

	CartItems = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tienda",
		Name:      "cart_items",
		Help:      "Total item quantity currently in the cart.",
	})
)

func Register() {
	prometheus.MustRegister(
		APIRequestDuration,
		APIRequestsTotal,
		LoginAttemptsTotal,
		SessionChecksTotal,
		CartLines,
		CartItems,
	)
}

func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}
