// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evidenca_http_requests_total",
		Help: "HTTP requests by method and status code.",
	}, []string{"method", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "evidenca_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	StockMovements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evidenca_stock_movements_total",
		Help: "Committed stock movements by kind.",
	}, []string{"kind"})

	StockRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evidenca_stock_rejections_total",
		Help: "Stock changes refused because a balance would go negative.",
	}, []string{"source"})

	BarcodesAllocated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evidenca_barcodes_allocated_total",
		Help: "Barcodes handed out to new item instances.",
	})

	BarcodeCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evidenca_barcode_collisions_total",
		Help: "Barcode candidates skipped because they were already taken.",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}
