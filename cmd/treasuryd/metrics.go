package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treasury_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "endpoint", "code"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "treasury_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treasury_errors_total",
			Help: "Total number of failed operations by ABCI code",
		},
		[]string{"code"},
	)
)

// recordError records a failed operation metric.
func recordError(code uint32) {
	errorsTotal.WithLabelValues(strconv.FormatUint(uint64(code), 10)).Inc()
}

// instrument wraps the handler so that every request is counted and timed
// under given endpoint name.
func instrument(endpoint string, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		h.ServeHTTP(sw, r)
		requestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(sw.code)).Inc()
		requestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
