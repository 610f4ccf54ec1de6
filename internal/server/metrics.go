package server

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	activeRequests   prometheus.Gauge
	analysisDuration *prometheus.HistogramVec
	rateLimited      prometheus.Counter
	alertChecks      *prometheus.CounterVec
	alertsTriggered  prometheus.Counter
	liveClients      prometheus.GaugeFunc
}

// NewMetrics registers the collectors. liveClients reports the connected websocket count.
func NewMetrics(liveClients func() float64) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	if liveClients == nil {
		liveClients = func() float64 { return 0 }
	}
	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "perfscope_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "perfscope_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		activeRequests: factory.NewGauge(prometheus.GaugeOpts{
			Name: "perfscope_http_active_requests",
			Help: "Requests currently being served.",
		}),
		analysisDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "perfscope_analysis_duration_seconds",
			Help:    "Time spent loading and analyzing one window.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"analysis"}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "perfscope_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		alertChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "perfscope_alert_checks_total",
			Help: "Threshold-check passes by outcome.",
		}, []string{"outcome"}),
		alertsTriggered: factory.NewCounter(prometheus.CounterOpts{
			Name: "perfscope_alerts_triggered_total",
			Help: "Alert instances opened by the threshold check.",
		}),
		liveClients: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "perfscope_live_clients",
			Help: "Connected live websocket clients.",
		}, liveClients),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveAnalysis records how long one named analysis took.
func (m *Metrics) ObserveAnalysis(name string, d time.Duration) {
	m.analysisDuration.WithLabelValues(name).Observe(d.Seconds())
}

// Middleware records request counts and latency, labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.activeRequests.Inc()
		defer m.activeRequests.Dec()

		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack hands the connection over for websocket upgrades.
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}
