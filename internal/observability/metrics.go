package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batterycare_requests_total",
			Help: "Total HTTP requests",
		}, []string{"code"},
	)
	Latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "batterycare_request_duration_seconds",
		Help:    "Request latency seconds",
		Buckets: prometheus.DefBuckets,
	})
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "batterycare_in_flight",
		Help: "In-flight HTTP requests",
	})
	StateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batterycare_state_transitions_total",
			Help: "App state transitions by terminal state",
		}, []string{"state"},
	)
	ResolutionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "batterycare_resolution_duration_seconds",
		Help:    "Time from cold start to a terminal app state",
		Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 15, 30},
	})
	ResolveErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batterycare_resolve_errors_total",
			Help: "Errors swallowed during state resolution, by source",
		}, []string{"source"},
	)
)

func init() {
	prometheus.MustRegister(RequestsTotal, Latency, InFlight, StateTransitions, ResolutionDuration, ResolveErrors)
}

func MetricsHandler() http.Handler { return promhttp.Handler() }

type rec struct {
	http.ResponseWriter
	code int
}

func (r *rec) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func Measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		InFlight.Inc()
		defer InFlight.Dec()

		rr := &rec{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rr, r)

		Latency.Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(strconv.Itoa(rr.code)).Inc()
	})
}
