package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/getmockd/mockd-chaos/pkg/chaos"
)

const namespace = "mockd_chaos"

// Reload results.
const (
	ReloadOK       = "ok"
	ReloadRejected = "rejected"
)

// latencyBuckets spans 1ms to about 30s.
var latencyBuckets = prometheus.ExponentialBuckets(0.001, 2.5, 12)

// Metrics collects chaos metrics. It implements chaos.EventSink.
type Metrics struct {
	registry *prometheus.Registry

	faults   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	reloads  *prometheus.CounterVec
	routes   prometheus.Gauge
	requests *prometheus.CounterVec
}

// New creates a Metrics with a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faults_total",
			Help:      "Number of injected faults.",
		}, []string{"route", "kind", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "latency_seconds",
			Help:      "Planned injected delays in seconds.",
			Buckets:   latencyBuckets,
		}, []string{"route"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reloads_total",
			Help:      "Number of route registry reloads by result.",
		}, []string{"result"}),
		routes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "routes",
			Help:      "Number of route bindings in the active registry.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests served through the chaos front-end.",
		}, []string{"method", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.faults,
		m.latency,
		m.reloads,
		m.routes,
		m.requests,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Emit records an injection event.
func (m *Metrics) Emit(ev chaos.FaultEvent) {
	switch ev.Type {
	case chaos.EventFault:
		m.faults.WithLabelValues(ev.Route, string(ev.Kind), strconv.Itoa(ev.Status)).Inc()
	case chaos.EventLatency:
		m.latency.WithLabelValues(ev.Route).Observe(ev.Delay.Seconds())
	}
}

// ObserveReload records a reload attempt and, on success, the new route count.
func (m *Metrics) ObserveReload(routes int, err error) {
	if err != nil {
		m.reloads.WithLabelValues(ReloadRejected).Inc()
		return
	}
	m.reloads.WithLabelValues(ReloadOK).Inc()
	m.routes.Set(float64(routes))
}

// SetRoutes sets the active route count.
func (m *Metrics) SetRoutes(n int) {
	m.routes.Set(float64(n))
}

// Middleware counts requests by method and final status.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.requests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

var _ chaos.EventSink = (*Metrics)(nil)
