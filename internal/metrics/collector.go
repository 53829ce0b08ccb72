// Package metrics exposes Prometheus metrics for the session and the HTTP
// layer.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/mhpenta/imagestudio"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records session lifecycle events and HTTP requests on its own
// registry.
type Collector struct {
	registry *prometheus.Registry

	submitsTotal   *prometheus.CounterVec
	submitDuration *prometheus.HistogramVec
	inFlight       prometheus.Gauge
	uploadsTotal   *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// starts holds start times of calls in flight, by request token.
	mu     sync.Mutex
	starts map[string]time.Time
}

var _ imagestudio.Observer = (*Collector)(nil)

// NewCollector creates a collector whose metrics are prefixed with namespace.
// Go runtime and process collectors are registered too.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		starts:   make(map[string]time.Time),
		submitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submits_total",
				Help:      "Generation submits by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		submitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "submit_duration_seconds",
				Help:      "Time from submit to resolution",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"mode"},
		),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "submits_in_flight",
			Help:      "Generation calls currently in flight",
		}),
		uploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploads_total",
				Help:      "Image uploads by slot and outcome",
			},
			[]string{"slot", "outcome"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Registry returns the registry the metrics live on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// SubmitStarted implements imagestudio.Observer.
func (c *Collector) SubmitStarted(token string, _ imagestudio.Mode) {
	c.mu.Lock()
	c.starts[token] = time.Now()
	c.mu.Unlock()
	c.inFlight.Inc()
}

// SubmitFinished implements imagestudio.Observer. Submits that never started
// a call, such as validation failures, are counted without touching the
// in-flight gauge or the duration histogram.
func (c *Collector) SubmitFinished(token string, mode imagestudio.Mode, status imagestudio.Status, err error) {
	c.submitsTotal.WithLabelValues(mode.String(), submitOutcome(status, err)).Inc()

	c.mu.Lock()
	start, ok := c.starts[token]
	delete(c.starts, token)
	c.mu.Unlock()
	if !ok {
		return
	}

	c.inFlight.Dec()
	c.submitDuration.WithLabelValues(mode.String()).Observe(time.Since(start).Seconds())
}

// ImageUploaded implements imagestudio.Observer.
func (c *Collector) ImageUploaded(slot imagestudio.Slot, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.uploadsTotal.WithLabelValues(strconv.Itoa(int(slot)), outcome).Inc()
}

func submitOutcome(status imagestudio.Status, err error) string {
	switch {
	case errors.Is(err, imagestudio.ErrSuperseded):
		return "superseded"
	case err == nil && status == imagestudio.StatusResulted:
		return "resulted"
	case imagestudio.IsRateLimitError(err):
		return "rate_limited"
	}
	switch imagestudio.KindOf(err) {
	case imagestudio.KindValidation:
		return "validation"
	default:
		return "failed"
	}
}

// RecordHTTPRequest records one served request. route is the matched route
// pattern, not the raw path.
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
