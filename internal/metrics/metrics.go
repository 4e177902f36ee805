// ABOUTME: Prometheus collectors for requests, retries, updates and auth state.
// ABOUTME: Nil-safe recording helpers plus the HTTP handler serving them.

package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tdsession"

// Request outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeEngineError = "engine_error"
	OutcomeTimeout     = "timeout"
	OutcomeNotRunning  = "not_running"
	OutcomeCanceled    = "canceled"
	OutcomeClosed      = "closed"
)

// Collectors is the set of session metrics.
type Collectors struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	retries         *prometheus.CounterVec
	requestDuration prometheus.Histogram
	pending         prometheus.Gauge
	lateResponses   prometheus.Counter
	updates         *prometheus.CounterVec
	decodeErrors    prometheus.Counter
	authStates      *prometheus.CounterVec
	unknownErrors   prometheus.Counter
	running         prometheus.Gauge
}

// New creates collectors on a fresh registry, including Go runtime collectors.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests sent through the session by outcome",
		}, []string{"outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Request attempts retried by reason",
		}, []string{"reason"}), // transport|timeout
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from first attempt to final result",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_requests",
			Help:      "Requests currently waiting for a response",
		}),
		lateResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "late_responses_total",
			Help:      "Responses dropped because their caller had given up",
		}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Unsolicited events by disposition",
		}, []string{"disposition"}), // received|delivered|dropped
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Engine events that could not be decoded",
		}),
		authStates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authorization_states_total",
			Help:      "Authorization states entered",
		}, []string{"state"}),
		unknownErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_engine_errors_total",
			Help:      "Engine errors missing from the error table",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "1 while the session is started",
		}),
	}

	c.registry.MustRegister(
		c.requests,
		c.retries,
		c.requestDuration,
		c.pending,
		c.lateResponses,
		c.updates,
		c.decodeErrors,
		c.authStates,
		c.unknownErrors,
		c.running,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry the collectors live on.
func (c *Collectors) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collectors) ObserveRequest(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(outcome).Inc()
	c.requestDuration.Observe(d.Seconds())
}

func (c *Collectors) IncRetry(reason string) {
	if c == nil {
		return
	}
	c.retries.WithLabelValues(reason).Inc()
}

func (c *Collectors) AddPending(delta float64) {
	if c == nil {
		return
	}
	c.pending.Add(delta)
}

func (c *Collectors) IncLateResponse() {
	if c == nil {
		return
	}
	c.lateResponses.Inc()
}

func (c *Collectors) IncUpdate(disposition string) {
	if c == nil {
		return
	}
	c.updates.WithLabelValues(disposition).Inc()
}

func (c *Collectors) IncDecodeError() {
	if c == nil {
		return
	}
	c.decodeErrors.Inc()
}

func (c *Collectors) IncAuthState(state string) {
	if c == nil {
		return
	}
	c.authStates.WithLabelValues(state).Inc()
}

func (c *Collectors) IncUnknownError() {
	if c == nil {
		return
	}
	c.unknownErrors.Inc()
}

func (c *Collectors) SetRunning(running bool) {
	if c == nil {
		return
	}
	if running {
		c.running.Set(1)
		return
	}
	c.running.Set(0)
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// NewServer returns an HTTP server exposing /metrics and /healthz on addr.
func (c *Collectors) NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintln(w, "ok")
	})
	mux.Handle("/metrics", c.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
