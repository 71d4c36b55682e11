// Package metrics exports client activity as prometheus metrics.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/lucasjlepore/fitbridge"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels of fitbridge_queries_total.
const (
	OutcomeOK          = "ok"
	OutcomeNoData      = "no_data"
	OutcomeInvalidDate = "invalid_date"
	OutcomeBackend     = "backend_error"
	OutcomeError       = "error"
)

// Collector implements fitbridge.Observer. A nil *Collector is a no-op.
type Collector struct {
	queries      *prometheus.CounterVec
	listeners    prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

var _ fitbridge.Observer = (*Collector)(nil)

// NewCollector creates the collectors and registers them on reg. A nil reg
// means prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fitbridge_queries_total",
			Help: "Client operations completed, by operation and outcome.",
		}, []string{"op", "outcome"}),
		listeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fitbridge_listeners",
			Help: "Live event subscriptions owned by the client.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fitbridge_http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fitbridge_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(c.queries, c.listeners, c.httpRequests, c.httpDuration)
	return c
}

// QueryDone counts one finished client operation.
func (c *Collector) QueryDone(op string, err error) {
	if c == nil {
		return
	}
	c.queries.WithLabelValues(op, Outcome(err)).Inc()
}

// ListenersChanged records the current number of subscriptions.
func (c *Collector) ListenersChanged(active int) {
	if c == nil {
		return
	}
	c.listeners.Set(float64(active))
}

// Outcome classifies err into one of the Outcome* labels.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	var (
		noData  *fitbridge.NoDataError
		invalid *fitbridge.InvalidDateError
		backend *fitbridge.BackendError
	)
	switch {
	case errors.As(err, &noData):
		return OutcomeNoData
	case errors.As(err, &invalid):
		return OutcomeInvalidDate
	case errors.As(err, &backend):
		return OutcomeBackend
	default:
		return OutcomeError
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts and times requests served by next under route.
func (c *Collector) WrapHandler(route string, next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		c.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		c.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
