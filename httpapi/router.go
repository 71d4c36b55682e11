// Package httpapi exposes a fitbridge.Client over HTTP.
package httpapi

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/lucasjlepore/fitbridge"
	"github.com/lucasjlepore/fitbridge/metrics"
)

type api struct {
	client  *fitbridge.Client
	metrics *metrics.Collector
	log     *slog.Logger
}

// Option configures the router.
type Option func(*api)

// WithMetrics counts and times every route on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(a *api) {
		a.metrics = c
	}
}

// WithLogger sets the logger used for failed responses.
func WithLogger(log *slog.Logger) Option {
	return func(a *api) {
		a.log = log
	}
}

// NewRouter wires all routes served for client.
func NewRouter(client *fitbridge.Client, opts ...Option) *mux.Router {
	a := &api{
		client: client,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.With(slog.String("component", "httpapi"))

	r := mux.NewRouter()
	a.handle(r, "/health", healthHandler, http.MethodGet)
	a.handle(r, "/steps/daily", a.dailySteps, http.MethodGet)
	a.handle(r, "/distance", a.distance, http.MethodGet)
	a.handle(r, "/calories", a.calories, http.MethodGet)
	a.handle(r, "/weight", a.weight, http.MethodGet)
	a.handle(r, "/weight", a.saveWeight, http.MethodPost)
	a.handle(r, "/weight", a.deleteWeight, http.MethodDelete)
	a.handle(r, "/height", a.height, http.MethodGet)
	a.handle(r, "/height", a.saveHeight, http.MethodPost)
	a.handle(r, "/height", a.deleteHeight, http.MethodDelete)
	a.handle(r, "/summary", a.summary, http.MethodGet)
	return r
}

func (a *api) handle(r *mux.Router, path string, fn http.HandlerFunc, method string) {
	r.Handle(path, a.metrics.WrapHandler(method+" "+path, fn)).Methods(method)
}

// Handler adds access logging in Apache combined format and panic recovery
// around h.
func Handler(h http.Handler, accessLog io.Writer) http.Handler {
	recovered := handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(h)
	if accessLog == nil {
		return recovered
	}
	return handlers.CombinedLoggingHandler(accessLog, recovered)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
