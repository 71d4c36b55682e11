package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/lucasjlepore/fitbridge"
	"github.com/lucasjlepore/fitbridge/events"
	"github.com/lucasjlepore/fitbridge/fitstore"
	"github.com/lucasjlepore/fitbridge/httpapi"
	"github.com/lucasjlepore/fitbridge/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	var (
		addr    = flag.String("addr", envOr("FITBRIDGE_ADDR", ":8080"), "Listen address")
		dataDir = flag.String("data", envOr("FITBRIDGE_DATA", ""), "Directory of .fit files loaded at startup")
		tz      = flag.String("tz", "", "IANA zone calendar days are computed in (default local)")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log = log.With(slog.String("service", "fitserve"))

	loc := time.Local
	if *tz != "" {
		var err error
		loc, err = time.LoadLocation(*tz)
		if err != nil {
			log.Error("load_time_zone_failed", slog.String("tz", *tz), slog.Any("err", err))
			os.Exit(2)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	emitter := events.NewEmitter()
	store := fitstore.New(emitter, fitstore.WithLogger(log), fitstore.WithLocation(loc))
	if *dataDir != "" {
		if err := store.LoadDir(ctx, *dataDir); err != nil {
			log.Error("load_fit_files_failed", slog.String("dir", *dataDir), slog.Any("err", err))
			os.Exit(1)
		}
		log.Info("fit_files_loaded", slog.String("dir", *dataDir))
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	client := fitbridge.New(store, store, emitter,
		fitbridge.WithLocation(loc),
		fitbridge.WithObserver(collector),
	)
	defer client.Close()

	client.ObserveHistory(func(p events.Payload) {
		log.Info("step_history_changed", slog.Any("samples", p["samples"]))
	})
	client.OnAuthorize(func(events.Payload) { log.Info("authorized") })
	client.OnAuthorizeFailure(func(p events.Payload) {
		log.Warn("authorization_failed", slog.Any("message", p["message"]))
	})
	client.Authorize(ctx)

	results := client.StartRecording(ctx, func(s fitbridge.RecordingStatus) {
		log.Info("recording_status", slog.String("type", s.Type.String()), slog.Bool("recording", s.Recording))
	})
	for _, r := range results {
		if r.Err != nil {
			log.Warn("recording_not_started", slog.String("type", r.Type.String()), slog.Any("err", r.Err))
		}
	}

	router := httpapi.NewRouter(client, httpapi.WithMetrics(collector), httpapi.WithLogger(log))
	root := mux.NewRouter()
	root.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	root.PathPrefix("/").Handler(router)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           httpapi.Handler(root, os.Stdout),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown_failed", slog.Any("err", err))
		}
	}()

	log.Info("listening", slog.String("addr", *addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server_failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
