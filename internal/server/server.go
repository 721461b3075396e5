// Package server exposes the simulation's published snapshot, persisted
// values and metrics over HTTP. Handlers never touch the engine: they read
// immutable snapshots and the value store only.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/hugenum/internal/health"
	"github.com/mohammed-shakir/hugenum/internal/logger"
	"github.com/mohammed-shakir/hugenum/internal/middleware"
	"github.com/mohammed-shakir/hugenum/internal/observability"
	"github.com/mohammed-shakir/hugenum/internal/sim"
	"github.com/mohammed-shakir/hugenum/pkg/decimal"
	"github.com/mohammed-shakir/hugenum/pkg/safeconv"
)

type SnapshotSource interface {
	Snapshot() *sim.Snapshot
}

type ValueLoader interface {
	Load(ctx context.Context, name string) (decimal.Decimal, bool, error)
}

type Deps struct {
	Log         *slog.Logger
	HTTP        *observability.HTTPMetrics
	Metrics     http.Handler
	MetricsPath string
	Snapshots   SnapshotSource
	// Values is consulted for names the snapshot does not carry; may be nil.
	Values ValueLoader
	Ready  map[string]health.Checker
}

// NewRouter wires every route.
func NewRouter(d Deps) http.Handler {
	log := logger.OrNop(d.Log)
	r := chi.NewRouter()
	r.Use(middleware.Recover(log))
	r.Use(middleware.Logging(log, d.HTTP))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(d.Ready, 2*time.Second))
	if d.Metrics != nil {
		path := d.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, d.Metrics)
	}
	r.Get("/stats", handleStats(d.Snapshots))
	r.Get("/values/{name}", handleValue(d.Snapshots, d.Values, log))
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func handleStats(src SnapshotSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, src.Snapshot())
	}
}

type valueResp struct {
	Name      string `json:"name"`
	Canonical string `json:"canonical"`
	Formatted string `json:"formatted"`
	Magnitude string `json:"magnitude"`
	Source    string `json:"source"`
}

func handleValue(src SnapshotSource, store ValueLoader, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if v, ok := src.Snapshot().Values[name]; ok {
			writeJSON(w, http.StatusOK, valueResp{
				Name: name, Canonical: v.Canonical, Formatted: v.Formatted, Magnitude: v.Magnitude, Source: "live",
			})
			return
		}
		if store == nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		d, ok, err := store.Load(r.Context(), name)
		if err != nil {
			log.LogAttrs(r.Context(), slog.LevelWarn, "value load failed", slog.String("name", name), slog.Any("err", err))
			http.Error(w, "value store unavailable", http.StatusBadGateway)
			return
		}
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		// per request: converters are not safe for concurrent use
		conv := safeconv.New(nil)
		writeJSON(w, http.StatusOK, valueResp{
			Name:      name,
			Canonical: conv.ToString(d),
			Formatted: conv.Format(d),
			Magnitude: conv.DescribeMagnitude(d).String(),
			Source:    "store",
		})
	}
}

// Run serves h on addr until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, addr string, h http.Handler, log *slog.Logger) error {
	log = logger.OrNop(log)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http listen", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
