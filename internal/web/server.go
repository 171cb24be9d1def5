package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"binnacle/internal/schema"
	"binnacle/internal/sensors"
)

// Config wires the server's handlers to the rest of the daemon. Cache
// and Schema are required; the rest degrade to absent endpoints.
type Config struct {
	Cache    *sensors.Cache
	Schema   *schema.Registry
	Status   *Status
	Settings SettingsStore
	Logs     *LogBuffer
	// Gatherer backs /metrics. Nil leaves the endpoint unregistered.
	Gatherer prometheus.Gatherer
}

func Handler(cfg Config) http.Handler {
	if cfg.Status == nil {
		cfg.Status = NewStatus()
	}

	api := &sensorsAPI{cache: cfg.Cache, schema: cfg.Schema}
	hub := NewStreamHub(cfg.Cache, cfg.Schema)

	r := chi.NewRouter()
	r.Use(requestID)

	r.Route("/api", func(r chi.Router) {
		r.Get("/sensors", api.handleAll)
		r.Get("/sensors/{type}", api.handleType)
		r.Get("/sensors/{type}/{instance}", api.handleInstance)
		r.Get("/sensors/{type}/{instance}/{key}", api.handleMetric)
		r.Get("/schema", api.handleSchema)
		r.Get("/status", statusHandler(cfg.Status, cfg.Cache))
		r.Get("/about", AboutHandler())
		r.Get("/stream", hub.Handler())
		if cfg.Logs != nil {
			r.Get("/logs", cfg.Logs.Handler())
		}
		// Settings does its own method dispatch so GET and POST share
		// the load/save plumbing.
		r.Handle("/settings", cfg.Settings.Handler())
	})

	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	}

	r.Get("/", rootHandler(cfg.Status, cfg.Cache))

	return r
}

// requestID echoes the caller's X-Request-ID or mints one, so a log
// line can be tied to the request that caused it.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func statusHandler(status *Status, cache *sensors.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		snap := status.Snapshot(now)
		if cache != nil {
			snap.Cache = cache.Stats()
		}
		snap.System = snapshotSystem(now)
		writeJSON(w, snap)
	}
}

// rootHandler serves a plain index so a browser pointed at the daemon
// finds the API without documentation.
func rootHandler(status *Status, cache *sensors.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := status.Snapshot(time.Now().UTC())
		var stats sensors.Stats
		if cache != nil {
			stats = cache.Stats()
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>binnacle</title></head><body>")
		_, _ = fmt.Fprintf(w, "<h1>binnacle</h1>")
		_, _ = fmt.Fprintf(w, "<p>Sensor data: <a href=\"/api/sensors\">/api/sensors</a>, live: <a href=\"/api/stream\">/api/stream</a></p>")
		_, _ = fmt.Fprintf(w, "<p>Daemon: <a href=\"/api/status\">/api/status</a>, <a href=\"/api/logs\">/api/logs</a>, <a href=\"/api/about\">/api/about</a>, <a href=\"/metrics\">/metrics</a></p>")
		_, _ = fmt.Fprintf(w, "<pre>uptime_sec=%d\nlines_total=%d\nreadings_total=%d\ninstances=%d\nlast_line_utc=%s</pre>",
			snap.UptimeSec, snap.LinesTotal, snap.ReadingsTotal, stats.Instances, snap.LastLineUTC,
		)
		_, _ = fmt.Fprintf(w, "</body></html>")
	}
}

// writeJSON renders v indented with a trailing newline, the shape every
// JSON endpoint here serves.
func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

func Serve(ctx context.Context, listenAddr string, cfg Config) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           Handler(cfg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
