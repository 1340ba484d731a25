package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HealthCheck reports whether a dependency is healthy.
type HealthCheck func(ctx context.Context) error

// NewRouter returns the observability router: the metrics endpoint and
// /healthz. Each named check runs on every /healthz request.
func NewRouter(m *Metrics, cfg MetricsConfig, checks map[string]HealthCheck) chi.Router {
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Method(http.MethodGet, path, m.Handler())
	r.Get("/healthz", healthHandler(checks))

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		body := map[string]any{"status": "healthy", "checks": results}
		if status != http.StatusOK {
			body["status"] = "unhealthy"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

// NewServer returns an HTTP server for the observability router.
func NewServer(m *Metrics, cfg MetricsConfig, checks map[string]HealthCheck) *http.Server {
	return &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           NewRouter(m, cfg, checks),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
