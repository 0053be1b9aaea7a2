package matchingress

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HealthCheck is one dependency check for /healthz.
type HealthCheck func(ctx context.Context) error

// RouterConfig is what NewRouter mounts.
type RouterConfig struct {
	Handler *Handler
	Limiter *IPRateLimiter
	Metrics http.Handler
	Checks  map[string]HealthCheck
}

// NewRouter builds the public HTTP surface. Evidence endpoints are rate
// limited per IP; health and metrics are not.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthz(cfg.Checks))
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Group(func(r chi.Router) {
		if cfg.Limiter != nil {
			r.Use(RateLimit(cfg.Limiter))
		}
		r.Use(middleware.Timeout(10 * time.Second))
		cfg.Handler.Routes(r)
	})
	return r
}

func healthz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		report := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				report[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(report)
	}
}
