package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/veritas-legal/clausecore/internal/handler"
	"github.com/veritas-legal/clausecore/internal/middleware"
)

// Dependencies holds all injected services needed by the router.
type Dependencies struct {
	DB         handler.DBPinger
	Audit      handler.Degradable
	Build      handler.BuildInfo
	Metrics    *middleware.Metrics
	MetricsReg *prometheus.Registry

	Orchestrator handler.Orchestrator
	SourceStore  handler.SourceLister

	APIBearerToken     string
	ChatSigningSecret  string
	DefaultSlackSource string

	// RequestTimeout bounds /query end to end. Zero falls back to 45s.
	RequestTimeout time.Duration

	QueryRateLimiter *middleware.RateLimiter
	SlackRateLimiter *middleware.RateLimiter
}

// New creates and configures the Chi router with all routes.
func New(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Logging)
	if deps.Metrics != nil {
		r.Use(middleware.Monitoring(deps.Metrics))
	}

	r.Get("/health", handler.Health(deps.DB, deps.Build.Version))
	r.Get("/ready", handler.Ready(deps.DB, deps.Audit))
	r.Get("/version", handler.Version(deps.Build))
	if deps.MetricsReg != nil {
		r.Handle("/metrics", middleware.MetricsHandler(deps.MetricsReg))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(deps.APIBearerToken))
		if deps.QueryRateLimiter != nil {
			r.Use(middleware.RateLimit(deps.QueryRateLimiter))
		}
		requestTimeout := deps.RequestTimeout
		if requestTimeout <= 0 {
			requestTimeout = 45 * time.Second
		}
		r.With(middleware.Timeout(requestTimeout)).Post("/query", handler.Query(deps.Orchestrator))
		r.Get("/sources", handler.Sources(deps.SourceStore))
		r.Get("/sources/{name}", handler.SourceDetail(deps.SourceStore))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.VerifySignature(deps.ChatSigningSecret))
		if deps.SlackRateLimiter != nil {
			r.Use(middleware.RateLimit(deps.SlackRateLimiter))
		}
		r.Post("/slack/command", handler.SlackCommand(handler.SlackCommandDeps{
			Orchestrator:  deps.Orchestrator,
			DefaultSource: deps.DefaultSlackSource,
		}))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "route not found",
		})
	})

	return r
}
