// Package httpapi assembles the HTTP surface: middleware chain, public
// endpoints and the authenticated API.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	applicationhandler "certreg/internal/application/handler"
	evidencehandler "certreg/internal/evidence/handler"
	"certreg/internal/platform/middleware"
)

// Deps are the wired components the router mounts.
type Deps struct {
	Applications *applicationhandler.Handler
	Evidence     *evidencehandler.Handler
	Validator    middleware.TokenValidator
	Limiter      middleware.Limiter
	Logger       *slog.Logger
	Health       func(r chi.Router)
}

// NewRouter builds the full router. Health and metrics stay outside the
// auth chain; everything else requires a valid token.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))

	if deps.Health != nil {
		deps.Health(r)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.Validator, deps.Logger))
		r.Use(middleware.RateLimit(deps.Limiter, deps.Logger))
		deps.Applications.Register(r)
		deps.Evidence.Register(r)
	})
	return r
}
