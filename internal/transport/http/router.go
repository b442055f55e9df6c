// Package httptransport wires the HTTP surface: middleware chain, health and
// metrics endpoints, and the registry and vault handlers. Handlers stay
// thin; every decision happens in the domain services.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"custodia/internal/platform/metrics"
	"custodia/internal/platform/middleware"
)

// Dependencies carries everything the router needs.
type Dependencies struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Verifier middleware.TokenVerifier
	Registry RegistryService
	Vault    VaultService
}

// NewRouter assembles the full route tree.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(deps.Logger, deps.Metrics))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	authed := chi.NewRouter()
	authed.Use(middleware.ContentTypeJSON)
	authed.Use(middleware.RequireAuth(deps.Verifier, deps.Logger))
	NewRegistryHandler(deps.Registry, deps.Logger).Register(authed)
	NewVaultHandler(deps.Vault, deps.Logger).Register(authed)
	r.Mount("/v1", authed)

	return r
}
