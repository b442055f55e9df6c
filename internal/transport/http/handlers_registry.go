package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"custodia/internal/registry/models"
	"custodia/pkg/domain"
	"custodia/pkg/platform/httputil"
	"custodia/pkg/requestcontext"
)

// RegistryService is the slice of the registry service the transport needs.
type RegistryService interface {
	InitializeRegistry(ctx context.Context, payer, administrator domain.Identity) (*models.Registry, error)
	UpdateAdmin(ctx context.Context, caller, newAdmin domain.Identity) (*models.Registry, error)
	UpdateOperator(ctx context.Context, caller, operator domain.Identity, add bool) (*models.Registry, error)
	Get(ctx context.Context) (*models.Registry, error)
}

// RegistryHandler serves the registry endpoints.
type RegistryHandler struct {
	registry RegistryService
	logger   *slog.Logger
}

func NewRegistryHandler(registry RegistryService, logger *slog.Logger) *RegistryHandler {
	return &RegistryHandler{registry: registry, logger: logger}
}

// Register mounts the registry routes.
func (h *RegistryHandler) Register(r chi.Router) {
	r.Post("/registry", h.handleInitialize)
	r.Get("/registry", h.handleGet)
	r.Put("/registry/administrator", h.handleUpdateAdmin)
	r.Post("/registry/operators", h.handleAddOperator)
	r.Delete("/registry/operators", h.handleRemoveOperator)
}

type initializeRegistryRequest struct {
	Administrator domain.Identity `json:"administrator"`
}

type rotateAdminRequest struct {
	NewAdministrator domain.Identity `json:"new_administrator"`
}

type operatorRequest struct {
	Operator domain.Identity `json:"operator"`
}

type registryResponse struct {
	Address       domain.Identity   `json:"address"`
	Administrator domain.Identity   `json:"administrator"`
	Operators     []domain.Identity `json:"operators"`
}

func toRegistryResponse(registry *models.Registry) registryResponse {
	return registryResponse{
		Address:       registry.Address,
		Administrator: registry.Administrator,
		Operators:     registry.Operators,
	}
}

func (h *RegistryHandler) handleInitialize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[initializeRegistryRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	registry, err := h.registry.InitializeRegistry(ctx, requestcontext.Caller(ctx), req.Administrator)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRegistryResponse(registry))
}

func (h *RegistryHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	registry, err := h.registry.Get(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRegistryResponse(registry))
}

func (h *RegistryHandler) handleUpdateAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[rotateAdminRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	registry, err := h.registry.UpdateAdmin(ctx, requestcontext.Caller(ctx), req.NewAdministrator)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRegistryResponse(registry))
}

func (h *RegistryHandler) handleAddOperator(w http.ResponseWriter, r *http.Request) {
	h.mutateOperator(w, r, true)
}

func (h *RegistryHandler) handleRemoveOperator(w http.ResponseWriter, r *http.Request) {
	h.mutateOperator(w, r, false)
}

func (h *RegistryHandler) mutateOperator(w http.ResponseWriter, r *http.Request, add bool) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[operatorRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	registry, err := h.registry.UpdateOperator(ctx, requestcontext.Caller(ctx), req.Operator, add)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRegistryResponse(registry))
}
