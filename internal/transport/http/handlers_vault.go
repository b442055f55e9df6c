package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"custodia/internal/vault/models"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/httputil"
	"custodia/pkg/requestcontext"
)

// VaultService is the slice of the vault service the transport needs.
type VaultService interface {
	InitializeVault(ctx context.Context, payer, owner domain.Identity) (*models.VaultRecord, error)
	GetVault(ctx context.Context, owner domain.Identity) (*models.VaultRecord, error)
	TransferNative(ctx context.Context, caller, to domain.Identity, amount uint64) error
	TransferToken(ctx context.Context, caller, from, to, mint domain.Identity, amount uint64) error
	TransferTokenByOperator(ctx context.Context, caller, owner, from, to, mint domain.Identity, amount uint64) error
	WithdrawAllToken(ctx context.Context, caller, owner, from, to, mint domain.Identity) error
	CloseTokenSubAccount(ctx context.Context, caller, subAccount, destination domain.Identity) error
	CloseTokenSubAccountByOperator(ctx context.Context, caller, owner, subAccount, destination domain.Identity) error
	ApproveDelegate(ctx context.Context, caller, subAccount, delegate domain.Identity, amount uint64) error
	RevokeDelegate(ctx context.Context, caller, subAccount, delegate domain.Identity) error
}

// VaultHandler serves the vault lifecycle and custody endpoints.
type VaultHandler struct {
	vault  VaultService
	logger *slog.Logger
}

func NewVaultHandler(vault VaultService, logger *slog.Logger) *VaultHandler {
	return &VaultHandler{vault: vault, logger: logger}
}

// Register mounts the vault routes. Owner-class operations act on the
// caller's own vault; operator-class routes name the target owner in the
// path.
func (h *VaultHandler) Register(r chi.Router) {
	r.Post("/vaults", h.handleInitialize)
	r.Get("/vaults/{owner}", h.handleGet)

	r.Post("/vaults/transfers/native", h.handleTransferNative)
	r.Post("/vaults/transfers/token", h.handleTransferToken)
	r.Post("/vaults/subaccounts/close", h.handleClose)
	r.Post("/vaults/delegates/approve", h.handleApprove)
	r.Post("/vaults/delegates/revoke", h.handleRevoke)

	r.Post("/vaults/{owner}/transfers/token", h.handleOperatorTransferToken)
	r.Post("/vaults/{owner}/withdrawals", h.handleWithdrawAll)
	r.Post("/vaults/{owner}/subaccounts/close", h.handleOperatorClose)
}

type initializeVaultRequest struct {
	Owner domain.Identity `json:"owner"`
}

type nativeTransferRequest struct {
	To     domain.Identity `json:"to"`
	Amount uint64          `json:"amount"`
}

type tokenTransferRequest struct {
	From   domain.Identity `json:"from"`
	To     domain.Identity `json:"to"`
	Mint   domain.Identity `json:"mint"`
	Amount uint64          `json:"amount"`
}

type withdrawAllRequest struct {
	From domain.Identity `json:"from"`
	To   domain.Identity `json:"to"`
	Mint domain.Identity `json:"mint"`
}

type closeSubAccountRequest struct {
	SubAccount  domain.Identity `json:"sub_account"`
	Destination domain.Identity `json:"destination"`
}

type delegateRequest struct {
	SubAccount domain.Identity `json:"sub_account"`
	Delegate   domain.Identity `json:"delegate"`
	Amount     uint64          `json:"amount,omitempty"`
}

type vaultResponse struct {
	Address domain.Identity `json:"address"`
	Owner   domain.Identity `json:"owner"`
}

func (h *VaultHandler) handleInitialize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[initializeVaultRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	rec, err := h.vault.InitializeVault(ctx, requestcontext.Caller(ctx), req.Owner)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, vaultResponse{Address: rec.Address, Owner: rec.Owner})
}

func (h *VaultHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.pathOwner(w, r)
	if !ok {
		return
	}
	rec, err := h.vault.GetVault(r.Context(), owner)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, vaultResponse{Address: rec.Address, Owner: rec.Owner})
}

func (h *VaultHandler) handleTransferNative(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[nativeTransferRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respond(w, h.vault.TransferNative(ctx, requestcontext.Caller(ctx), req.To, req.Amount))
}

func (h *VaultHandler) handleTransferToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[tokenTransferRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respond(w, h.vault.TransferToken(ctx, requestcontext.Caller(ctx), req.From, req.To, req.Mint, req.Amount))
}

func (h *VaultHandler) handleOperatorTransferToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.pathOwner(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[tokenTransferRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respond(w, h.vault.TransferTokenByOperator(ctx, requestcontext.Caller(ctx), owner, req.From, req.To, req.Mint, req.Amount))
}

func (h *VaultHandler) handleWithdrawAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.pathOwner(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[withdrawAllRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respond(w, h.vault.WithdrawAllToken(ctx, requestcontext.Caller(ctx), owner, req.From, req.To, req.Mint))
}

func (h *VaultHandler) handleClose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[closeSubAccountRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respond(w, h.vault.CloseTokenSubAccount(ctx, requestcontext.Caller(ctx), req.SubAccount, req.Destination))
}

func (h *VaultHandler) handleOperatorClose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := h.pathOwner(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[closeSubAccountRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respond(w, h.vault.CloseTokenSubAccountByOperator(ctx, requestcontext.Caller(ctx), owner, req.SubAccount, req.Destination))
}

func (h *VaultHandler) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[delegateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respond(w, h.vault.ApproveDelegate(ctx, requestcontext.Caller(ctx), req.SubAccount, req.Delegate, req.Amount))
}

func (h *VaultHandler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[delegateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.respond(w, h.vault.RevokeDelegate(ctx, requestcontext.Caller(ctx), req.SubAccount, req.Delegate))
}

func (h *VaultHandler) pathOwner(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	owner, err := domain.ParseIdentity(chi.URLParam(r, "owner"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "owner path parameter must be a base58 identity"))
		return domain.Identity{}, false
	}
	return owner, true
}

func (h *VaultHandler) respond(w http.ResponseWriter, err error) {
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
