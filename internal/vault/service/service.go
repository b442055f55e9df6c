// Package service implements the custody operations. Every operation follows
// the same shape: pass the authorization gate, reconstruct the vault's
// authority proof from the stored disambiguator, then delegate the balance
// mutation to the external ledger with that proof as the signing authority.
// Errors abort the whole operation; nothing here retries or partially
// applies.
package service

import (
	"context"
	"errors"
	"log/slog"

	"custodia/internal/authz"
	"custodia/internal/derive"
	"custodia/internal/ledger"
	vaultmetrics "custodia/internal/vault/metrics"
	"custodia/internal/vault/models"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	audit "custodia/pkg/platform/audit"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/requestcontext"
)

// Store is the vault record persistence contract.
type Store interface {
	Create(ctx context.Context, rec *models.VaultRecord) error
	FindByOwner(ctx context.Context, owner domain.Identity) (*models.VaultRecord, error)
}

// AuditEmitter is the slice of the audit publisher the service needs.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event) error
}

type serviceConfig struct {
	logger  *slog.Logger
	metrics *vaultmetrics.Metrics
	audit   AuditEmitter
}

type Option func(*serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) { c.logger = logger }
}

func WithMetrics(m *vaultmetrics.Metrics) Option {
	return func(c *serviceConfig) { c.metrics = m }
}

func WithAuditEmitter(a AuditEmitter) Option {
	return func(c *serviceConfig) { c.audit = a }
}

// Service coordinates vault lifecycle and custody operations.
type Service struct {
	vaults  Store
	gate    *authz.Gate
	deriver *derive.Deriver
	ledger  ledger.Ledger
	logger  *slog.Logger
	metrics *vaultmetrics.Metrics
	audit   AuditEmitter
}

func New(vaults Store, gate *authz.Gate, deriver *derive.Deriver, l ledger.Ledger, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		vaults:  vaults,
		gate:    gate,
		deriver: deriver,
		ledger:  l,
		logger:  logger,
		metrics: cfg.metrics,
		audit:   cfg.audit,
	}
}

// InitializeVault creates the vault record for owner, paid for by payer.
// Exactly one record may exist per owner; a second creation fails with
// AlreadyInitialized and leaves the first unchanged.
func (s *Service) InitializeVault(ctx context.Context, payer, owner domain.Identity) (*models.VaultRecord, error) {
	if owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "owner identity is required")
	}

	address, bump, err := s.deriver.DeriveVault(owner)
	if err != nil {
		return nil, err
	}
	rec, err := models.NewVaultRecord(address, owner, bump, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.vaults.Create(ctx, rec); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeAlreadyInitialized, "vault already exists for owner")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create vault")
	}

	s.logger.InfoContext(ctx, "vault initialized",
		"owner", owner.String(),
		"address", address.String(),
	)
	if s.metrics != nil {
		s.metrics.IncrementVaultsInitialized()
	}
	s.emit(ctx, audit.Event{
		Action:  audit.EventVaultInitialized,
		Actor:   payer.String(),
		Subject: owner.String(),
	})
	return rec, nil
}

// GetVault returns the vault record for owner.
func (s *Service) GetVault(ctx context.Context, owner domain.Identity) (*models.VaultRecord, error) {
	rec, err := s.vaults.FindByOwner(ctx, owner)
	if err != nil {
		return nil, wrapVaultErr(err)
	}
	return rec, nil
}

// TransferNative moves native currency out of the caller's own vault.
// Owner-class.
func (s *Service) TransferNative(ctx context.Context, caller, to domain.Identity, amount uint64) (err error) {
	defer s.observe("transfer_native", &err)
	if to.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "destination identity is required")
	}

	proof, err := s.ownerProof(ctx, caller)
	if err != nil {
		return err
	}
	if err := s.ledger.Transfer(ctx, proof.Authority(), to, ledger.NativeMint, amount, proof); err != nil {
		return wrapLedgerErr(err)
	}

	s.emit(ctx, audit.Event{
		Action:  audit.EventNativeTransferred,
		Actor:   caller.String(),
		Subject: caller.String(),
		Account: to.String(),
		Amount:  amount,
	})
	return nil
}

// TransferToken moves tokens between sub-accounts controlled by the
// caller's own vault. Owner-class.
func (s *Service) TransferToken(ctx context.Context, caller, from, to, mint domain.Identity, amount uint64) (err error) {
	defer s.observe("transfer_token", &err)

	proof, err := s.ownerProof(ctx, caller)
	if err != nil {
		return err
	}
	return s.transferToken(ctx, caller, caller, from, to, mint, amount, proof)
}

// TransferTokenByOperator moves tokens out of any vault on behalf of its
// owner. Operator-class.
func (s *Service) TransferTokenByOperator(ctx context.Context, caller, owner, from, to, mint domain.Identity, amount uint64) (err error) {
	defer s.observe("transfer_token_by_operator", &err)

	proof, err := s.operatorProof(ctx, caller, owner)
	if err != nil {
		return err
	}
	return s.transferToken(ctx, caller, owner, from, to, mint, amount, proof)
}

// WithdrawAllToken drains a sub-account completely. Operator-class only.
// The amount is the ledger-read balance at call time, never an
// operator-supplied figure: an operator can neither overdraw nor leave dust
// behind by under-specifying "all".
func (s *Service) WithdrawAllToken(ctx context.Context, caller, owner, from, to, mint domain.Identity) (err error) {
	defer s.observe("withdraw_all_token", &err)

	proof, err := s.operatorProof(ctx, caller, owner)
	if err != nil {
		return err
	}
	amount, err := s.ledger.Balance(ctx, from)
	if err != nil {
		return wrapLedgerErr(err)
	}
	if err := s.ledger.Transfer(ctx, from, to, mint, amount, proof); err != nil {
		return wrapLedgerErr(err)
	}

	s.emit(ctx, audit.Event{
		Action:  audit.EventTokenWithdrawn,
		Actor:   caller.String(),
		Subject: owner.String(),
		Account: from.String(),
		Mint:    mint.String(),
		Amount:  amount,
	})
	return nil
}

// CloseTokenSubAccount closes an empty sub-account of the caller's own
// vault, reclaiming its deposit to destination. Owner-class.
func (s *Service) CloseTokenSubAccount(ctx context.Context, caller, subAccount, destination domain.Identity) (err error) {
	defer s.observe("close_token_subaccount", &err)

	proof, err := s.ownerProof(ctx, caller)
	if err != nil {
		return err
	}
	return s.closeSubAccount(ctx, caller, caller, subAccount, destination, proof)
}

// CloseTokenSubAccountByOperator closes an empty sub-account of any vault.
// Operator-class.
func (s *Service) CloseTokenSubAccountByOperator(ctx context.Context, caller, owner, subAccount, destination domain.Identity) (err error) {
	defer s.observe("close_token_subaccount_by_operator", &err)

	proof, err := s.operatorProof(ctx, caller, owner)
	if err != nil {
		return err
	}
	return s.closeSubAccount(ctx, caller, owner, subAccount, destination, proof)
}

// ApproveDelegate grants delegate a spending right over a sub-account of
// the caller's own vault, scoped to amount. Owner-class only.
func (s *Service) ApproveDelegate(ctx context.Context, caller, subAccount, delegate domain.Identity, amount uint64) (err error) {
	defer s.observe("approve_delegate", &err)
	if delegate.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "delegate identity is required")
	}

	proof, err := s.ownerProof(ctx, caller)
	if err != nil {
		return err
	}
	if err := s.ledger.Approve(ctx, subAccount, delegate, amount, proof); err != nil {
		return wrapLedgerErr(err)
	}

	s.emit(ctx, audit.Event{
		Action:  audit.EventDelegateApproved,
		Actor:   caller.String(),
		Subject: caller.String(),
		Account: subAccount.String(),
		Amount:  amount,
	})
	return nil
}

// RevokeDelegate clears the delegation on a sub-account of the caller's own
// vault. Owner-class only.
func (s *Service) RevokeDelegate(ctx context.Context, caller, subAccount, delegate domain.Identity) (err error) {
	defer s.observe("revoke_delegate", &err)

	proof, err := s.ownerProof(ctx, caller)
	if err != nil {
		return err
	}
	if err := s.ledger.Revoke(ctx, subAccount, proof); err != nil {
		return wrapLedgerErr(err)
	}

	s.emit(ctx, audit.Event{
		Action:  audit.EventDelegateRevoked,
		Actor:   caller.String(),
		Subject: caller.String(),
		Account: subAccount.String(),
	})
	return nil
}

// ownerProof resolves the caller's own vault, passes the owner-class gate,
// and reconstructs the signing proof from the stored disambiguator.
func (s *Service) ownerProof(ctx context.Context, caller domain.Identity) (derive.AuthorityProof, error) {
	rec, err := s.vaults.FindByOwner(ctx, caller)
	if err != nil {
		return derive.AuthorityProof{}, wrapVaultErr(err)
	}
	if err := s.gate.AuthorizeOwner(ctx, caller, rec); err != nil {
		return derive.AuthorityProof{}, err
	}
	return s.deriver.VaultProof(rec.Owner, rec.Bump)
}

// operatorProof resolves the target owner's vault, passes the
// operator-class gate, and reconstructs the signing proof.
func (s *Service) operatorProof(ctx context.Context, caller, owner domain.Identity) (derive.AuthorityProof, error) {
	if owner.IsZero() {
		return derive.AuthorityProof{}, dErrors.New(dErrors.CodeInvalidInput, "vault owner identity is required")
	}
	rec, err := s.vaults.FindByOwner(ctx, owner)
	if err != nil {
		return derive.AuthorityProof{}, wrapVaultErr(err)
	}
	if err := s.gate.AuthorizeOperator(ctx, caller, rec); err != nil {
		return derive.AuthorityProof{}, err
	}
	return s.deriver.VaultProof(rec.Owner, rec.Bump)
}

func (s *Service) transferToken(ctx context.Context, caller, owner, from, to, mint domain.Identity, amount uint64, proof derive.AuthorityProof) error {
	if err := s.ledger.Transfer(ctx, from, to, mint, amount, proof); err != nil {
		return wrapLedgerErr(err)
	}
	s.emit(ctx, audit.Event{
		Action:  audit.EventTokenTransferred,
		Actor:   caller.String(),
		Subject: owner.String(),
		Account: from.String(),
		Mint:    mint.String(),
		Amount:  amount,
	})
	return nil
}

func (s *Service) closeSubAccount(ctx context.Context, caller, owner, subAccount, destination domain.Identity, proof derive.AuthorityProof) error {
	if err := s.ledger.Close(ctx, subAccount, destination, proof); err != nil {
		return wrapLedgerErr(err)
	}
	s.emit(ctx, audit.Event{
		Action:  audit.EventSubAccountClosed,
		Actor:   caller.String(),
		Subject: owner.String(),
		Account: subAccount.String(),
	})
	return nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}

func (s *Service) observe(operation string, err *error) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(operation, *err)
	}
}

func wrapVaultErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "vault not found for owner")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "vault store failure")
}

// wrapLedgerErr translates ledger sentinels without reinterpreting them;
// coded errors pass through verbatim.
func wrapLedgerErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrInsufficientFunds):
		return dErrors.Wrap(err, dErrors.CodeInsufficientFunds, "amount exceeds spendable balance")
	case errors.Is(err, sentinel.ErrNonZeroBalance):
		return dErrors.Wrap(err, dErrors.CodeConflict, "sub-account balance must be zero to close")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "ledger account not found")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "ledger failure")
}
