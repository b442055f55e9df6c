// Package service orchestrates registry lifecycle: one-time initialization,
// administrator rotation, and operator set mutations. All mutations require
// the caller to equal the current administrator; the check runs inside the
// store's Execute callback so validate-then-mutate is atomic.
package service

import (
	"context"
	"errors"
	"log/slog"

	"custodia/internal/authz"
	"custodia/internal/derive"
	registrymetrics "custodia/internal/registry/metrics"
	"custodia/internal/registry/models"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	audit "custodia/pkg/platform/audit"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/requestcontext"
)

// Store is the registry persistence contract. The cache package wraps any
// implementation transparently.
type Store interface {
	Create(ctx context.Context, registry *models.Registry) error
	Get(ctx context.Context) (*models.Registry, error)
	Execute(ctx context.Context, validate func(*models.Registry) error, mutate func(*models.Registry)) (*models.Registry, error)
}

// AuditEmitter is the slice of the audit publisher the service needs.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event) error
}

type serviceConfig struct {
	logger  *slog.Logger
	metrics *registrymetrics.Metrics
	audit   AuditEmitter
}

type Option func(*serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) { c.logger = logger }
}

func WithMetrics(m *registrymetrics.Metrics) Option {
	return func(c *serviceConfig) { c.metrics = m }
}

func WithAuditEmitter(a AuditEmitter) Option {
	return func(c *serviceConfig) { c.audit = a }
}

// Service coordinates registry operations.
type Service struct {
	registries Store
	deriver    *derive.Deriver
	logger     *slog.Logger
	metrics    *registrymetrics.Metrics
	audit      AuditEmitter
}

func New(registries Store, deriver *derive.Deriver, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registries: registries,
		deriver:    deriver,
		logger:     logger,
		metrics:    cfg.metrics,
		audit:      cfg.audit,
	}
}

// InitializeRegistry creates the singleton registry, seeding administrator as
// the first operator. A second initialization fails with AlreadyInitialized
// and leaves the existing record untouched.
func (s *Service) InitializeRegistry(ctx context.Context, payer, administrator domain.Identity) (*models.Registry, error) {
	if administrator.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "administrator identity is required")
	}

	address, bump, err := s.deriver.DeriveRegistry()
	if err != nil {
		return nil, err
	}
	registry, err := models.NewRegistry(address, administrator, bump, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.registries.Create(ctx, registry); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeAlreadyInitialized, "registry is already initialized")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create registry")
	}

	s.logger.InfoContext(ctx, "registry initialized",
		"administrator", administrator,
		"address", address,
	)
	s.emit(ctx, audit.Event{
		Action:  audit.EventRegistryInitialized,
		Actor:   payer.String(),
		Subject: administrator.String(),
	})
	return registry, nil
}

// UpdateAdmin replaces the administrator. Only the current administrator may
// call it; the operator set is deliberately not touched.
func (s *Service) UpdateAdmin(ctx context.Context, caller, newAdmin domain.Identity) (*models.Registry, error) {
	if newAdmin.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "new administrator identity is required")
	}
	now := requestcontext.Now(ctx)

	updated, err := s.registries.Execute(ctx,
		func(r *models.Registry) error {
			if err := s.deriver.VerifyRegistry(r.Bump, r.Address); err != nil {
				return err
			}
			if err := authz.RequireAdministrator(r, caller); err != nil {
				s.incrementUnauthorized()
				return err
			}
			return r.CanRotateAdmin(newAdmin)
		},
		func(r *models.Registry) {
			r.ApplyAdminRotation(newAdmin, now)
		},
	)
	if err != nil {
		return nil, wrapRegistryErr(err)
	}

	s.logger.InfoContext(ctx, "administrator rotated",
		"caller", caller,
		"new_administrator", newAdmin,
	)
	if s.metrics != nil {
		s.metrics.IncrementAdminRotations()
	}
	s.emit(ctx, audit.Event{
		Action:  audit.EventAdminRotated,
		Actor:   caller.String(),
		Subject: newAdmin.String(),
	})
	return updated, nil
}

// UpdateOperator appends or removes an operator. Add tolerates duplicates
// but fails with CapacityExceeded past the storage bound; remove deletes
// every occurrence.
func (s *Service) UpdateOperator(ctx context.Context, caller, operator domain.Identity, add bool) (*models.Registry, error) {
	if operator.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "operator identity is required")
	}
	now := requestcontext.Now(ctx)

	updated, err := s.registries.Execute(ctx,
		func(r *models.Registry) error {
			if err := s.deriver.VerifyRegistry(r.Bump, r.Address); err != nil {
				return err
			}
			if err := authz.RequireAdministrator(r, caller); err != nil {
				s.incrementUnauthorized()
				return err
			}
			if add {
				return r.CanAddOperator()
			}
			return nil
		},
		func(r *models.Registry) {
			if add {
				r.ApplyAddOperator(operator, now)
			} else {
				r.ApplyRemoveOperator(operator, now)
			}
		},
	)
	if err != nil {
		return nil, wrapRegistryErr(err)
	}

	action := audit.EventOperatorRemoved
	metricAction := "remove"
	if add {
		action = audit.EventOperatorAdded
		metricAction = "add"
	}
	s.logger.InfoContext(ctx, "operator set mutated",
		"caller", caller,
		"operator", operator,
		"action", metricAction,
	)
	if s.metrics != nil {
		s.metrics.IncrementOperatorMutation(metricAction)
	}
	s.emit(ctx, audit.Event{
		Action:  action,
		Actor:   caller.String(),
		Subject: operator.String(),
	})
	return updated, nil
}

// Get returns the current registry record.
func (s *Service) Get(ctx context.Context) (*models.Registry, error) {
	registry, err := s.registries.Get(ctx)
	if err != nil {
		return nil, wrapRegistryErr(err)
	}
	return registry, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.audit.Emit(ctx, event); err != nil {
		// The mutation already happened; losing an audit event must not
		// fail the operation.
		s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}

func (s *Service) incrementUnauthorized() {
	if s.metrics != nil {
		s.metrics.IncrementUnauthorized()
	}
}

func wrapRegistryErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "registry is not initialized")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "registry store failure")
}
