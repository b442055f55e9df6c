package store

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/suite"

	"custodia/internal/registry/models"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/sentinel"
)

type RegistryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *RegistryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestRegistryStoreSuite(t *testing.T) {
	suite.Run(t, new(RegistryStoreSuite))
}

func (s *RegistryStoreSuite) newRegistry() *models.Registry {
	r, err := models.NewRegistry(
		domain.Identity(solana.NewWallet().PublicKey()),
		domain.Identity(solana.NewWallet().PublicKey()),
		254,
		time.Now(),
	)
	s.Require().NoError(err)
	return r
}

func (s *RegistryStoreSuite) TestCreateAndGet() {
	s.Run("creates and retrieves the singleton", func() {
		reg := s.newRegistry()
		s.Require().NoError(s.store.Create(s.ctx, reg))

		found, err := s.store.Get(s.ctx)
		s.Require().NoError(err)
		s.Equal(reg.Administrator, found.Administrator)
		s.Equal(reg.Operators, found.Operators)
	})

	s.Run("returns ErrNotFound before initialization", func() {
		empty := NewInMemory()
		_, err := empty.Get(s.ctx)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *RegistryStoreSuite) TestCreateIsIdempotentGuarded() {
	first := s.newRegistry()
	s.Require().NoError(s.store.Create(s.ctx, first))

	err := s.store.Create(s.ctx, s.newRegistry())
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	// First record must be untouched.
	found, err := s.store.Get(s.ctx)
	s.Require().NoError(err)
	s.Equal(first.Administrator, found.Administrator)
}

func (s *RegistryStoreSuite) TestExecute() {
	reg := s.newRegistry()
	s.Require().NoError(s.store.Create(s.ctx, reg))

	s.Run("applies mutation when validation passes", func() {
		op := domain.Identity(solana.NewWallet().PublicKey())
		updated, err := s.store.Execute(s.ctx,
			func(r *models.Registry) error { return r.CanAddOperator() },
			func(r *models.Registry) { r.ApplyAddOperator(op, time.Now()) },
		)
		s.Require().NoError(err)
		s.True(updated.IsOperator(op))
	})

	s.Run("leaves state unchanged when validation fails", func() {
		before, err := s.store.Get(s.ctx)
		s.Require().NoError(err)

		_, err = s.store.Execute(s.ctx,
			func(r *models.Registry) error {
				return dErrors.New(dErrors.CodeUnauthorized, "caller is not the administrator")
			},
			func(r *models.Registry) { r.ApplyAdminRotation(domain.Identity{}, time.Now()) },
		)
		s.Require().Error(err)

		after, err := s.store.Get(s.ctx)
		s.Require().NoError(err)
		s.Equal(before.Administrator, after.Administrator)
		s.Equal(before.Operators, after.Operators)
	})

	s.Run("returns ErrNotFound before initialization", func() {
		empty := NewInMemory()
		_, err := empty.Execute(s.ctx,
			func(*models.Registry) error { return nil },
			func(*models.Registry) {},
		)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}
