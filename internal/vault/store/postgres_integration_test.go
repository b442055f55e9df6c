//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/suite"

	"custodia/internal/derive"
	"custodia/internal/vault/models"
	"custodia/internal/vault/store"
	"custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
	deriver  *derive.Deriver
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.deriver = derive.New(newID())
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "vaults")
	s.Require().NoError(err)
}

func newID() domain.Identity {
	return domain.Identity(solana.NewWallet().PublicKey())
}

func (s *PostgresStoreSuite) newRecord(owner domain.Identity) *models.VaultRecord {
	address, bump, err := s.deriver.DeriveVault(owner)
	s.Require().NoError(err)
	rec, err := models.NewVaultRecord(address, owner, bump, time.Now().UTC())
	s.Require().NoError(err)
	return rec
}

func (s *PostgresStoreSuite) TestCreateAndFindRoundTrip() {
	ctx := context.Background()
	owner := newID()
	rec := s.newRecord(owner)

	s.Require().NoError(s.store.Create(ctx, rec))

	got, err := s.store.FindByOwner(ctx, owner)
	s.Require().NoError(err)
	s.Equal(rec.Owner, got.Owner)
	s.Equal(rec.Address, got.Address)
	s.Equal(rec.Bump, got.Bump)
	s.WithinDuration(rec.CreatedAt, got.CreatedAt, time.Millisecond)
}

func (s *PostgresStoreSuite) TestFindUnknownOwner() {
	_, err := s.store.FindByOwner(context.Background(), newID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentCreateSameOwner verifies that racing creations for one owner
// admit exactly one record; the losers see ErrConflict.
func (s *PostgresStoreSuite) TestConcurrentCreateSameOwner() {
	ctx := context.Background()
	owner := newID()
	rec := s.newRecord(owner)

	const goroutines = 50
	var wg sync.WaitGroup
	var created, conflicted atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(ctx, rec.Clone())
			if err == nil {
				created.Add(1)
			} else if errors.Is(err, sentinel.ErrConflict) {
				conflicted.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), created.Load(), "exactly one create should succeed")
	s.Equal(int32(goroutines-1), conflicted.Load())
}

func (s *PostgresStoreSuite) TestDistinctOwnersDoNotConflict() {
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		s.Require().NoError(s.store.Create(ctx, s.newRecord(newID())))
	}
}
