package service

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"custodia/internal/authz"
	"custodia/internal/derive"
	"custodia/internal/ledger"
	"custodia/internal/ledger/mocks"
	registrymodels "custodia/internal/registry/models"
	registrystore "custodia/internal/registry/store"
	vaultmodels "custodia/internal/vault/models"
	vaultstore "custodia/internal/vault/store"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/sentinel"
)

type VaultServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	ledger  *mocks.MockLedger
	vaults  *vaultstore.InMemory
	deriver *derive.Deriver
	svc     *Service
	ctx     context.Context

	admin    domain.Identity
	operator domain.Identity
	owner    domain.Identity
	stranger domain.Identity
	mint     domain.Identity
}

func TestVaultServiceSuite(t *testing.T) {
	suite.Run(t, new(VaultServiceSuite))
}

func newID() domain.Identity {
	return domain.Identity(solana.NewWallet().PublicKey())
}

func (s *VaultServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.ledger = mocks.NewMockLedger(s.ctrl)
	s.vaults = vaultstore.NewInMemory()
	s.deriver = derive.New(newID())
	s.ctx = context.Background()

	s.admin = newID()
	s.operator = newID()
	s.owner = newID()
	s.stranger = newID()
	s.mint = newID()

	registries := registrystore.NewInMemory()
	address, bump, err := s.deriver.DeriveRegistry()
	s.Require().NoError(err)
	registry, err := registrymodels.NewRegistry(address, s.admin, bump, time.Now())
	s.Require().NoError(err)
	registry.ApplyAddOperator(s.operator, time.Now())
	s.Require().NoError(registries.Create(s.ctx, registry))

	gate := authz.NewGate(registries, s.deriver)
	s.svc = New(s.vaults, gate, s.deriver, s.ledger)
}

func (s *VaultServiceSuite) initVault(owner domain.Identity) *vaultmodels.VaultRecord {
	rec, err := s.svc.InitializeVault(s.ctx, owner, owner)
	s.Require().NoError(err)
	return rec
}

func (s *VaultServiceSuite) proofFor(owner domain.Identity) derive.AuthorityProof {
	rec, err := s.vaults.FindByOwner(s.ctx, owner)
	s.Require().NoError(err)
	proof, err := s.deriver.VaultProof(rec.Owner, rec.Bump)
	s.Require().NoError(err)
	return proof
}

func (s *VaultServiceSuite) TestInitializeVault() {
	rec := s.initVault(s.owner)
	s.Equal(s.owner, rec.Owner)
	s.False(rec.Address.IsZero())

	expected, bump, err := s.deriver.DeriveVault(s.owner)
	s.Require().NoError(err)
	s.Equal(expected, rec.Address)
	s.Equal(bump, rec.Bump)

	s.Run("second initialization fails and keeps the first record", func() {
		_, err := s.svc.InitializeVault(s.ctx, s.owner, s.owner)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyInitialized))

		got, err := s.vaults.FindByOwner(s.ctx, s.owner)
		s.Require().NoError(err)
		s.Equal(rec.Address, got.Address)
	})

	s.Run("zero owner is rejected", func() {
		_, err := s.svc.InitializeVault(s.ctx, s.owner, domain.Identity{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *VaultServiceSuite) TestTransferNative() {
	s.initVault(s.owner)
	proof := s.proofFor(s.owner)
	dest := newID()

	s.Run("owner moves native funds out of the vault", func() {
		s.ledger.EXPECT().
			Transfer(gomock.Any(), proof.Authority(), dest, ledger.NativeMint, uint64(250), proof).
			Return(nil)
		s.Require().NoError(s.svc.TransferNative(s.ctx, s.owner, dest, 250))
	})

	s.Run("caller without a vault is rejected", func() {
		err := s.svc.TransferNative(s.ctx, s.stranger, dest, 1)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("zero destination is rejected", func() {
		err := s.svc.TransferNative(s.ctx, s.owner, domain.Identity{}, 1)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *VaultServiceSuite) TestTransferToken() {
	s.initVault(s.owner)
	proof := s.proofFor(s.owner)
	from, to := newID(), newID()

	s.Run("owner moves tokens between sub-accounts", func() {
		s.ledger.EXPECT().
			Transfer(gomock.Any(), from, to, s.mint, uint64(40), proof).
			Return(nil)
		s.Require().NoError(s.svc.TransferToken(s.ctx, s.owner, from, to, s.mint, 40))
	})

	s.Run("insufficient funds surfaces as a coded error", func() {
		s.ledger.EXPECT().
			Transfer(gomock.Any(), from, to, s.mint, uint64(9999), proof).
			Return(sentinel.ErrInsufficientFunds)
		err := s.svc.TransferToken(s.ctx, s.owner, from, to, s.mint, 9999)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFunds))
	})

	s.Run("non-zero balance on close maps to a conflict", func() {
		sub := newID()
		s.ledger.EXPECT().Close(gomock.Any(), sub, to, proof).Return(sentinel.ErrNonZeroBalance)
		err := s.svc.CloseTokenSubAccount(s.ctx, s.owner, sub, to)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *VaultServiceSuite) TestTransferTokenByOperator() {
	s.initVault(s.owner)
	proof := s.proofFor(s.owner)
	from, to := newID(), newID()

	s.Run("registered operator moves tokens out of another owner's vault", func() {
		s.ledger.EXPECT().
			Transfer(gomock.Any(), from, to, s.mint, uint64(50), proof).
			Return(nil)
		s.Require().NoError(s.svc.TransferTokenByOperator(s.ctx, s.operator, s.owner, from, to, s.mint, 50))
	})

	s.Run("unregistered caller is unauthorized and the ledger is never reached", func() {
		err := s.svc.TransferTokenByOperator(s.ctx, s.stranger, s.owner, from, to, s.mint, 1)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("vault owner is not implicitly an operator", func() {
		err := s.svc.TransferTokenByOperator(s.ctx, s.owner, s.owner, from, to, s.mint, 1)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("zero owner is rejected", func() {
		err := s.svc.TransferTokenByOperator(s.ctx, s.operator, domain.Identity{}, from, to, s.mint, 1)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *VaultServiceSuite) TestWithdrawAllToken() {
	s.initVault(s.owner)
	proof := s.proofFor(s.owner)
	from, to := newID(), newID()

	s.Run("drains exactly the ledger-read balance", func() {
		s.ledger.EXPECT().Balance(gomock.Any(), from).Return(uint64(137), nil)
		s.ledger.EXPECT().
			Transfer(gomock.Any(), from, to, s.mint, uint64(137), proof).
			Return(nil)
		s.Require().NoError(s.svc.WithdrawAllToken(s.ctx, s.operator, s.owner, from, to, s.mint))
	})

	s.Run("owner cannot call the operator-class withdraw", func() {
		err := s.svc.WithdrawAllToken(s.ctx, s.owner, s.owner, from, to, s.mint)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *VaultServiceSuite) TestCloseTokenSubAccount() {
	s.initVault(s.owner)
	proof := s.proofFor(s.owner)
	sub, dest := newID(), newID()

	s.Run("owner closes an empty sub-account", func() {
		s.ledger.EXPECT().Close(gomock.Any(), sub, dest, proof).Return(nil)
		s.Require().NoError(s.svc.CloseTokenSubAccount(s.ctx, s.owner, sub, dest))
	})

	s.Run("operator closes on behalf of the owner", func() {
		s.ledger.EXPECT().Close(gomock.Any(), sub, dest, proof).Return(nil)
		s.Require().NoError(s.svc.CloseTokenSubAccountByOperator(s.ctx, s.operator, s.owner, sub, dest))
	})
}

func (s *VaultServiceSuite) TestDelegation() {
	s.initVault(s.owner)
	proof := s.proofFor(s.owner)
	sub, delegate := newID(), newID()

	s.Run("owner approves a scoped delegate", func() {
		s.ledger.EXPECT().Approve(gomock.Any(), sub, delegate, uint64(75), proof).Return(nil)
		s.Require().NoError(s.svc.ApproveDelegate(s.ctx, s.owner, sub, delegate, 75))
	})

	s.Run("zero delegate is rejected", func() {
		err := s.svc.ApproveDelegate(s.ctx, s.owner, sub, domain.Identity{}, 75)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("owner revokes the delegation", func() {
		s.ledger.EXPECT().Revoke(gomock.Any(), sub, proof).Return(nil)
		s.Require().NoError(s.svc.RevokeDelegate(s.ctx, s.owner, sub, delegate))
	})

	s.Run("stranger cannot approve on someone else's vault", func() {
		err := s.svc.ApproveDelegate(s.ctx, s.stranger, sub, delegate, 1)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *VaultServiceSuite) TestCorruptedDisambiguatorAborts() {
	address, bump, err := s.deriver.DeriveVault(s.owner)
	s.Require().NoError(err)
	rec, err := vaultmodels.NewVaultRecord(address, s.owner, bump-1, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.vaults.Create(s.ctx, rec))

	err = s.svc.TransferNative(s.ctx, s.owner, newID(), 1)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeDerivationMismatch))

	err = s.svc.TransferTokenByOperator(s.ctx, s.operator, s.owner, newID(), newID(), s.mint, 1)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeDerivationMismatch))
}

// TestOperatorScenarioEndToEnd runs the full flow against the real in-memory
// ledger: a registered operator moves half of an owner's sub-account balance,
// an unregistered caller fails without touching it.
func (s *VaultServiceSuite) TestOperatorScenarioEndToEnd() {
	mem := ledger.NewMemory()
	svc := New(s.vaults, s.svc.gate, s.deriver, mem)

	rec, err := svc.InitializeVault(s.ctx, s.owner, s.owner)
	s.Require().NoError(err)
	proof, err := s.deriver.VaultProof(rec.Owner, rec.Bump)
	s.Require().NoError(err)

	from, to := newID(), newID()
	mem.RegisterMint(s.mint, 6)
	s.Require().NoError(mem.CreateAccount(from, s.mint, proof.Authority()))
	s.Require().NoError(mem.CreateAccount(to, s.mint, newID()))
	s.Require().NoError(mem.Credit(from, 100))

	s.Require().NoError(svc.TransferTokenByOperator(s.ctx, s.operator, s.owner, from, to, s.mint, 50))

	bal, err := mem.Balance(s.ctx, from)
	s.Require().NoError(err)
	s.EqualValues(50, bal)
	bal, err = mem.Balance(s.ctx, to)
	s.Require().NoError(err)
	s.EqualValues(50, bal)

	err = svc.TransferTokenByOperator(s.ctx, s.stranger, s.owner, from, to, s.mint, 10)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	bal, err = mem.Balance(s.ctx, from)
	s.Require().NoError(err)
	s.EqualValues(50, bal, "failed authorization must not move funds")
}

func (s *VaultServiceSuite) TestGetVault() {
	rec := s.initVault(s.owner)

	got, err := s.svc.GetVault(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Equal(rec.Address, got.Address)

	_, err = s.svc.GetVault(s.ctx, s.stranger)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
