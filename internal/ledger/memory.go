package ledger

import (
	"context"
	"sync"

	"custodia/internal/derive"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/sentinel"
)

type subAccount struct {
	mint            domain.Identity
	authority       domain.Identity
	balance         uint64
	delegate        domain.Identity
	delegatedAmount uint64
}

// Memory is an in-process ledger for local runs and tests. It enforces the
// same policies the real ledger owns: proof-gated mutations, mint-checked
// transfers, close-only-when-empty, and a single delegation per sub-account.
type Memory struct {
	mu       sync.Mutex
	mints    map[domain.Identity]uint8
	accounts map[domain.Identity]*subAccount
	native   map[domain.Identity]uint64
}

func NewMemory() *Memory {
	return &Memory{
		mints:    make(map[domain.Identity]uint8),
		accounts: make(map[domain.Identity]*subAccount),
		native:   make(map[domain.Identity]uint64),
	}
}

// RegisterMint declares a mint and its decimal precision.
func (m *Memory) RegisterMint(mint domain.Identity, decimals uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mints[mint] = decimals
}

// CreateAccount opens a sub-account of mint controlled by authority.
func (m *Memory) CreateAccount(account, mint, authority domain.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.mints[mint]; !ok {
		return sentinel.ErrNotFound
	}
	if _, ok := m.accounts[account]; ok {
		return sentinel.ErrConflict
	}
	m.accounts[account] = &subAccount{mint: mint, authority: authority}
	return nil
}

// Credit adds funds to a sub-account outside any authorization path. Test
// and bootstrap seam only.
func (m *Memory) Credit(account domain.Identity, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[account]
	if !ok {
		return sentinel.ErrNotFound
	}
	acc.balance += amount
	return nil
}

// FundNative seeds a native balance. Test and bootstrap seam only.
func (m *Memory) FundNative(account domain.Identity, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.native[account] += amount
}

// Delegation reports the current delegate and approved amount on account.
func (m *Memory) Delegation(account domain.Identity) (domain.Identity, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[account]
	if !ok {
		return domain.Identity{}, 0, sentinel.ErrNotFound
	}
	return acc.delegate, acc.delegatedAmount, nil
}

func (m *Memory) Transfer(ctx context.Context, from, to, mint domain.Identity, amount uint64, proof derive.AuthorityProof) error {
	if err := proof.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if mint == NativeMint {
		if from != proof.Authority() {
			return dErrors.New(dErrors.CodeUnauthorized, "proof does not control the source balance")
		}
		if m.native[from] < amount {
			return sentinel.ErrInsufficientFunds
		}
		m.native[from] -= amount
		m.native[to] += amount
		return nil
	}

	if _, ok := m.mints[mint]; !ok {
		return sentinel.ErrNotFound
	}
	src, ok := m.accounts[from]
	if !ok {
		return sentinel.ErrNotFound
	}
	dst, ok := m.accounts[to]
	if !ok {
		return sentinel.ErrNotFound
	}
	if src.mint != mint || dst.mint != mint {
		return dErrors.New(dErrors.CodeInvalidInput, "account mint does not match transfer mint")
	}
	if src.authority != proof.Authority() {
		return dErrors.New(dErrors.CodeUnauthorized, "proof does not control the source sub-account")
	}
	if src.balance < amount {
		return sentinel.ErrInsufficientFunds
	}
	src.balance -= amount
	dst.balance += amount
	return nil
}

func (m *Memory) Balance(ctx context.Context, account domain.Identity) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc, ok := m.accounts[account]; ok {
		return acc.balance, nil
	}
	if bal, ok := m.native[account]; ok {
		return bal, nil
	}
	return 0, sentinel.ErrNotFound
}

func (m *Memory) Close(ctx context.Context, account, destination domain.Identity, proof derive.AuthorityProof) error {
	if err := proof.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.accounts[account]
	if !ok {
		return sentinel.ErrNotFound
	}
	if acc.authority != proof.Authority() {
		return dErrors.New(dErrors.CodeUnauthorized, "proof does not control the sub-account")
	}
	if acc.balance != 0 {
		return sentinel.ErrNonZeroBalance
	}
	delete(m.accounts, account)
	return nil
}

func (m *Memory) Approve(ctx context.Context, account, delegate domain.Identity, amount uint64, proof derive.AuthorityProof) error {
	if err := proof.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.accounts[account]
	if !ok {
		return sentinel.ErrNotFound
	}
	if acc.authority != proof.Authority() {
		return dErrors.New(dErrors.CodeUnauthorized, "proof does not control the sub-account")
	}
	acc.delegate = delegate
	acc.delegatedAmount = amount
	return nil
}

func (m *Memory) Revoke(ctx context.Context, account domain.Identity, proof derive.AuthorityProof) error {
	if err := proof.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.accounts[account]
	if !ok {
		return sentinel.ErrNotFound
	}
	if acc.authority != proof.Authority() {
		return dErrors.New(dErrors.CodeUnauthorized, "proof does not control the sub-account")
	}
	acc.delegate = domain.Identity{}
	acc.delegatedAmount = 0
	return nil
}
