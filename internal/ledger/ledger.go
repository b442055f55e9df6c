// Package ledger defines the external-ledger capability the custody engine
// consumes. The ledger is the system of record for balances and delegation;
// the engine only issues mutation requests signed by an AuthorityProof.
//
// Implementations return pkg/platform/sentinel errors for balance facts
// (insufficient funds, non-zero balance, missing account); the vault service
// propagates them without reinterpretation.
package ledger

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"custodia/internal/derive"
	"custodia/pkg/domain"
)

//go:generate mockgen -source=ledger.go -destination=mocks/ledger.go -package=mocks Ledger

// NativeMint marks native-currency movements in Transfer calls. Token
// sub-accounts never carry this mint.
var NativeMint = domain.Identity(solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112"))

// Ledger executes balance mutations on behalf of a derived authority. Every
// mutating call requires an AuthorityProof; implementations must validate
// the proof and check it controls the source account before mutating.
type Ledger interface {
	// Transfer moves amount from one account to another. For mint ==
	// NativeMint the accounts are native balances; otherwise both must be
	// sub-accounts of the given mint (a checked transfer).
	Transfer(ctx context.Context, from, to, mint domain.Identity, amount uint64, proof derive.AuthorityProof) error

	// Balance reads the current balance of an account at call time.
	Balance(ctx context.Context, account domain.Identity) (uint64, error)

	// Close removes an empty sub-account, reclaiming its deposit to
	// destination. Fails when the balance is non-zero.
	Close(ctx context.Context, account, destination domain.Identity, proof derive.AuthorityProof) error

	// Approve grants delegate a spending right over account, scoped to
	// amount. A sub-account holds at most one delegation; a second approve
	// replaces it.
	Approve(ctx context.Context, account, delegate domain.Identity, amount uint64, proof derive.AuthorityProof) error

	// Revoke clears the delegation on account.
	Revoke(ctx context.Context, account domain.Identity, proof derive.AuthorityProof) error
}
