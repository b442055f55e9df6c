package derive

import (
	"github.com/gagliardetto/solana-go"

	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// AuthorityProof is the capability token that lets a derived, key-less
// identity act as a signer for one ledger call. It is produced only by a
// Deriver and consumed only by the ledger boundary; its fields are
// unexported so seed material cannot leak or be forged field-by-field.
type AuthorityProof struct {
	tag       string
	owner     domain.Identity
	bump      uint8
	authority domain.Identity
	program   domain.Identity
}

// Authority returns the derived identity this proof signs for.
func (p AuthorityProof) Authority() domain.Identity { return p.authority }

// IsZero reports whether the proof is the useless zero value.
func (p AuthorityProof) IsZero() bool { return p.tag == "" }

// Validate recomputes the derivation from the proof's own tuple and checks
// it still lands on the claimed authority. Ledger implementations call this
// before honoring the proof as a signature.
func (p AuthorityProof) Validate() error {
	if p.IsZero() {
		return dErrors.New(dErrors.CodeDerivationMismatch, "empty authority proof")
	}
	seeds := [][]byte{[]byte(p.tag)}
	if !p.owner.IsZero() {
		seeds = append(seeds, p.owner.Bytes())
	}
	seeds = append(seeds, []byte{p.bump})

	derived, err := solana.CreateProgramAddress(seeds, solana.PublicKey(p.program))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeDerivationMismatch, "authority proof does not yield a valid derived identity")
	}
	if domain.Identity(derived) != p.authority {
		return dErrors.New(dErrors.CodeDerivationMismatch, "authority proof does not regenerate the claimed identity")
	}
	return nil
}
