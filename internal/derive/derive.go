// Package derive implements the key-less derived-account authority model.
//
// A derived identity is computed from a domain-separation tag, an owner
// identity and a one-byte disambiguator (the "bump"), relative to the engine
// program identity. No private key corresponds to the result; control is
// proven by presenting the same (tag, owner, bump) tuple back to the
// derivation and matching the stored identity.
//
// The bump is found by search exactly once, at record creation. Every later
// operation reconstructs the derivation from the stored bump and must never
// re-search: a stored bump that fails to regenerate the expected identity
// signals a forged or corrupted account reference and aborts the operation.
package derive

import (
	"github.com/gagliardetto/solana-go"

	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// Domain-separation tags. These byte strings are part of the persisted
// derivation inputs and must never change.
const (
	VaultTag    = "userPdaVault"
	RegistryTag = "globalState"
)

// Deriver computes and validates derived identities relative to one engine
// program identity.
type Deriver struct {
	program solana.PublicKey
}

func New(program domain.Identity) *Deriver {
	return &Deriver{program: solana.PublicKey(program)}
}

// Program returns the engine program identity derivations are bound to.
func (d *Deriver) Program() domain.Identity {
	return domain.Identity(d.program)
}

// DeriveVault searches for the vault identity and bump for owner. Used only
// at vault creation; the bump is stored on the record afterwards.
func (d *Deriver) DeriveVault(owner domain.Identity) (domain.Identity, uint8, error) {
	return d.find([][]byte{[]byte(VaultTag), owner.Bytes()})
}

// DeriveRegistry searches for the singleton registry identity and bump.
func (d *Deriver) DeriveRegistry() (domain.Identity, uint8, error) {
	return d.find([][]byte{[]byte(RegistryTag)})
}

// VerifyVault recomputes the vault identity from the stored bump (never by
// search) and compares it against expected. A mismatch is fatal to the
// calling operation.
func (d *Deriver) VerifyVault(owner domain.Identity, bump uint8, expected domain.Identity) error {
	return d.verify([][]byte{[]byte(VaultTag), owner.Bytes()}, bump, expected)
}

// VerifyRegistry recomputes the registry identity from the stored bump and
// compares it against expected.
func (d *Deriver) VerifyRegistry(bump uint8, expected domain.Identity) error {
	return d.verify([][]byte{[]byte(RegistryTag)}, bump, expected)
}

// VaultProof builds the signing capability for a vault whose derivation has
// already been verified. The proof is the only value that may cross the
// ledger boundary; raw seed material stays inside this package.
func (d *Deriver) VaultProof(owner domain.Identity, bump uint8) (AuthorityProof, error) {
	authority, err := d.at([][]byte{[]byte(VaultTag), owner.Bytes()}, bump)
	if err != nil {
		return AuthorityProof{}, err
	}
	return AuthorityProof{
		tag:       VaultTag,
		owner:     owner,
		bump:      bump,
		authority: authority,
		program:   domain.Identity(d.program),
	}, nil
}

// RegistryProof builds the signing capability for the registry identity.
func (d *Deriver) RegistryProof(bump uint8) (AuthorityProof, error) {
	authority, err := d.at([][]byte{[]byte(RegistryTag)}, bump)
	if err != nil {
		return AuthorityProof{}, err
	}
	return AuthorityProof{
		tag:       RegistryTag,
		bump:      bump,
		authority: authority,
		program:   domain.Identity(d.program),
	}, nil
}

func (d *Deriver) find(seeds [][]byte) (domain.Identity, uint8, error) {
	derived, bump, err := solana.FindProgramAddress(seeds, d.program)
	if err != nil {
		return domain.Identity{}, 0, dErrors.Wrap(err, dErrors.CodeInternal, "derivation search failed")
	}
	return domain.Identity(derived), bump, nil
}

func (d *Deriver) at(seeds [][]byte, bump uint8) (domain.Identity, error) {
	withBump := append(append([][]byte{}, seeds...), []byte{bump})
	derived, err := solana.CreateProgramAddress(withBump, d.program)
	if err != nil {
		// The stored bump lands on the ed25519 curve; it can never have been
		// produced by the search, so the record is forged or corrupted.
		return domain.Identity{}, dErrors.Wrap(err, dErrors.CodeDerivationMismatch, "stored disambiguator does not yield a valid derived identity")
	}
	return domain.Identity(derived), nil
}

func (d *Deriver) verify(seeds [][]byte, bump uint8, expected domain.Identity) error {
	derived, err := d.at(seeds, bump)
	if err != nil {
		return err
	}
	if derived != expected {
		return dErrors.New(dErrors.CodeDerivationMismatch, "stored disambiguator does not regenerate the expected identity")
	}
	return nil
}
