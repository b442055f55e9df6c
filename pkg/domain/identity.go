// Package domain holds the identity types shared across the custody engine.
//
// An Identity is a 32-byte ed25519-curve account key rendered in base58. The
// same type names owners, operators, administrators, mints, token
// sub-accounts and derived authorities; typed parsing at trust boundaries
// keeps arbitrary byte blobs out.
package domain

import (
	"github.com/gagliardetto/solana-go"

	dErrors "custodia/pkg/domain-errors"
)

// Identity is a 32-byte account identity. The zero value is invalid.
type Identity solana.PublicKey

// ParseIdentity parses a base58-encoded 32-byte identity.
func ParseIdentity(s string) (Identity, error) {
	if s == "" {
		return Identity{}, dErrors.New(dErrors.CodeInvalidInput, "identity is required")
	}
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return Identity{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "identity must be a base58-encoded 32-byte key")
	}
	if pk.IsZero() {
		return Identity{}, dErrors.New(dErrors.CodeInvalidInput, "identity cannot be the zero key")
	}
	return Identity(pk), nil
}

// IdentityFromBytes builds an Identity from raw key bytes.
func IdentityFromBytes(b []byte) (Identity, error) {
	if len(b) != solana.PublicKeyLength {
		return Identity{}, dErrors.New(dErrors.CodeInvalidInput, "identity must be exactly 32 bytes")
	}
	var id Identity
	copy(id[:], b)
	return id, nil
}

func (i Identity) String() string { return solana.PublicKey(i).String() }

func (i Identity) IsZero() bool { return solana.PublicKey(i).IsZero() }

// Bytes returns a copy-safe slice view of the key material.
func (i Identity) Bytes() []byte {
	b := make([]byte, len(i))
	copy(b, i[:])
	return b
}

// MarshalText renders the identity in base58 for JSON and log output.
func (i Identity) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText parses a base58 identity, enforcing the same invariants as
// ParseIdentity.
func (i *Identity) UnmarshalText(text []byte) error {
	id, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*i = id
	return nil
}
