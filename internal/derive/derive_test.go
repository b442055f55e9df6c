package derive

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

func testDeriver() *Deriver {
	return New(domain.Identity(solana.NewWallet().PublicKey()))
}

func TestDeriveVault_Deterministic(t *testing.T) {
	d := testDeriver()
	owner := domain.Identity(solana.NewWallet().PublicKey())

	first, firstBump, err := d.DeriveVault(owner)
	require.NoError(t, err)
	second, secondBump, err := d.DeriveVault(owner)
	require.NoError(t, err)

	assert.Equal(t, first, second, "derivation must be deterministic")
	assert.Equal(t, firstBump, secondBump)
	assert.False(t, first.IsZero())
}

func TestDeriveVault_DistinctPerOwner(t *testing.T) {
	d := testDeriver()

	a, _, err := d.DeriveVault(domain.Identity(solana.NewWallet().PublicKey()))
	require.NoError(t, err)
	b, _, err := d.DeriveVault(domain.Identity(solana.NewWallet().PublicKey()))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestVerifyVault(t *testing.T) {
	d := testDeriver()
	owner := domain.Identity(solana.NewWallet().PublicKey())

	identity, bump, err := d.DeriveVault(owner)
	require.NoError(t, err)

	t.Run("stored bump regenerates the identity", func(t *testing.T) {
		require.NoError(t, d.VerifyVault(owner, bump, identity))
	})

	t.Run("corrupted bump fails with derivation mismatch", func(t *testing.T) {
		err := d.VerifyVault(owner, bump-1, identity)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeDerivationMismatch))
	})

	t.Run("wrong expected identity fails", func(t *testing.T) {
		err := d.VerifyVault(owner, bump, domain.Identity(solana.NewWallet().PublicKey()))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeDerivationMismatch))
	})
}

func TestVerifyRegistry(t *testing.T) {
	d := testDeriver()

	identity, bump, err := d.DeriveRegistry()
	require.NoError(t, err)

	require.NoError(t, d.VerifyRegistry(bump, identity))

	err = d.VerifyRegistry(bump-1, identity)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeDerivationMismatch))
}

func TestRegistryAndVaultDerivationsAreSeparated(t *testing.T) {
	d := testDeriver()
	owner := domain.Identity(solana.NewWallet().PublicKey())

	vaultID, _, err := d.DeriveVault(owner)
	require.NoError(t, err)
	registryID, _, err := d.DeriveRegistry()
	require.NoError(t, err)

	assert.NotEqual(t, vaultID, registryID, "domain tags must separate derivations")
}

func TestAuthorityProof(t *testing.T) {
	d := testDeriver()
	owner := domain.Identity(solana.NewWallet().PublicKey())

	identity, bump, err := d.DeriveVault(owner)
	require.NoError(t, err)

	t.Run("valid proof regenerates the derived identity", func(t *testing.T) {
		proof, err := d.VaultProof(owner, bump)
		require.NoError(t, err)
		assert.Equal(t, identity, proof.Authority())
		require.NoError(t, proof.Validate())
	})

	t.Run("zero proof is rejected", func(t *testing.T) {
		var proof AuthorityProof
		err := proof.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeDerivationMismatch))
	})

	t.Run("registry proof validates", func(t *testing.T) {
		_, regBump, err := d.DeriveRegistry()
		require.NoError(t, err)
		proof, err := d.RegistryProof(regBump)
		require.NoError(t, err)
		require.NoError(t, proof.Validate())
	})
}
