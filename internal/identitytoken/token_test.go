package identitytoken

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

func newKey(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub, priv
}

func TestVerifyRoundTrip(t *testing.T) {
	pub, priv := newKey(t)
	token, err := Issue(priv, 5*time.Minute)
	require.NoError(t, err)

	caller, err := NewVerifier().Verify(token)
	require.NoError(t, err)

	want, err := domain.IdentityFromBytes(pub)
	require.NoError(t, err)
	require.Equal(t, want, caller)
}

func TestVerifyRejectsForeignSubject(t *testing.T) {
	// Sign with one key but claim another identity: the signature cannot
	// verify against the claimed subject.
	_, priv := newKey(t)
	otherPub, _ := newKey(t)
	otherID, err := domain.IdentityFromBytes(otherPub)
	require.NoError(t, err)

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.RegisteredClaims{
		Subject:   otherID.String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		IssuedAt:  jwt.NewNumericDate(now),
	})
	signed, err := token.SignedString(priv)
	require.NoError(t, err)

	_, err = NewVerifier().Verify(signed)
	require.Error(t, err)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestVerifyRejectsExpired(t *testing.T) {
	_, priv := newKey(t)
	token, err := Issue(priv, -2*time.Minute)
	require.NoError(t, err)

	_, err = NewVerifier().Verify(token)
	require.Error(t, err)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestVerifyRejectsExcessiveLifetime(t *testing.T) {
	_, priv := newKey(t)
	token, err := Issue(priv, 24*time.Hour)
	require.NoError(t, err)

	_, err = NewVerifier().Verify(token)
	require.Error(t, err)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newKey(t)
	id, err := domain.IdentityFromBytes(pub)
	require.NoError(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   id.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	signed, err := token.SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = NewVerifier().Verify(signed)
	require.Error(t, err)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	_, priv := newKey(t)
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	signed, err := token.SignedString(priv)
	require.NoError(t, err)

	_, err = NewVerifier().Verify(signed)
	require.Error(t, err)

	_, err = NewVerifier().Verify("not-a-token")
	require.Error(t, err)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
