// Package identitytoken authenticates HTTP callers. A caller proves control
// of an identity by presenting a JWT signed with the ed25519 private key
// whose public key IS the identity: the subject claim carries the base58
// identity, and the signature verifies against the key decoded from it.
// There is no issuer registry; the token is self-certifying.
package identitytoken

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// MaxTTL bounds how far in the future a token may expire. Longer-lived
// tokens are rejected outright.
const MaxTTL = 15 * time.Minute

// Verifier validates self-certifying identity tokens.
type Verifier struct {
	leeway time.Duration
}

func NewVerifier() *Verifier {
	return &Verifier{leeway: 30 * time.Second}
}

// Verify parses and checks the token and returns the proven caller identity.
// Every failure maps to Unauthorized; the transport layer never needs to
// distinguish why a token was bad.
func (v *Verifier) Verify(tokenString string) (domain.Identity, error) {
	var identity domain.Identity

	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			return nil, jwt.ErrTokenRequiredClaimMissing
		}
		identity, err = domain.ParseIdentity(sub)
		if err != nil {
			return nil, jwt.ErrTokenInvalidSubject
		}
		return ed25519.PublicKey(identity.Bytes()), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return domain.Identity{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return domain.Identity{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.ExpiresAt == nil {
		return domain.Identity{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if time.Until(claims.ExpiresAt.Time) > MaxTTL+v.leeway {
		return domain.Identity{}, dErrors.New(dErrors.CodeUnauthorized, "token lifetime exceeds the allowed maximum")
	}
	return identity, nil
}

// Issue signs a token proving control of the identity matching priv. Used by
// clients and tests; the server only verifies.
func Issue(priv ed25519.PrivateKey, ttl time.Duration) (string, error) {
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "private key has no ed25519 public key")
	}
	identity, err := domain.IdentityFromBytes(pub)
	if err != nil {
		return "", err
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.RegisteredClaims{
		Subject:   identity.String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	})
	return token.SignedString(priv)
}
