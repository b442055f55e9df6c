// Package authz implements the authorization gate shared by every custody
// operation. The gate classifies the caller as Owner, Operator, or
// Administrator; each operation hard-codes which classes it accepts. The
// only error the gate itself produces is Unauthorized. Derivation failures
// surface first, as DerivationMismatch, because a record that cannot
// regenerate its own identity must never be acted on.
package authz

import (
	"context"

	"custodia/internal/derive"
	registrymodels "custodia/internal/registry/models"
	vaultmodels "custodia/internal/vault/models"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// RegistrySource supplies the current registry record for operator and
// administrator checks.
type RegistrySource interface {
	Get(ctx context.Context) (*registrymodels.Registry, error)
}

// Gate evaluates caller classes for custody operations.
type Gate struct {
	registries RegistrySource
	deriver    *derive.Deriver
}

func NewGate(registries RegistrySource, deriver *derive.Deriver) *Gate {
	return &Gate{registries: registries, deriver: deriver}
}

// AuthorizeOwner admits the caller when it equals the vault's owner and the
// vault's stored disambiguator still regenerates its derived identity.
func (g *Gate) AuthorizeOwner(ctx context.Context, caller domain.Identity, rec *vaultmodels.VaultRecord) error {
	if err := g.deriver.VerifyVault(rec.Owner, rec.Bump, rec.Address); err != nil {
		return err
	}
	if caller.IsZero() || caller != rec.Owner {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not the vault owner")
	}
	return nil
}

// AuthorizeOperator admits the caller when it appears in the registry's
// operator set. Operators act on any vault; the target vault's derivation is
// still re-validated.
func (g *Gate) AuthorizeOperator(ctx context.Context, caller domain.Identity, rec *vaultmodels.VaultRecord) error {
	if err := g.deriver.VerifyVault(rec.Owner, rec.Bump, rec.Address); err != nil {
		return err
	}
	registry, err := g.registries.Get(ctx)
	if err != nil {
		// No registry means no operators exist; the class check fails.
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not a registered operator")
	}
	if err := g.deriver.VerifyRegistry(registry.Bump, registry.Address); err != nil {
		return err
	}
	if !registry.IsOperator(caller) {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not a registered operator")
	}
	return nil
}

// RequireAdministrator admits the caller only when it equals the registry's
// current administrator. Exposed as a free function so registry mutations
// can run it inside a store Execute callback.
func RequireAdministrator(registry *registrymodels.Registry, caller domain.Identity) error {
	if !registry.IsAdministrator(caller) {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not the administrator")
	}
	return nil
}
