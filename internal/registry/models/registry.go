package models

import (
	"time"

	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// MaxOperators bounds the stored operator set. The bound is storage capacity,
// not a uniqueness guarantee: duplicate entries count against it.
const MaxOperators = 5

// Registry is the process-wide singleton holding the administrator identity
// and the bounded operator set.
//
// Invariants:
//   - Administrator is never the zero identity after initialization
//   - len(Operators) <= MaxOperators
//   - Address is the derived registry identity; Bump regenerates it
//   - Operators is ordered; duplicates are tolerated by design (membership
//     checks are existential, removal is exhaustive)
//
// The registry is mutated only under administrator proof. It is created
// exactly once; a second initialization must fail, not overwrite.
type Registry struct {
	Address       domain.Identity   `json:"address"`
	Administrator domain.Identity   `json:"administrator"`
	Bump          uint8             `json:"bump"`
	Operators     []domain.Identity `json:"operators"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// NewRegistry builds the singleton record, seeding the administrator as the
// first operator.
func NewRegistry(address, administrator domain.Identity, bump uint8, now time.Time) (*Registry, error) {
	if address.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "registry address cannot be zero")
	}
	if administrator.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "administrator cannot be the zero identity")
	}
	return &Registry{
		Address:       address,
		Administrator: administrator,
		Bump:          bump,
		Operators:     []domain.Identity{administrator},
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (r *Registry) IsAdministrator(id domain.Identity) bool {
	return !id.IsZero() && r.Administrator == id
}

// IsOperator reports existential membership in the operator set.
func (r *Registry) IsOperator(id domain.Identity) bool {
	if id.IsZero() {
		return false
	}
	for _, op := range r.Operators {
		if op == id {
			return true
		}
	}
	return false
}

// CanAddOperator checks the capacity bound. Duplicates are not rejected; the
// stored count is what the bound applies to.
func (r *Registry) CanAddOperator() error {
	if len(r.Operators) >= MaxOperators {
		return dErrors.New(dErrors.CodeCapacityExceeded, "operator set is at capacity")
	}
	return nil
}

// ApplyAddOperator appends operator. Call CanAddOperator first.
func (r *Registry) ApplyAddOperator(operator domain.Identity, now time.Time) {
	r.Operators = append(r.Operators, operator)
	r.UpdatedAt = now
}

// ApplyRemoveOperator removes every occurrence of operator.
func (r *Registry) ApplyRemoveOperator(operator domain.Identity, now time.Time) {
	kept := r.Operators[:0]
	for _, op := range r.Operators {
		if op != operator {
			kept = append(kept, op)
		}
	}
	r.Operators = kept
	r.UpdatedAt = now
}

// CanRotateAdmin validates an administrator replacement.
func (r *Registry) CanRotateAdmin(newAdmin domain.Identity) error {
	if newAdmin.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "administrator cannot be the zero identity")
	}
	return nil
}

// ApplyAdminRotation replaces the administrator. The operator set is not
// touched: a replaced administrator keeps any operator entry it had, and the
// new administrator is not auto-enrolled.
func (r *Registry) ApplyAdminRotation(newAdmin domain.Identity, now time.Time) {
	r.Administrator = newAdmin
	r.UpdatedAt = now
}

// Clone returns a deep copy so stores can hand out records without sharing
// the operator slice.
func (r *Registry) Clone() *Registry {
	cp := *r
	cp.Operators = append([]domain.Identity(nil), r.Operators...)
	return &cp
}
