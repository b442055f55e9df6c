package models

import (
	"time"

	"custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// VaultRecord anchors all authorization checks for one owner's funds.
//
// Invariants:
//   - Owner is set at creation and never changes
//   - Address is the derived vault identity; Bump regenerates it
//   - exactly one record exists per owner (creation is idempotent-guarded)
//
// The record has no terminal state: close operations close token
// sub-accounts on the ledger, never the record itself. Balances live in the
// external ledger, not here.
type VaultRecord struct {
	Address   domain.Identity `json:"address"`
	Owner     domain.Identity `json:"owner"`
	Bump      uint8           `json:"bump"`
	CreatedAt time.Time       `json:"created_at"`
}

func NewVaultRecord(address, owner domain.Identity, bump uint8, now time.Time) (*VaultRecord, error) {
	if address.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "vault address cannot be zero")
	}
	if owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "vault owner cannot be the zero identity")
	}
	return &VaultRecord{
		Address:   address,
		Owner:     owner,
		Bump:      bump,
		CreatedAt: now,
	}, nil
}

func (v *VaultRecord) Clone() *VaultRecord {
	cp := *v
	return &cp
}
