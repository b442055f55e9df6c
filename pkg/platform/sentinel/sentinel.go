package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and the ledger boundary
// return these (optionally wrapped) so services can translate them into coded
// domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record or sub-account does not exist
// - ErrConflict: record already exists (creation is idempotent-guarded)
// - ErrInsufficientFunds: ledger balance cannot cover the requested amount
// - ErrNonZeroBalance: sub-account cannot be closed while it holds funds
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNonZeroBalance    = errors.New("non-zero balance")
	ErrInvalidState      = errors.New("invalid state")
	ErrUnavailable       = errors.New("unavailable")
)
