// Package audit defines the custody audit event model and the Store
// contract implemented by the memory store and the Kafka publisher.
package audit

import (
	"context"
	"time"
)

// Actions emitted by the custody engine.
const (
	EventRegistryInitialized = "registry.initialized"
	EventAdminRotated        = "registry.admin_rotated"
	EventOperatorAdded       = "registry.operator_added"
	EventOperatorRemoved     = "registry.operator_removed"
	EventVaultInitialized    = "vault.initialized"
	EventNativeTransferred   = "vault.native_transferred"
	EventTokenTransferred    = "vault.token_transferred"
	EventTokenWithdrawn      = "vault.token_withdrawn"
	EventSubAccountClosed    = "vault.subaccount_closed"
	EventDelegateApproved    = "vault.delegate_approved"
	EventDelegateRevoked     = "vault.delegate_revoked"
)

// Event is one audited custody action. Identities are base58 strings so the
// package stays decoupled from the domain types.
type Event struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Account   string    `json:"account,omitempty"`
	Mint      string    `json:"mint,omitempty"`
	Amount    uint64    `json:"amount,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists audit events. Implementations may not support reading back
// (the Kafka publisher is write-only).
type Store interface {
	Append(ctx context.Context, event Event) error
	List(ctx context.Context, subject string) ([]Event, error)
}
