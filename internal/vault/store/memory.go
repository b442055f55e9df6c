package store

import (
	"context"
	"sync"

	"custodia/internal/vault/models"
	"custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
)

// InMemory keeps vault records keyed by owner identity. Used in unit tests
// and local runs.
type InMemory struct {
	mu     sync.Mutex
	vaults map[domain.Identity]*models.VaultRecord
}

func NewInMemory() *InMemory {
	return &InMemory{vaults: make(map[domain.Identity]*models.VaultRecord)}
}

// Create stores a record. A second record for the same owner returns
// ErrConflict and leaves the first unchanged.
func (s *InMemory) Create(ctx context.Context, rec *models.VaultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.vaults[rec.Owner]; exists {
		return sentinel.ErrConflict
	}
	s.vaults[rec.Owner] = rec.Clone()
	return nil
}

func (s *InMemory) FindByOwner(ctx context.Context, owner domain.Identity) (*models.VaultRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.vaults[owner]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return rec.Clone(), nil
}
