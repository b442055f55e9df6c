package store

import (
	"context"
	"sync"

	"custodia/internal/registry/models"
	"custodia/pkg/platform/sentinel"
)

// InMemory is the in-process registry store. The registry is a singleton, so
// the store holds at most one record. Used in unit tests and local runs.
type InMemory struct {
	mu       sync.Mutex
	registry *models.Registry
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

// Create stores the singleton record. A second call returns ErrConflict and
// leaves the first record unchanged.
func (s *InMemory) Create(ctx context.Context, registry *models.Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registry != nil {
		return sentinel.ErrConflict
	}
	s.registry = registry.Clone()
	return nil
}

func (s *InMemory) Get(ctx context.Context) (*models.Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registry == nil {
		return nil, sentinel.ErrNotFound
	}
	return s.registry.Clone(), nil
}

// Execute runs validate then mutate while holding the store lock, so the
// read-check-write sequence is atomic against concurrent mutations.
func (s *InMemory) Execute(ctx context.Context, validate func(*models.Registry) error, mutate func(*models.Registry)) (*models.Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registry == nil {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(s.registry); err != nil {
		return nil, err
	}
	mutate(s.registry)
	return s.registry.Clone(), nil
}
