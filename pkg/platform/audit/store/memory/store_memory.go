package memory

import (
	"context"
	"sync"

	audit "custodia/pkg/platform/audit"
)

// InMemoryStore keeps audit events in memory for tests and local runs.
type InMemoryStore struct {
	mu     sync.Mutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(ctx context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// List returns events whose subject matches, in append order. An empty
// subject returns everything.
func (s *InMemoryStore) List(ctx context.Context, subject string) ([]audit.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Event
	for _, e := range s.events {
		if subject == "" || e.Subject == subject {
			out = append(out, e)
		}
	}
	return out, nil
}
