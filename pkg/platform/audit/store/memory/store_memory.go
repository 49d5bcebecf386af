package memory

import (
	"context"
	"sync"

	audit "onboard/pkg/platform/audit"
)

// InMemoryStore keeps events per business id. Events emitted before an id is
// assigned are kept under the empty key.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.BusinessID] = append(s.events[event.BusinessID], event)
	return nil
}

func (s *InMemoryStore) ListByBusiness(_ context.Context, businessID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[businessID]...), nil
}

// ListAll returns every event, grouped by business.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, events := range s.events {
		out = append(out, events...)
	}
	return out, nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[string][]audit.Event)
}
