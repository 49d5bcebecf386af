// Package snapshot persists wizard session snapshots.
package snapshot

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"onboard/internal/onboarding/models"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
)

// InMemoryStore keeps snapshots in process memory. Used in tests and when no
// redis is configured; sessions do not survive a restart.
type InMemoryStore struct {
	mu    sync.RWMutex
	items map[id.SessionID]models.Snapshot
}

func New() *InMemoryStore {
	return &InMemoryStore{items: make(map[id.SessionID]models.Snapshot)}
}

// Save stores a deep copy so later mutations of the caller's state don't leak in.
func (s *InMemoryStore) Save(_ context.Context, snap models.Snapshot) error {
	if snap.SessionID.IsNil() {
		return fmt.Errorf("snapshot without session id: %w", sentinel.ErrInvalidState)
	}
	snap.State = snap.State.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[snap.SessionID] = snap
	return nil
}

func (s *InMemoryStore) Load(_ context.Context, sessionID id.SessionID) (models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.items[sessionID]
	if !ok {
		return models.Snapshot{}, sentinel.ErrNotFound
	}
	snap.State = snap.State.Clone()
	return snap, nil
}

func (s *InMemoryStore) Delete(_ context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[sessionID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.items, sessionID)
	return nil
}

// List returns the stored session ids, most recently updated first.
func (s *InMemoryStore) List(_ context.Context) ([]id.SessionID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snaps := make([]models.Snapshot, 0, len(s.items))
	for _, snap := range s.items {
		snaps = append(snaps, snap)
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].UpdatedAt.After(snaps[j].UpdatedAt)
	})
	out := make([]id.SessionID, len(snaps))
	for i, snap := range snaps {
		out[i] = snap.SessionID
	}
	return out, nil
}
