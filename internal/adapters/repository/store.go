// Package repository provides the in-memory score ledger and profile store.
package repository

import (
	"context"
	"sync"

	"github.com/okian/clink/internal/domain/model"
)

// InMemoryProfiles is a process-local profile store.
type InMemoryProfiles struct {
	mu   sync.RWMutex
	byID map[model.ParticipantID]model.Profile
}

// NewInMemoryProfiles creates an empty profile store.
func NewInMemoryProfiles() *InMemoryProfiles {
	return &InMemoryProfiles{byID: make(map[model.ParticipantID]model.Profile)}
}

// UpsertProfile merges the non-empty fields of p into the stored profile
// and returns the result.
func (s *InMemoryProfiles) UpsertProfile(_ context.Context, p model.Profile) (model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.byID[p.ParticipantID].Merge(p)
	s.byID[p.ParticipantID] = merged
	return merged, nil
}

// GetProfile returns the stored profile for id.
func (s *InMemoryProfiles) GetProfile(_ context.Context, id model.ParticipantID) (model.Profile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	return p, ok, nil
}

// Count returns the number of known profiles.
func (s *InMemoryProfiles) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
