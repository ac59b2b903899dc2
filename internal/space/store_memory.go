package space

import (
	"context"
	"fmt"
	"slices"
	"sync"

	id "parqueo/pkg/domain"
	"parqueo/pkg/platform/sentinel"
)

// InMemoryStore holds parking spaces in memory for tests/dev.
type InMemoryStore struct {
	mu     sync.RWMutex
	spaces map[id.SpaceID]*ParkingSpace
}

// NewMemory constructs an empty in-memory space store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{spaces: make(map[id.SpaceID]*ParkingSpace)}
}

func (s *InMemoryStore) Save(_ context.Context, sp *ParkingSpace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for existingID, existing := range s.spaces {
		if existing.Code == sp.Code && existingID != sp.ID {
			return fmt.Errorf("space code %q: %w", sp.Code, sentinel.ErrConflict)
		}
	}
	cp := *sp
	s.spaces[sp.ID] = &cp
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, spaceID id.SpaceID) (*ParkingSpace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.spaces[spaceID]
	if !ok {
		return nil, fmt.Errorf("space %s: %w", spaceID, sentinel.ErrNotFound)
	}
	cp := *sp
	return &cp, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*ParkingSpace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ParkingSpace, 0, len(s.spaces))
	for _, sp := range s.spaces {
		cp := *sp
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryStore) SetStatusIf(_ context.Context, spaceID id.SpaceID, from []Status, to Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.spaces[spaceID]
	if !ok {
		return false, fmt.Errorf("space %s: %w", spaceID, sentinel.ErrNotFound)
	}
	if !slices.Contains(from, sp.Status) {
		return false, nil
	}
	sp.Status = to
	return true, nil
}
