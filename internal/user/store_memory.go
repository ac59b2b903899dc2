package user

import (
	"context"
	"fmt"
	"sync"

	id "parqueo/pkg/domain"
	"parqueo/pkg/platform/sentinel"
)

// InMemoryStore holds users and vehicles in memory for tests/dev.
type InMemoryStore struct {
	mu       sync.RWMutex
	users    map[id.UserID]*User
	vehicles map[id.VehicleID]*Vehicle
}

// NewMemory constructs an empty in-memory user store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{
		users:    make(map[id.UserID]*User),
		vehicles: make(map[id.VehicleID]*Vehicle),
	}
}

func (s *InMemoryStore) SaveUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *InMemoryStore) GetUser(_ context.Context, userID id.UserID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *InMemoryStore) FindByUsername(_ context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, sentinel.ErrNotFound)
}

func (s *InMemoryStore) SetEnabled(_ context.Context, userID id.UserID, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
	}
	u.Enabled = enabled
	for _, v := range s.vehicles {
		if v.UserID == userID {
			v.Enabled = enabled
		}
	}
	return nil
}

func (s *InMemoryStore) SaveVehicle(_ context.Context, v *Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *v
	s.vehicles[v.ID] = &cp
	return nil
}

func (s *InMemoryStore) GetVehicle(_ context.Context, vehicleID id.VehicleID) (*Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vehicles[vehicleID]
	if !ok {
		return nil, fmt.Errorf("vehicle %s: %w", vehicleID, sentinel.ErrNotFound)
	}
	cp := *v
	return &cp, nil
}

func (s *InMemoryStore) ListVehicles(_ context.Context, userID id.UserID) ([]*Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Vehicle
	for _, v := range s.vehicles {
		if v.UserID == userID {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}
