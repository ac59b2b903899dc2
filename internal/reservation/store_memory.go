package reservation

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	id "parqueo/pkg/domain"
	"parqueo/pkg/platform/sentinel"
)

// InMemoryStore keeps reservations in memory for tests/dev. The single
// mutex makes UpdateStateCAS first-caller-wins, matching the
// conditional UPDATE the postgres store uses.
type InMemoryStore struct {
	mu           sync.RWMutex
	reservations map[id.ReservationID]*Reservation
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{reservations: make(map[id.ReservationID]*Reservation)}
}

func (s *InMemoryStore) Create(_ context.Context, r *Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reservations[r.ID]; ok {
		return fmt.Errorf("reservation %s: %w", r.ID, sentinel.ErrConflict)
	}
	cp := *r
	s.reservations[r.ID] = &cp
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, resID id.ReservationID) (*Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[resID]
	if !ok {
		return nil, fmt.Errorf("reservation %s: %w", resID, sentinel.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]*Reservation, error) {
	return s.collect(func(r *Reservation) bool { return r.UserID == userID }), nil
}

func (s *InMemoryStore) ListBySpace(_ context.Context, spaceID id.SpaceID) ([]*Reservation, error) {
	return s.collect(func(r *Reservation) bool { return r.SpaceID == spaceID }), nil
}

func (s *InMemoryStore) ListByState(_ context.Context, states ...State) ([]*Reservation, error) {
	return s.collect(func(r *Reservation) bool { return slices.Contains(states, r.State) }), nil
}

func (s *InMemoryStore) FindOverlapping(_ context.Context, spaceID id.SpaceID, start, end time.Time) ([]*Reservation, error) {
	return s.collect(func(r *Reservation) bool {
		return r.SpaceID == spaceID &&
			!r.State.Terminal() && r.State != StateExpired &&
			r.StartAt.Before(end) && start.Before(r.EndAt)
	}), nil
}

func (s *InMemoryStore) UpdateStateCAS(_ context.Context, resID id.ReservationID, from []State, target State, reason string, at time.Time) (*Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[resID]
	if !ok {
		return nil, fmt.Errorf("reservation %s: %w", resID, sentinel.ErrNotFound)
	}
	if !slices.Contains(from, r.State) {
		return nil, fmt.Errorf("reservation %s is %s: %w", resID, r.State, sentinel.ErrInvalidState)
	}
	r.State = target
	r.StateReason = reason
	r.UpdatedAt = at
	cp := *r
	return &cp, nil
}

func (s *InMemoryStore) HasPending(_ context.Context, userID id.UserID, states ...State) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.reservations {
		if r.UserID == userID && slices.Contains(states, r.State) {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) collect(keep func(*Reservation) bool) []*Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Reservation
	for _, r := range s.reservations {
		if keep(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out
}
