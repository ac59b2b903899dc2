package sanction

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"parqueo/internal/rule"
	id "parqueo/pkg/domain"
	"parqueo/pkg/platform/sentinel"
)

// InMemoryStore keeps sanctions in memory for tests/dev.
type InMemoryStore struct {
	mu        sync.RWMutex
	sanctions map[id.SanctionID]*Sanction
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{sanctions: make(map[id.SanctionID]*Sanction)}
}

func (s *InMemoryStore) Save(_ context.Context, sn *Sanction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sn
	s.sanctions[sn.ID] = &cp
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, sanctionID id.SanctionID) (*Sanction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sn, ok := s.sanctions[sanctionID]
	if !ok {
		return nil, fmt.Errorf("sanction %s: %w", sanctionID, sentinel.ErrNotFound)
	}
	cp := *sn
	return &cp, nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]*Sanction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Sanction
	for _, sn := range s.sanctions {
		if sn.UserID == userID {
			cp := *sn
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RegisteredAt.After(out[j].RegisteredAt)
	})
	return out, nil
}

func (s *InMemoryStore) CountPrior(_ context.Context, userID id.UserID, kind rule.FaultKind) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, sn := range s.sanctions {
		if sn.UserID == userID && sn.FaultKind == kind &&
			(sn.State == StateActive || sn.State == StateResolved) {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) ExistsForReservation(_ context.Context, resID id.ReservationID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sn := range s.sanctions {
		if sn.ReservationID != nil && *sn.ReservationID == resID && sn.State != StateVoid {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) EffectiveSuspension(_ context.Context, userID id.UserID, now time.Time) (*Sanction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sn := range s.sanctions {
		if sn.UserID == userID && sn.EffectiveAt(now) {
			cp := *sn
			return &cp, nil
		}
	}
	return nil, nil
}
