package checkpoint

import (
	"context"
	"fmt"
	"sync"
	"time"

	id "parqueo/pkg/domain"
	"parqueo/pkg/platform/sentinel"
)

// InMemoryStore keeps tokens in memory for tests/dev. The single mutex
// makes RotateEntry and ConsumeExit first-caller-wins, matching the
// conditional UPDATE the postgres store uses.
type InMemoryStore struct {
	mu       sync.RWMutex
	tokens   map[id.TokenID]*Token
	bySecret map[string]id.TokenID
	byRes    map[id.ReservationID]id.TokenID
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{
		tokens:   make(map[id.TokenID]*Token),
		bySecret: make(map[string]id.TokenID),
		byRes:    make(map[id.ReservationID]id.TokenID),
	}
}

func (s *InMemoryStore) Save(_ context.Context, t *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.tokens[t.ID]; ok {
		delete(s.bySecret, prev.Secret)
	}
	cp := *t
	s.tokens[t.ID] = &cp
	s.bySecret[t.Secret] = t.ID
	s.byRes[t.ReservationID] = t.ID
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, tokenID id.TokenID) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[tokenID]
	if !ok {
		return nil, fmt.Errorf("token %s: %w", tokenID, sentinel.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *InMemoryStore) GetBySecret(_ context.Context, secret string) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tokenID, ok := s.bySecret[secret]
	if !ok {
		return nil, fmt.Errorf("token secret: %w", sentinel.ErrNotFound)
	}
	cp := *s.tokens[tokenID]
	return &cp, nil
}

func (s *InMemoryStore) GetByReservation(_ context.Context, resID id.ReservationID) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tokenID, ok := s.byRes[resID]
	if !ok {
		return nil, fmt.Errorf("token for reservation %s: %w", resID, sentinel.ErrNotFound)
	}
	cp := *s.tokens[tokenID]
	return &cp, nil
}

func (s *InMemoryStore) RotateEntry(_ context.Context, tokenID id.TokenID, newSecret string, entryAt time.Time) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenID]
	if !ok {
		return nil, fmt.Errorf("token %s: %w", tokenID, sentinel.ErrNotFound)
	}
	if t.Kind != KindEntry {
		return nil, fmt.Errorf("token %s is %s: %w", tokenID, t.Kind, sentinel.ErrInvalidState)
	}
	delete(s.bySecret, t.Secret)
	at := entryAt
	t.Kind = KindExit
	t.Secret = newSecret
	t.EntryAt = &at
	t.ValidFrom = entryAt
	t.ValidUntil = nil
	s.bySecret[newSecret] = tokenID
	cp := *t
	return &cp, nil
}

func (s *InMemoryStore) ConsumeExit(_ context.Context, tokenID id.TokenID, exitAt time.Time) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenID]
	if !ok {
		return nil, fmt.Errorf("token %s: %w", tokenID, sentinel.ErrNotFound)
	}
	switch t.Kind {
	case KindExitUsed:
		return nil, fmt.Errorf("token %s: %w", tokenID, sentinel.ErrAlreadyUsed)
	case KindEntry:
		return nil, fmt.Errorf("token %s is %s: %w", tokenID, t.Kind, sentinel.ErrInvalidState)
	}
	at := exitAt
	t.Kind = KindExitUsed
	t.ExitAt = &at
	cp := *t
	return &cp, nil
}
