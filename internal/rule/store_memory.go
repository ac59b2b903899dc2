package rule

import (
	"context"
	"fmt"
	"sort"
	"sync"

	id "parqueo/pkg/domain"
	"parqueo/pkg/platform/sentinel"
)

// InMemoryStore keeps the rule catalog in memory for tests/dev.
type InMemoryStore struct {
	mu    sync.RWMutex
	rules map[id.RuleID]*InfractionRule
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{rules: make(map[id.RuleID]*InfractionRule)}
}

func (s *InMemoryStore) Save(_ context.Context, r *InfractionRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.rules[r.ID] = &cp
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, ruleID id.RuleID) (*InfractionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[ruleID]
	if !ok {
		return nil, fmt.Errorf("rule %s: %w", ruleID, sentinel.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*InfractionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*InfractionRule, 0, len(s.rules))
	for _, r := range s.rules {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Description < out[j].Description })
	return out, nil
}
