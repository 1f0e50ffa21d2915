package flowstate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yoshapihoff/bricks/authenticator/internal/domain"
)

var _ domain.FlowStore = (*MemoryStore)(nil)

type memoryEntry struct {
	flow      domain.Flow
	expiresAt time.Time
}

// MemoryStore is a single-process flow store for FLOW_STORE=memory
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Save(ctx context.Context, flow domain.Flow, ttl time.Duration) error {
	if flow.State == "" {
		return fmt.Errorf("flowstate: missing state")
	}
	if ttl <= 0 {
		return fmt.Errorf("flowstate: ttl must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()
	s.entries[flow.State] = memoryEntry{flow: flow, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Take(ctx context.Context, state string) (*domain.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[state]
	if !ok {
		return nil, domain.ErrFlowNotFound
	}
	delete(s.entries, state)

	if !s.now().Before(entry.expiresAt) {
		return nil, domain.ErrFlowNotFound
	}

	flow := entry.flow
	return &flow, nil
}

func (s *MemoryStore) Delete(ctx context.Context, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[state]; !ok {
		return domain.ErrFlowNotFound
	}
	delete(s.entries, state)
	return nil
}

// sweep drops expired entries; callers hold mu
func (s *MemoryStore) sweep() {
	now := s.now()
	for state, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, state)
		}
	}
}
