package store

import (
	"context"
	"sync"
	"time"

	"github.com/BatmanBruc/vpn-subscription-bot/types"
)

type flowEntry struct {
	planID    string
	expiresAt time.Time
}

// MemoryFlowStore is used when Redis is not configured.
type MemoryFlowStore struct {
	mu      sync.Mutex
	entries map[int64]flowEntry
	ttl     time.Duration
}

var _ types.FlowStore = (*MemoryFlowStore)(nil)

func NewMemoryFlowStore(ttl time.Duration) *MemoryFlowStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryFlowStore{entries: make(map[int64]flowEntry), ttl: ttl}
}

func (s *MemoryFlowStore) SetChosenPlan(_ context.Context, userID int64, planID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttl
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = flowEntry{planID: planID, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryFlowStore) GetChosenPlan(_ context.Context, userID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok || time.Now().After(e.expiresAt) {
		delete(s.entries, userID)
		return "", types.ErrFlowNotFound
	}
	return e.planID, nil
}

func (s *MemoryFlowStore) ClearChosenPlan(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
	return nil
}
