package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BatmanBruc/vpn-subscription-bot/types"
)

// MemoryStore is a process-local store with the same semantics as PostgresStore.
// It does not survive restarts and is meant for tests and local runs.
type MemoryStore struct {
	mu            sync.Mutex
	users         map[int64]types.User
	payments      map[string]types.PaymentRecord
	subscriptions map[int64]types.SubscriptionRecord
	now           func() time.Time
}

var (
	_ types.SettlementStore = (*MemoryStore)(nil)
	_ types.UserStore       = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[int64]types.User),
		payments:      make(map[string]types.PaymentRecord),
		subscriptions: make(map[int64]types.SubscriptionRecord),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) RegisterUser(_ context.Context, u types.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[u.UserID]
	if ok {
		existing.Username = strings.TrimSpace(u.Username)
		existing.FirstName = strings.TrimSpace(u.FirstName)
		s.users[u.UserID] = existing
		return false, nil
	}
	u.Username = strings.TrimSpace(u.Username)
	u.FirstName = strings.TrimSpace(u.FirstName)
	u.CreatedAt = s.now()
	s.users[u.UserID] = u
	return true, nil
}

func (s *MemoryStore) GetUser(_ context.Context, userID int64) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, types.ErrUserNotFound
	}
	return &u, nil
}

func (s *MemoryStore) CreatePayment(_ context.Context, p types.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Label = strings.TrimSpace(p.Label)
	if _, exists := s.payments[p.Label]; exists {
		return types.ErrPaymentExists
	}
	if p.Status == "" {
		p.Status = types.PaymentPending
	}
	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.payments[p.Label] = p
	return nil
}

func (s *MemoryStore) GetPayment(_ context.Context, label string) (*types.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[label]
	if !ok {
		return nil, types.ErrPaymentNotFound
	}
	return &p, nil
}

func (s *MemoryStore) ListPendingPayments(_ context.Context, createdBefore time.Time) ([]types.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payments := make([]types.PaymentRecord, 0)
	for _, p := range s.payments {
		if p.IsPending() && p.CreatedAt.Before(createdBefore) {
			payments = append(payments, p)
		}
	}
	sort.Slice(payments, func(i, j int) bool {
		return payments[i].CreatedAt.Before(payments[j].CreatedAt)
	})
	return payments, nil
}

func (s *MemoryStore) GetSubscription(_ context.Context, userID int64) (*types.SubscriptionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[userID]
	if !ok {
		return nil, types.ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (s *MemoryStore) ReplaceSubscription(_ context.Context, sub types.SubscriptionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[sub.UserID] = sub
	return nil
}

func (s *MemoryStore) DeleteSubscription(_ context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subscriptions[userID]
	delete(s.subscriptions, userID)
	return ok, nil
}

func (s *MemoryStore) SettleSuccess(_ context.Context, label string, grant types.GrantFunc) (*types.PaymentRecord, *types.SubscriptionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[label]
	if !ok {
		return nil, nil, types.ErrPaymentNotFound
	}
	if !p.IsPending() {
		return &p, nil, types.ErrAlreadyProcessed
	}
	sub := grant(p)
	s.subscriptions[sub.UserID] = sub
	p.Status = types.PaymentSuccess
	p.UpdatedAt = s.now()
	s.payments[label] = p
	return &p, &sub, nil
}

func (s *MemoryStore) SettleFailure(_ context.Context, label string) (*types.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[label]
	if !ok {
		return nil, types.ErrPaymentNotFound
	}
	if !p.IsPending() {
		return &p, types.ErrAlreadyProcessed
	}
	p.Status = types.PaymentFailed
	p.UpdatedAt = s.now()
	s.payments[label] = p
	return &p, nil
}

func (s *MemoryStore) SettleRefund(_ context.Context, label string, at time.Time) (*types.PaymentRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[label]
	if !ok {
		return nil, false, types.ErrPaymentNotFound
	}
	if p.RefundedAt != nil || p.Status == types.PaymentFailed {
		return &p, false, types.ErrAlreadyProcessed
	}

	revoked := false
	if p.Status == types.PaymentSuccess {
		if _, ok := s.subscriptions[p.UserID]; ok {
			delete(s.subscriptions, p.UserID)
			revoked = true
		}
	} else {
		p.Status = types.PaymentFailed
	}
	refundedAt := at.UTC()
	p.RefundedAt = &refundedAt
	p.UpdatedAt = s.now()
	s.payments[label] = p
	return &p, revoked, nil
}
