package types

import (
	"context"
	"time"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// PaymentRecord is the audit row for one purchase attempt. Terms are fixed at creation.
type PaymentRecord struct {
	Label      string
	UserID     int64
	Server     string
	Amount     int64
	Days       int
	Status     PaymentStatus
	RefundedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (p PaymentRecord) IsPending() bool {
	return p.Status == PaymentPending
}

// SubscriptionRecord is the single active subscription of a user.
// PaymentLabel is empty for the free trial.
type SubscriptionRecord struct {
	UserID       int64
	Server       string
	PaymentLabel string
	StartDate    time.Time
	EndDate      time.Time
}

func (s SubscriptionRecord) ActiveAt(t time.Time) bool {
	return t.Before(s.EndDate)
}

type User struct {
	UserID    int64
	Username  string
	FirstName string
	CreatedAt time.Time
}

type PaymentStore interface {
	CreatePayment(ctx context.Context, p PaymentRecord) error
	GetPayment(ctx context.Context, label string) (*PaymentRecord, error)
	ListPendingPayments(ctx context.Context, createdBefore time.Time) ([]PaymentRecord, error)
}

type SubscriptionStore interface {
	GetSubscription(ctx context.Context, userID int64) (*SubscriptionRecord, error)
	ReplaceSubscription(ctx context.Context, sub SubscriptionRecord) error
	DeleteSubscription(ctx context.Context, userID int64) (bool, error)
}

// GrantFunc builds the subscription for a payment while the payment row is locked.
type GrantFunc func(p PaymentRecord) SubscriptionRecord

// SettlementStore carries the composite operations the reconciliation engine needs.
// Each Settle* call is atomic for its label and returns ErrAlreadyProcessed when the
// payment is not in the state the transition starts from.
type SettlementStore interface {
	PaymentStore
	SubscriptionStore

	SettleSuccess(ctx context.Context, label string, grant GrantFunc) (*PaymentRecord, *SubscriptionRecord, error)
	SettleFailure(ctx context.Context, label string) (*PaymentRecord, error)
	SettleRefund(ctx context.Context, label string, at time.Time) (p *PaymentRecord, revoked bool, err error)
}

type UserStore interface {
	RegisterUser(ctx context.Context, u User) (created bool, err error)
	GetUser(ctx context.Context, userID int64) (*User, error)
}
