package types

import (
	"context"
	"time"
)

// FlowStore keeps short-lived chat purchase choices.
type FlowStore interface {
	SetChosenPlan(ctx context.Context, userID int64, planID string, ttl time.Duration) error
	GetChosenPlan(ctx context.Context, userID int64) (string, error)
	ClearChosenPlan(ctx context.Context, userID int64) error
}
