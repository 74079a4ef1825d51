package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/BatmanBruc/vpn-subscription-bot/types"
)

// RedisFlowStore holds the plan a user picked while they are choosing a server.
type RedisFlowStore struct {
	client *RedisClient
	ttl    time.Duration
}

var _ types.FlowStore = (*RedisFlowStore)(nil)

func NewRedisFlowStore(redisClient *RedisClient, ttlHours int) *RedisFlowStore {
	ttl := time.Duration(ttlHours) * time.Hour
	if ttlHours <= 0 {
		ttl = time.Hour
	}

	return &RedisFlowStore{
		client: redisClient,
		ttl:    ttl,
	}
}

func (s *RedisFlowStore) key(userID int64) string {
	return s.client.generateKey("buy_flow", strconv.FormatInt(userID, 10))
}

func (s *RedisFlowStore) SetChosenPlan(ctx context.Context, userID int64, planID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttl
	}
	return s.client.Set(ctx, s.key(userID), planID, ttl)
}

func (s *RedisFlowStore) GetChosenPlan(ctx context.Context, userID int64) (string, error) {
	var planID string
	if err := s.client.Get(ctx, s.key(userID), &planID); err != nil {
		if errors.Is(err, errKeyNotFound) {
			return "", types.ErrFlowNotFound
		}
		return "", err
	}
	return planID, nil
}

func (s *RedisFlowStore) ClearChosenPlan(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, s.key(userID))
}
