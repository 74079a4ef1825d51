//go:build integration

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/BatmanBruc/vpn-subscription-bot/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisFlowStore(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, addr, "", 0, "vpn_bot_test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedisFlowStore(client, 1)
	require.NoError(t, s.ClearChosenPlan(ctx, 1))

	_, err = s.GetChosenPlan(ctx, 1)
	assert.ErrorIs(t, err, types.ErrFlowNotFound)

	require.NoError(t, s.SetChosenPlan(ctx, 1, "6month", 0))
	plan, err := s.GetChosenPlan(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "6month", plan)

	require.NoError(t, s.SetChosenPlan(ctx, 2, "1month", 50*time.Millisecond))
	time.Sleep(100 * time.Millisecond)
	_, err = s.GetChosenPlan(ctx, 2)
	assert.ErrorIs(t, err, types.ErrFlowNotFound)

	require.NoError(t, s.ClearChosenPlan(ctx, 1))
	_, err = s.GetChosenPlan(ctx, 1)
	assert.ErrorIs(t, err, types.ErrFlowNotFound)
}
