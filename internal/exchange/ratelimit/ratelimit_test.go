package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenBucket_BurstThenPaces(t *testing.T) {
	tb := NewTokenBucket(100, 2) // 100/s, burst 2

	start := time.Now()
	require.NoError(t, tb.Wait(context.Background()))
	require.NoError(t, tb.Wait(context.Background()))
	require.Less(t, time.Since(start), 5*time.Millisecond, "burst tokens must not block")

	require.NoError(t, tb.Wait(context.Background()))
	require.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond, "third call must wait for refill")
}

func TestTokenBucket_CanceledContext(t *testing.T) {
	tb := NewTokenBucket(0.001, 1)
	require.NoError(t, tb.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := tb.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMinInterval_SpacesCalls(t *testing.T) {
	g := &MinInterval{Interval: 15 * time.Millisecond}

	start := time.Now()
	require.NoError(t, g.Wait(context.Background()))
	require.NoError(t, g.Wait(context.Background()))
	require.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestForBudget_ZeroDisables(t *testing.T) {
	g := ForBudget(0, 0)
	_, ok := g.(None)
	require.True(t, ok)
	require.NoError(t, g.Wait(context.Background()))
}
