package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBudgetValidateMonotonic(t *testing.T) {
	require.NoError(t, Budget{PerMinute: 5, PerHour: 100, PerDay: 1000, Burst: 2}.Validate())
	require.Error(t, Budget{PerMinute: 200, PerHour: 100, PerDay: 1000}.Validate())
	require.Error(t, Budget{PerMinute: 5, PerHour: 2000, PerDay: 1000}.Validate())
}

func TestUnconfiguredProviderAlwaysAllowed(t *testing.T) {
	l := NewLimiter()
	for i := 0; i < 50; i++ {
		allowed, _ := l.IsAllowed("unknown-provider", "quote")
		require.True(t, allowed)
	}
}

func TestBurstWindowDeniesAfterLimit(t *testing.T) {
	l := NewLimiter()
	require.NoError(t, l.SetBudget("fmp", Budget{PerMinute: 100, PerHour: 1000, PerDay: 10000, Burst: 3}))

	for i := 0; i < 3; i++ {
		allowed, diag := l.IsAllowed("fmp", "quote")
		require.True(t, allowed, "request %d should be admitted", i)
		require.True(t, diag.Allowed)
	}

	allowed, diag := l.IsAllowed("fmp", "quote")
	require.False(t, allowed)
	require.Equal(t, WindowBurst, diag.ExceededWindow)
	require.Equal(t, 10*time.Second, diag.RetryAfter)
}

func TestMinuteWindowDeniesThirdRequest(t *testing.T) {
	l := NewLimiter()
	require.NoError(t, l.SetBudget("fmp", Budget{PerMinute: 2, PerHour: 100, PerDay: 1000, Burst: 10}))

	for i := 0; i < 2; i++ {
		allowed, _ := l.IsAllowed("fmp", "quote")
		require.True(t, allowed)
	}

	allowed, diag := l.IsAllowed("fmp", "quote")
	require.False(t, allowed)
	require.Equal(t, WindowMinute, diag.ExceededWindow)
	require.Greater(t, diag.RetryAfter, time.Duration(0))
	require.Equal(t, 2, diag.CurrentUsage[WindowMinute])
}

func TestDeniedRequestDoesNotConsumeOtherWindows(t *testing.T) {
	l := NewLimiter()
	require.NoError(t, l.SetBudget("fmp", Budget{PerMinute: 100, PerHour: 1000, PerDay: 10000, Burst: 1}))

	allowed, _ := l.IsAllowed("fmp", "quote")
	require.True(t, allowed)

	// Burst is now exhausted; repeated denials must not inflate the
	// minute/hour/day counters beyond the single admitted request.
	for i := 0; i < 5; i++ {
		allowed, _ := l.IsAllowed("fmp", "quote")
		require.False(t, allowed)
	}

	status := l.Status("fmp")
	require.Equal(t, 1, status[WindowMinute])
	require.Equal(t, 1, status[WindowHour])
	require.Equal(t, 1, status[WindowDay])
}

func TestConcurrentCallersNeverExceedLimit(t *testing.T) {
	l := NewLimiter()
	const limit = 10
	require.NoError(t, l.SetBudget("fmp", Budget{PerMinute: limit, PerHour: 100, PerDay: 1000, Burst: limit}))

	var wg sync.WaitGroup
	var admitted int64
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, _ := l.IsAllowed("fmp", "quote")
			if allowed {
				atomic.AddInt64(&admitted, 1)
			}
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, admitted, int64(limit), "concurrent admission must never exceed the window limit")
	require.Equal(t, int(admitted), l.Status("fmp")[WindowMinute])
}

func TestWindowEvictsExpiredTimestamps(t *testing.T) {
	ws := &windowState{}
	now := time.Now()
	ws.timestamps = []time.Time{
		now.Add(-20 * time.Second),
		now.Add(-5 * time.Second),
	}
	count := ws.evictAndCount(now, 10*time.Second)
	require.Equal(t, 1, count)
	require.Len(t, ws.timestamps, 1)
}

func TestResetClearsProviderState(t *testing.T) {
	l := NewLimiter()
	require.NoError(t, l.SetBudget("fmp", Budget{PerMinute: 1, PerHour: 10, PerDay: 100, Burst: 1}))

	allowed, _ := l.IsAllowed("fmp", "quote")
	require.True(t, allowed)
	allowed, _ = l.IsAllowed("fmp", "quote")
	require.False(t, allowed)

	l.Reset("fmp")

	allowed, _ = l.IsAllowed("fmp", "quote")
	require.True(t, allowed, "reset should clear prior usage")
}

func TestAllStatusCoversEveryConfiguredProvider(t *testing.T) {
	l := NewLimiter()
	require.NoError(t, l.SetBudget("fmp", Budget{PerMinute: 10, PerHour: 100, PerDay: 1000, Burst: 5}))
	require.NoError(t, l.SetBudget("yahoo", Budget{PerMinute: 20, PerHour: 200, PerDay: 2000, Burst: 10}))

	l.IsAllowed("fmp", "quote")
	l.IsAllowed("yahoo", "quote")

	all := l.AllStatus()
	require.Contains(t, all, "fmp")
	require.Contains(t, all, "yahoo")
	require.Equal(t, 1, all["fmp"][WindowMinute])
	require.Equal(t, 1, all["yahoo"][WindowMinute])
}
