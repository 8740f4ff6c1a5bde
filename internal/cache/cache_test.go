package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testService() *Service {
	return NewService(NewMemoryBackend(), zerolog.Nop())
}

func TestMakeKeyDeterministic(t *testing.T) {
	k1 := MakeKey(LevelQuotes, "fmp", "AAPL", map[string]string{"period": "1d", "interval": "5m"})
	k2 := MakeKey(LevelQuotes, "fmp", "AAPL", map[string]string{"interval": "5m", "period": "1d"})
	require.Equal(t, k1, k2, "param ordering must not affect the hash")

	k3 := MakeKey(LevelQuotes, "fmp", "AAPL", nil)
	require.NotEqual(t, k1, k3)
	require.Equal(t, "cache:quotes:fmp:AAPL", k3)
}

func TestSetThenGetRoundTrips(t *testing.T) {
	ctx := context.Background()
	svc := testService()

	type payload struct {
		Price string `json:"price"`
	}
	err := svc.Set(ctx, LevelQuotes, "fmp", "AAPL", nil, payload{Price: "189.23"}, 0)
	require.NoError(t, err)

	res, err := svc.Get(ctx, LevelQuotes, "fmp", "AAPL", nil)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Less(t, res.Age, time.Second)

	var got payload
	require.NoError(t, json.Unmarshal(res.Payload, &got))
	require.Equal(t, "189.23", got.Price)
}

func TestGetMissRecordsStats(t *testing.T) {
	ctx := context.Background()
	svc := testService()

	res, err := svc.Get(ctx, LevelQuotes, "fmp", "MISSING", nil)
	require.NoError(t, err)
	require.Nil(t, res)

	stats := svc.Stats()
	s := stats["quotes:fmp"]
	require.Equal(t, int64(1), s.Misses)
	require.Equal(t, int64(0), s.Hits)
}

func TestTTLExpiryPerLevel(t *testing.T) {
	require.Equal(t, 30*time.Second, TTL(LevelRealTime))
	require.Equal(t, 60*time.Second, TTL(LevelQuotes))
	require.Equal(t, 3600*time.Second, TTL(LevelProfiles))
	require.Equal(t, 14400*time.Second, TTL(LevelHistorical))
	require.Equal(t, 900*time.Second, TTL(LevelSearch))
	require.Equal(t, 300*time.Second, TTL(LevelMarketOverview))
	require.Equal(t, 1800*time.Second, TTL(LevelAIInsights))
}

func TestInvalidatePatternRemovesMatchingKeys(t *testing.T) {
	ctx := context.Background()
	svc := testService()

	require.NoError(t, svc.Set(ctx, LevelQuotes, "fmp", "AAPL", nil, "a", 0))
	require.NoError(t, svc.Set(ctx, LevelQuotes, "fmp", "MSFT", nil, "b", 0))
	require.NoError(t, svc.Set(ctx, LevelQuotes, "yahoo", "AAPL", nil, "c", 0))

	n, err := svc.InvalidatePattern(ctx, LevelQuotes, "fmp", "*")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	res, err := svc.Get(ctx, LevelQuotes, "yahoo", "AAPL", nil)
	require.NoError(t, err)
	require.NotNil(t, res, "unrelated provider's entry must survive invalidation")
}

func TestWarmCountsSkipsFetchesAndErrors(t *testing.T) {
	ctx := context.Background()
	svc := testService()

	calls := 0
	stats := svc.Warm(ctx, WarmConfig{
		Symbols:   []string{"AAPL", "MSFT", "BAD"},
		Providers: []string{"fmp"},
		Levels:    []Level{LevelQuotes},
	}, func(ctx context.Context, provider string, level Level, symbol string) (bool, error) {
		calls++
		switch symbol {
		case "AAPL":
			return true, nil // already cached by an earlier request
		case "BAD":
			return false, errors.New("upstream down")
		default:
			return false, nil
		}
	})

	require.Equal(t, 3, calls, "every combination goes through the read-through fetch")
	require.Equal(t, 1, stats.Skipped)
	require.Equal(t, 1, stats.Success)
	require.Equal(t, 1, stats.Errors)
}

func TestSizeCountsOnlyMatchingSlice(t *testing.T) {
	ctx := context.Background()
	svc := testService()

	require.NoError(t, svc.Set(ctx, LevelQuotes, "fmp", "AAPL", nil, "a", 0))
	require.NoError(t, svc.Set(ctx, LevelQuotes, "fmp", "MSFT", nil, "b", 0))
	require.NoError(t, svc.Set(ctx, LevelProfiles, "fmp", "AAPL", nil, "c", 0))

	info, err := svc.Size(ctx, LevelQuotes, "fmp")
	require.NoError(t, err)
	require.Equal(t, 2, info.KeyCount)
	require.Greater(t, info.MemoryBytes, int64(0))

	all, err := svc.Size(ctx, "", "")
	require.NoError(t, err)
	require.Equal(t, 3, all.KeyCount)
}

func TestMemoryBackendExpiresEntries(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()
	require.NoError(t, b.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	_, found, err := b.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)
}
