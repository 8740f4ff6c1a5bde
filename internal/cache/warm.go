package cache

import (
	"context"
	"time"
)

// WarmConfig configures a cache-warming pass: popular symbols are
// pre-populated across providers and levels so first real requests hit
// a warm cache.
type WarmConfig struct {
	Symbols   []string
	Providers []string
	Levels    []Level
}

// DefaultWarmConfig covers the most commonly requested tickers.
func DefaultWarmConfig() WarmConfig {
	return WarmConfig{
		Symbols:   []string{"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA", "NVDA", "META", "NFLX", "BTC-USD", "ETH-USD"},
		Providers: []string{"yahoo", "fmp"},
		Levels:    []Level{LevelQuotes, LevelProfiles},
	}
}

// WarmStats reports the outcome of a warming pass.
type WarmStats struct {
	Success int
	Errors  int
	Skipped int
}

// Fetcher populates the cache for one (provider, level, symbol)
// combination and reports whether the entry already existed. Warming
// goes through the provider's own read-through fetch path so the entry
// lands under exactly the key a real request will consult; a read that
// hits an existing entry returns cached=true and leaves it untouched.
type Fetcher func(ctx context.Context, provider string, level Level, symbol string) (cached bool, err error)

// Warm runs a warming pass: every (provider, level, symbol) combination
// is fetched through fetch, which fills gaps and never overwrites a
// live entry (a cache hit inside the fetch short-circuits before any
// write).
func (s *Service) Warm(ctx context.Context, cfg WarmConfig, fetch Fetcher) WarmStats {
	var stats WarmStats

	for _, provider := range cfg.Providers {
		for _, level := range cfg.Levels {
			for _, symbol := range cfg.Symbols {
				cached, err := fetch(ctx, provider, level, symbol)
				if err != nil {
					s.log.Warn().Err(err).Str("provider", provider).Str("symbol", symbol).
						Str("level", string(level)).Msg("cache warming fetch error")
					stats.Errors++
					continue
				}
				if cached {
					stats.Skipped++
					continue
				}
				stats.Success++

				// Small delay between warming requests so a burst of
				// cold-start fetches doesn't itself trip provider
				// rate limits.
				time.Sleep(10 * time.Millisecond)
			}
		}
	}

	return stats
}
