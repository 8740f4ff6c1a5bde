// Package types defines the canonical data model shared by every provider
// adapter, the registry, and the orchestrator: symbols, quotes, profiles,
// historical series, search results, and the quality/anomaly/provenance
// envelopes attached to every response.
package types

import (
	"fmt"
	"strings"
)

// Symbol is an opaque, normalized ticker. It is upper-cased, trimmed, and
// validated syntactically once at the orchestrator boundary; everything
// downstream treats it as an opaque value.
type Symbol string

// NewSymbol normalizes and validates a raw ticker string.
func NewSymbol(raw string) (Symbol, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if len(s) == 0 || len(s) > 20 {
		return "", fmt.Errorf("symbol %q: length must be 1-20 characters", raw)
	}
	for _, r := range s {
		if !isSymbolRune(r) {
			return "", fmt.Errorf("symbol %q: invalid character %q", raw, r)
		}
	}
	return Symbol(s), nil
}

func isSymbolRune(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '-' || r == '.':
		return true
	default:
		return false
	}
}

func (s Symbol) String() string { return string(s) }

// AssetType tags the kind of instrument a symbol refers to. Only Stock and
// Crypto are first-class in the reference adapters; the others are
// recognized by the type system but no adapter declares support for them.
type AssetType string

const (
	AssetStock     AssetType = "stock"
	AssetCrypto    AssetType = "crypto"
	AssetIndex     AssetType = "index"
	AssetCommodity AssetType = "commodity"
	AssetForex     AssetType = "forex"
)

// Valid reports whether a is one of the recognized asset types.
func (a AssetType) Valid() bool {
	switch a {
	case AssetStock, AssetCrypto, AssetIndex, AssetCommodity, AssetForex:
		return true
	default:
		return false
	}
}

// Period is a historical-data lookback window.
type Period string

const (
	Period1D  Period = "1d"
	Period5D  Period = "5d"
	Period1M  Period = "1m"
	Period3M  Period = "3m"
	Period6M  Period = "6m"
	Period1Y  Period = "1y"
	Period2Y  Period = "2y"
	Period5Y  Period = "5y"
	Period10Y Period = "10y"
	PeriodYTD Period = "ytd"
	PeriodMax Period = "max"
)

func (p Period) Valid() bool {
	switch p {
	case Period1D, Period5D, Period1M, Period3M, Period6M, Period1Y, Period2Y, Period5Y, Period10Y, PeriodYTD, PeriodMax:
		return true
	default:
		return false
	}
}

// isShort reports whether the period is short enough to support
// intraday intervals; anything past 5d only makes sense at daily or
// coarser granularity.
func (p Period) isShort() bool {
	return p == Period1D || p == Period5D
}

// Interval is a historical-data bar interval.
type Interval string

const (
	Interval1Min  Interval = "1m"
	Interval2Min  Interval = "2m"
	Interval5Min  Interval = "5m"
	Interval15Min Interval = "15m"
	Interval30Min Interval = "30m"
	Interval60Min Interval = "60m"
	Interval90Min Interval = "90m"
	Interval1H    Interval = "1h"
	Interval1D    Interval = "1d"
	Interval5D    Interval = "5d"
	Interval1Wk   Interval = "1wk"
	Interval1Mo   Interval = "1mo"
	Interval3Mo   Interval = "3mo"
)

var intradayIntervals = map[Interval]bool{
	Interval1Min: true, Interval2Min: true, Interval5Min: true,
	Interval15Min: true, Interval30Min: true, Interval60Min: true,
	Interval90Min: true, Interval1H: true,
}

func (i Interval) Valid() bool {
	switch i {
	case Interval1Min, Interval2Min, Interval5Min, Interval15Min, Interval30Min,
		Interval60Min, Interval90Min, Interval1H, Interval1D, Interval5D,
		Interval1Wk, Interval1Mo, Interval3Mo:
		return true
	default:
		return false
	}
}

func (i Interval) isIntraday() bool { return intradayIntervals[i] }

// ValidatePeriodInterval enforces the period/interval compatibility
// policy: intraday intervals are only valid alongside the 1d/5d
// periods.
func ValidatePeriodInterval(p Period, i Interval) error {
	if !p.Valid() {
		return fmt.Errorf("invalid period %q", p)
	}
	if !i.Valid() {
		return fmt.Errorf("invalid interval %q", i)
	}
	if i.isIntraday() && !p.isShort() {
		return fmt.Errorf("interval %q is intraday and only valid with period 1d or 5d, got %q", i, p)
	}
	return nil
}
