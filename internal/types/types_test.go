package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewSymbolNormalizes(t *testing.T) {
	sym, err := NewSymbol("  aapl ")
	require.NoError(t, err)
	require.Equal(t, Symbol("AAPL"), sym)

	sym, err = NewSymbol("brk.b")
	require.NoError(t, err)
	require.Equal(t, Symbol("BRK.B"), sym)

	_, err = NewSymbol("")
	require.Error(t, err)

	_, err = NewSymbol("AAPL!")
	require.Error(t, err)

	_, err = NewSymbol(string(make([]byte, 21)))
	require.Error(t, err)
}

func TestValidatePeriodIntervalTightenedPolicy(t *testing.T) {
	require.NoError(t, ValidatePeriodInterval(Period1D, Interval5Min))
	require.NoError(t, ValidatePeriodInterval(Period5D, Interval1H))
	require.NoError(t, ValidatePeriodInterval(Period1Y, Interval1D))

	err := ValidatePeriodInterval(Period1Y, Interval5Min)
	require.Error(t, err, "intraday intervals are only valid with 1d/5d periods")

	require.Error(t, ValidatePeriodInterval("bogus", Interval1D))
	require.Error(t, ValidatePeriodInterval(Period1D, "bogus"))
}

func TestHistoricalSeriesSortPoints(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := HistoricalSeries{
		Points: []OHLCVBar{
			{Date: base.AddDate(0, 0, 2)},
			{Date: base},
			{Date: base.AddDate(0, 0, 1)},
		},
	}
	require.False(t, series.IsSorted())

	series.SortPoints()
	require.True(t, series.IsSorted())
	require.Equal(t, base, series.Points[0].Date)
	require.Equal(t, base.AddDate(0, 0, 2), series.Points[2].Date)
}

func TestHistoricalSeriesRejectsDuplicateDates(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := HistoricalSeries{Points: []OHLCVBar{{Date: base}, {Date: base}}}
	require.False(t, series.IsSorted(), "duplicate dates are not strictly ascending")
}

func TestNewDataQualityMetricsWeightsAndLevel(t *testing.T) {
	m := NewDataQualityMetrics(100, 100, 95, 90)
	require.InDelta(t, 96.75, m.Overall, 1e-6)
	require.Equal(t, QualityExcellent, m.Level)

	m = NewDataQualityMetrics(50, 50, 50, 50)
	require.Equal(t, 50.0, m.Overall)
	require.Equal(t, QualityPoor, m.Level)

	m = NewDataQualityMetrics(0, 0, 0, 0)
	require.Equal(t, QualityUnreliable, m.Level)
}

func TestLevelForScoreBoundaries(t *testing.T) {
	require.Equal(t, QualityExcellent, LevelForScore(95))
	require.Equal(t, QualityGood, LevelForScore(85))
	require.Equal(t, QualityFair, LevelForScore(70))
	require.Equal(t, QualityPoor, LevelForScore(50))
	require.Equal(t, QualityUnreliable, LevelForScore(49.999))
}

func TestProviderBaselineAccuracy(t *testing.T) {
	require.Equal(t, 95.0, ProviderBaselineAccuracy(TierPremium))
	require.Equal(t, 85.0, ProviderBaselineAccuracy(TierFree))
	require.Equal(t, 80.0, ProviderBaselineAccuracy(TierUnknown))
}
