package orchestrator

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/archelyst/marketdata-go/internal/types"
)

// completenessForQuote scores {symbol, price} presence, the required
// fields of a price-bearing payload.
func completenessForQuote(q *types.Quote) float64 {
	present := 0
	total := 2
	if q.Symbol != "" {
		present++
	}
	if !q.Price.IsZero() {
		present++
	}
	return 100 * float64(present) / float64(total)
}

// completenessForSymbolOnly scores payloads whose required set is just
// {symbol} (profile, search results).
func completenessForSymbolOnly(symbolPresent bool) float64 {
	if symbolPresent {
		return 100
	}
	return 0
}

// freshnessScore is 100 on a fresh fetch, else
// max(50, 100 - processing_time_s*10) on a cache hit.
func freshnessScore(cacheHit bool, processingTime time.Duration) float64 {
	if !cacheHit {
		return 100
	}
	score := 100 - processingTime.Seconds()*10
	if score < 50 {
		return 50
	}
	return score
}

func (s *Service) qualityFor(providerName string, cacheHit bool, elapsed time.Duration, completeness float64) types.DataQualityMetrics {
	return types.NewDataQualityMetrics(
		completeness,
		freshnessScore(cacheHit, elapsed),
		s.accuracyForProvider(providerName),
		types.ConsistencyScoreDefault,
	)
}

// detectQuoteAnomalies runs the three anomaly checks for a single
// quote: extreme price change, volume spike, price inconsistency.
// volumeHistory, if non-nil, supplies the most recent bars (newest
// last) used for the volume_spike check; pass nil when historical
// volumes aren't available for this call.
func (s *Service) detectQuoteAnomalies(q *types.Quote, volumeHistory []int64) types.AnomalyReport {
	if !s.anomalyCfg.Enabled {
		return types.NoAnomalies()
	}

	var foundTypes []types.AnomalyType
	details := make(map[types.AnomalyType]types.AnomalyDetail)
	var confidences []float64

	threshold := s.anomalyCfg.PriceChangeThresholdPct
	changePct, _ := q.ChangePercent.Float64()
	absChange := changePct
	if absChange < 0 {
		absChange = -absChange
	}
	if absChange > threshold {
		confidence := min100(absChange / threshold * 50)
		foundTypes = append(foundTypes, types.AnomalyExtremePriceChange)
		details[types.AnomalyExtremePriceChange] = types.AnomalyDetail{
			"observed_change_percent": changePct,
			"threshold_percent":       threshold,
		}
		confidences = append(confidences, confidence)
	}

	if len(volumeHistory) >= 2 {
		recent := volumeHistory
		if len(recent) > 30 {
			recent = recent[len(recent)-30:]
		}
		var sum float64
		for _, v := range recent {
			sum += float64(v)
		}
		mean := sum / float64(len(recent))
		if mean > 0 {
			current := float64(q.Volume)
			multiplier := s.anomalyCfg.VolumeSpikeMultiplier
			if current > mean*multiplier {
				ratio := current / mean
				confidence := min100(ratio / multiplier * 50)
				foundTypes = append(foundTypes, types.AnomalyVolumeSpike)
				details[types.AnomalyVolumeSpike] = types.AnomalyDetail{
					"current_volume": q.Volume,
					"average_volume": mean,
					"ratio":          ratio,
				}
				confidences = append(confidences, confidence)
			}
		}
	}

	if !priceConsistent(q) {
		foundTypes = append(foundTypes, types.AnomalyPriceInconsistency)
		details[types.AnomalyPriceInconsistency] = types.AnomalyDetail{
			"price": q.Price, "open": q.Open, "low": q.Low, "high": q.High,
		}
		confidences = append(confidences, 90)
	}

	if len(foundTypes) == 0 {
		return types.NoAnomalies()
	}

	var sum float64
	for _, c := range confidences {
		sum += c
	}
	return types.AnomalyReport{
		HasAnomalies: true,
		Types:        foundTypes,
		Confidence:   sum / float64(len(confidences)),
		Details:      details,
	}
}

// priceConsistent checks low <= price <= high AND low <= open <= high.
func priceConsistent(q *types.Quote) bool {
	inRange := func(v decimal.Decimal) bool {
		return !v.LessThan(q.Low) && !v.GreaterThan(q.High)
	}
	return inRange(q.Price) && inRange(q.Open)
}

func min100(v float64) float64 {
	if v > 100 {
		return 100
	}
	return v
}
