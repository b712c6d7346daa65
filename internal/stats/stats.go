// Package stats computes market-wide summaries and tier correlation series.
package stats

import (
	"math"

	"github.com/shopspring/decimal"

	"tierwatch/internal/model"
	"tierwatch/internal/tier"
)

const (
	TrendBullish = "bullish"
	TrendBearish = "bearish"
	TrendNeutral = "neutral"

	trendThreshold = 2.0
)

// Compute summarises the universe. activeOpportunities is passed through.
func Compute(tokens []model.Token, activeOpportunities int) model.MarketStats {
	total := TotalMarketCap(tokens)
	distribution := make(map[model.Tier]int, len(model.Tiers))
	for _, t := range model.Tiers {
		distribution[t] = 0
	}
	for _, token := range tokens {
		distribution[token.Tier]++
	}

	return model.MarketStats{
		TotalMarketCap:      total.InexactFloat64(),
		BTCDominance:        BTCDominance(tokens),
		ActiveOpportunities: activeOpportunities,
		MarketTrend:         Trend(tokens),
		TierDistribution:    distribution,
		VolatilityIndex:     VolatilityIndex(tokens),
	}
}

// TotalMarketCap sums every token's market cap.
func TotalMarketCap(tokens []model.Token) decimal.Decimal {
	total := decimal.Zero
	for _, t := range tokens {
		total = total.Add(t.MarketCap)
	}
	return total
}

// BTCDominance is BTC's share of the total market cap in percent, or 0 when
// BTC is absent or the total is zero.
func BTCDominance(tokens []model.Token) float64 {
	total := TotalMarketCap(tokens)
	if total.IsZero() {
		return 0
	}
	for _, t := range tokens {
		if t.Symbol == "BTC" {
			return t.MarketCap.Div(total).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}
	}
	return 0
}

// Trend labels the mean 24h change of the universe.
func Trend(tokens []model.Token) string {
	if len(tokens) == 0 {
		return TrendNeutral
	}
	mean := tier.Mean(tokens)
	switch {
	case mean > trendThreshold:
		return TrendBullish
	case mean < -trendThreshold:
		return TrendBearish
	default:
		return TrendNeutral
	}
}

// VolatilityIndex is the mean absolute 24h change, clamped to [0, 100].
func VolatilityIndex(tokens []model.Token) float64 {
	if len(tokens) == 0 {
		return 0
	}
	var sum float64
	for _, t := range tokens {
		sum += math.Abs(t.ChangePercent())
	}
	return math.Min(100, sum/float64(len(tokens)))
}
