package opportunity

import (
	"math"

	"github.com/shopspring/decimal"

	"tierwatch/internal/model"
	"tierwatch/internal/tier"
)

// Structural volatility prior per tier. Smaller caps are assumed to move more;
// this is a fixed lookup, not a realized-volatility measurement.
var volatilityPriors = map[model.Tier]float64{
	model.TierMega:        15,
	model.TierLarge:       25,
	model.TierLargeMedium: 35,
	model.TierSmallMedium: 45,
	model.TierSmall:       55,
	model.TierMicro:       75,
}

const unknownTierVolatility = 50

// Volume-to-market-cap bands.
const (
	illiquidRatio     = 0.005
	manipulationRatio = 0.5
)

// RiskComponents are the four independent risk sub-scores of a token.
type RiskComponents struct {
	Volatility  float64 `json:"volatilityRisk"`
	Correlation float64 `json:"correlationRisk"`
	Volume      float64 `json:"volumeRisk"`
	Trend       float64 `json:"trendRisk"`
}

// Composite is the unweighted mean of the four sub-scores.
func (r RiskComponents) Composite() float64 {
	return (r.Volatility + r.Correlation + r.Volume + r.Trend) / 4
}

// ScoreRisk scores token against its tier members and the whole universe.
func ScoreRisk(token model.Token, tierMembers, allTokens []model.Token) RiskComponents {
	return scoreRisk(token, tier.Mean(tierMembers), tier.Mean(allTokens))
}

func scoreRisk(token model.Token, tierMean, marketMean float64) RiskComponents {
	change := token.ChangePercent()
	return RiskComponents{
		Volatility:  VolatilityRisk(token.Tier),
		Correlation: CorrelationRisk(change, tierMean),
		Volume:      VolumeRisk(token.Volume24h, token.MarketCap),
		Trend:       TrendRisk(change, marketMean),
	}
}

// VolatilityRisk returns the fixed prior for t.
func VolatilityRisk(t model.Tier) float64 {
	if v, ok := volatilityPriors[t]; ok {
		return v
	}
	return unknownTierVolatility
}

// CorrelationRisk grows with the distance from the tier mean, capped at 100.
func CorrelationRisk(change, tierMean float64) float64 {
	return math.Min(100, math.Abs(change-tierMean)*5)
}

// VolumeRisk scores the 24h volume relative to market cap. Zero market cap
// scores 100.
func VolumeRisk(volume, marketCap decimal.Decimal) float64 {
	if marketCap.IsZero() {
		return 100
	}
	ratio := volume.Div(marketCap).InexactFloat64()
	switch {
	case ratio < illiquidRatio:
		return 80
	case ratio > manipulationRatio:
		return 70
	default:
		return math.Max(10, 50-ratio*200)
	}
}

// TrendRisk grows with the distance from the universe-wide mean change.
func TrendRisk(change, marketMean float64) float64 {
	return math.Min(100, math.Abs(change-marketMean)*3)
}
