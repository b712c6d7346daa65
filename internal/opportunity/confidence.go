package opportunity

import (
	"math"

	"tierwatch/internal/model"
)

const (
	maxSignificance = 5
	maxConfidence   = 95
)

// Score is the output of the confidence model.
type Score struct {
	Confidence              float64
	StatisticalSignificance float64
}

// ScoreConfidence turns a deviation and a composite risk into a bounded
// confidence.
//
// The significance term is a crude sigma-like proxy, (deviation/10)*sqrt(n)
// capped at 5, not a z-score: bigger tiers and bigger deviations both raise it.
// Raw confidence is capped at 95 and then reduced by half the risk, floored at 0.
func ScoreConfidence(deviation, riskPercentage float64, tierMemberCount int) Score {
	significance := math.Min(maxSignificance, (deviation/10)*math.Sqrt(float64(tierMemberCount)))
	confidence := math.Min(maxConfidence, deviation*10+significance*20)
	confidence = math.Max(0, confidence-riskPercentage*0.5)
	return Score{Confidence: confidence, StatisticalSignificance: significance}
}

// RiskLevelFor bands a composite risk percentage.
func RiskLevelFor(riskPercentage float64) model.RiskLevel {
	switch {
	case riskPercentage <= 30:
		return model.RiskLow
	case riskPercentage <= 60:
		return model.RiskMedium
	default:
		return model.RiskHigh
	}
}

// LeverageFor recommends a leverage band; lower risk allows more leverage.
func LeverageFor(riskPercentage float64) string {
	switch {
	case riskPercentage <= 20:
		return "8-10x"
	case riskPercentage <= 35:
		return "5-7x"
	case riskPercentage <= 50:
		return "3-5x"
	default:
		return "2-3x"
	}
}

// ExpectedReturn assumes 60% of the deviation is recovered, scaled down by risk.
func ExpectedReturn(deviation, riskPercentage float64) float64 {
	return deviation * 0.6 * (100 - riskPercentage) / 100
}

// HistoricalSuccessRate is an inverse-risk estimate floored at 30.
func HistoricalSuccessRate(riskPercentage float64) float64 {
	return math.Max(30, 95-riskPercentage*0.8)
}

// StopLossPercent is the suggested stop distance, never tighter than 3%.
func StopLossPercent(riskPercentage float64) float64 {
	return math.Max(3, riskPercentage*0.15)
}
