// Package opportunity derives ranked, risk-scored trading signals from
// deviations between a token's 24h performance and its tier's mean.
package opportunity

import (
	"math"
	"sort"
	"time"

	"tierwatch/internal/model"
	"tierwatch/internal/tier"
)

const (
	// MinDeviation is the exclusive lower bound, in percentage points, for a
	// token to be scored at all.
	MinDeviation = 2.0
	// MinConfidence is the exclusive lower bound for a signal to be emitted.
	MinConfidence = 60.0
	// SignalLifetime is how long an emitted signal stays valid.
	SignalLifetime = 24 * time.Hour
)

// Detector compares every token with its tier mean and emits signals for the
// deviations that survive both gates. It holds no state between calls and is
// safe for concurrent use.
type Detector struct {
	now func() time.Time
}

// Option configures a Detector.
type Option func(*Detector)

// WithClock overrides the clock used for creation and expiry timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// NewDetector creates a Detector.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect runs the detection pipeline over the token universe and returns the
// emitted opportunities sorted by confidence, highest first. Ties keep tier
// order then input order. An empty universe yields an empty list.
func (d *Detector) Detect(tokens []model.Token) []model.TradingOpportunity {
	now := d.now()
	groups := tier.Aggregate(tokens)
	marketMean := tier.Mean(tokens)

	out := make([]model.TradingOpportunity, 0)
	for _, t := range model.Tiers {
		stats := groups[t]
		for _, token := range stats.Members {
			deviation := math.Abs(token.ChangePercent() - stats.MeanChange24h)
			if !clearsDeviationGate(deviation) {
				continue
			}

			risk := scoreRisk(token, stats.MeanChange24h, marketMean)
			score := ScoreConfidence(deviation, risk.Composite(), len(stats.Members))
			if !clearsConfidenceGate(score.Confidence) {
				continue
			}

			out = append(out, newOpportunity(token, stats.MeanChange24h, deviation, risk, score, now))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

func clearsDeviationGate(deviation float64) bool {
	return deviation > MinDeviation
}

func clearsConfidenceGate(confidence float64) bool {
	return confidence > MinConfidence
}

// Direction applies the mean-reversion framing: a token lagging its tier is a
// long, anything else a short.
func Direction(change, tierMean float64) model.OpportunityType {
	if change < tierMean {
		return model.OpportunityLong
	}
	return model.OpportunityShort
}

func newOpportunity(token model.Token, tierMean, deviation float64, risk RiskComponents, score Score, now time.Time) model.TradingOpportunity {
	riskPct := risk.Composite()
	kind := Direction(token.ChangePercent(), tierMean)
	expected := ExpectedReturn(deviation, riskPct)
	id := token.ID

	return model.TradingOpportunity{
		CryptocurrencyID:       &id,
		Symbol:                 token.Symbol,
		OpportunityType:        kind,
		RiskLevel:              RiskLevelFor(riskPct),
		RiskPercentage:         riskPct,
		LeverageRecommendation: LeverageFor(riskPct),
		ExpectedReturn:         expected,
		Confidence:             score.Confidence,
		Analysis: model.Analysis{
			VolatilityRisk:          risk.Volatility,
			CorrelationRisk:         risk.Correlation,
			VolumeRisk:              risk.Volume,
			TrendRisk:               risk.Trend,
			StatisticalSignificance: score.StatisticalSignificance,
			HistoricalSuccessRate:   HistoricalSuccessRate(riskPct),
			Explanation:             explanation(token, kind, deviation, riskPct),
			Strategy:                strategy(token, kind, riskPct),
			EntryPoint:              entryPoint(token, kind),
			ExitPoint:               exitPoint(expected),
			StopLoss:                stopLoss(riskPct),
		},
		IsActive:  true,
		CreatedAt: now,
		ExpiresAt: now.Add(SignalLifetime),
	}
}
