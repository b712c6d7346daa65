package stats

import (
	"math"
	"sync"
	"time"

	"tierwatch/internal/model"
	"tierwatch/internal/tier"
)

// Pearson returns the correlation coefficient of two aligned series. Series of
// different lengths, fewer than two samples or zero variance yield 0.
func Pearson(x, y []float64) float64 {
	n := len(x)
	if n != len(y) || n < 2 {
		return 0
	}

	var sumX, sumY, sumXX, sumYY, sumXY float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
		sumXX += x[i] * x[i]
		sumYY += y[i] * y[i]
		sumXY += x[i] * y[i]
	}
	fn := float64(n)
	num := sumXY - sumX*sumY/fn
	den := math.Sqrt((sumXX - sumX*sumX/fn) * (sumYY - sumY*sumY/fn))
	if den == 0 || math.IsNaN(den) {
		return 0
	}
	return math.Max(-1, math.Min(1, num/den))
}

// Volatility is the population standard deviation of period returns, in percent.
func Volatility(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		returns = append(returns, (prices[i]-prices[i-1])/prices[i-1])
	}
	if len(returns) == 0 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	return math.Sqrt(variance) * 100
}

// TierSeries is a bounded window of per-tier mean 24h changes, one sample per
// refresh cycle for every tier.
type TierSeries struct {
	mu      sync.Mutex
	size    int
	samples map[model.Tier][]float64
}

// NewTierSeries keeps at most size samples per tier.
func NewTierSeries(size int) *TierSeries {
	if size < 2 {
		size = 2
	}
	return &TierSeries{size: size, samples: make(map[model.Tier][]float64, len(model.Tiers))}
}

// Add records one aligned sample for every tier.
func (s *TierSeries) Add(tokens []model.Token) {
	groups := tier.Aggregate(tokens)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range model.Tiers {
		series := append(s.samples[t], groups[t].MeanChange24h)
		if len(series) > s.size {
			series = series[len(series)-s.size:]
		}
		s.samples[t] = series
	}
}

// Len returns the number of aligned samples held.
func (s *TierSeries) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples[model.TierMega])
}

// Correlations computes the coefficient for every unordered tier pair once at
// least two samples are held.
func (s *TierSeries) Correlations(timeframe string, now time.Time) []model.Correlation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return TierCorrelations(s.samples, timeframe, now)
}

// TierCorrelations returns one record per unordered tier pair with at least two
// aligned samples, in tier order.
func TierCorrelations(series map[model.Tier][]float64, timeframe string, now time.Time) []model.Correlation {
	out := make([]model.Correlation, 0)
	for i, t1 := range model.Tiers {
		for _, t2 := range model.Tiers[i+1:] {
			x, y := series[t1], series[t2]
			if len(x) < 2 || len(x) != len(y) {
				continue
			}
			out = append(out, model.Correlation{
				Tier1:        t1,
				Tier2:        t2,
				Coefficient:  Pearson(x, y),
				Timeframe:    timeframe,
				CalculatedAt: now,
			})
		}
	}
	return out
}
