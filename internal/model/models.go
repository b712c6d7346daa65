package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidToken marks a token snapshot that breaks a data-integrity rule.
// It indicates an upstream ingestion bug and is never recovered from locally.
var ErrInvalidToken = errors.New("invalid token snapshot")

// Tier is a market-capitalization bucket.
type Tier string

const (
	TierMega        Tier = "mega"
	TierLarge       Tier = "large"
	TierLargeMedium Tier = "largeMedium"
	TierSmallMedium Tier = "smallMedium"
	TierSmall       Tier = "small"
	TierMicro       Tier = "micro"
)

// Tiers lists every tier from the largest bucket to the smallest.
// Analysis iterates tiers in this order so results are reproducible.
var Tiers = []Tier{TierMega, TierLarge, TierLargeMedium, TierSmallMedium, TierSmall, TierMicro}

// Valid reports whether t is one of the six known tiers.
func (t Tier) Valid() bool {
	for _, known := range Tiers {
		if t == known {
			return true
		}
	}
	return false
}

// Token is one cryptocurrency's market state at a point in time.
type Token struct {
	ID                       int64           `json:"id" db:"id"`
	Symbol                   string          `json:"symbol" db:"symbol"`
	Name                     string          `json:"name" db:"name"`
	CurrentPrice             decimal.Decimal `json:"currentPrice" db:"current_price"`
	MarketCap                decimal.Decimal `json:"marketCap" db:"market_cap"`
	MarketCapRank            *int            `json:"marketCapRank,omitempty" db:"market_cap_rank"`
	Volume24h                decimal.Decimal `json:"volume24h" db:"volume_24h"`
	PriceChange24h           decimal.Decimal `json:"priceChange24h" db:"price_change_24h"`
	PriceChangePercentage24h decimal.Decimal `json:"priceChangePercentage24h" db:"price_change_percentage_24h"`
	Tier                     Tier            `json:"tier" db:"tier"`
	LastUpdated              time.Time       `json:"lastUpdated" db:"last_updated"`
	Metadata                 map[string]any  `json:"metadata,omitempty" db:"metadata"`
}

// Validate checks the fields every analysis path relies on.
func (t Token) Validate() error {
	if t.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidToken)
	}
	if t.MarketCap.IsNegative() {
		return fmt.Errorf("%w: %s has negative market cap %s", ErrInvalidToken, t.Symbol, t.MarketCap)
	}
	if t.Volume24h.IsNegative() {
		return fmt.Errorf("%w: %s has negative volume %s", ErrInvalidToken, t.Symbol, t.Volume24h)
	}
	if !t.Tier.Valid() {
		return fmt.Errorf("%w: %s has unknown tier %q", ErrInvalidToken, t.Symbol, t.Tier)
	}
	return nil
}

// ValidateTokens validates a whole universe and rejects duplicate symbols.
func ValidateTokens(tokens []Token) error {
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if err := t.Validate(); err != nil {
			return err
		}
		if _, dup := seen[t.Symbol]; dup {
			return fmt.Errorf("%w: duplicate symbol %s", ErrInvalidToken, t.Symbol)
		}
		seen[t.Symbol] = struct{}{}
	}
	return nil
}

// ChangePercent returns the 24h percentage change as a float for scoring.
func (t Token) ChangePercent() float64 {
	return t.PriceChangePercentage24h.InexactFloat64()
}

// OpportunityType is the direction of a trading signal.
type OpportunityType string

const (
	OpportunityLong  OpportunityType = "long"
	OpportunityShort OpportunityType = "short"
	// OpportunityArbitrage is reserved; no detector produces it.
	OpportunityArbitrage OpportunityType = "arbitrage"
)

// RiskLevel is the banded form of a composite risk percentage.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Analysis is the explanation payload attached to an opportunity.
type Analysis struct {
	VolatilityRisk          float64 `json:"volatilityRisk"`
	CorrelationRisk         float64 `json:"correlationRisk"`
	VolumeRisk              float64 `json:"volumeRisk"`
	TrendRisk               float64 `json:"trendRisk"`
	StatisticalSignificance float64 `json:"statisticalSignificance"`
	HistoricalSuccessRate   float64 `json:"historicalSuccessRate"`
	Explanation             string  `json:"explanation"`
	Strategy                string  `json:"strategy"`
	EntryPoint              string  `json:"entryPoint"`
	ExitPoint               string  `json:"exitPoint"`
	StopLoss                string  `json:"stopLoss"`
}

// TradingOpportunity is a ranked, risk-scored signal derived from a token snapshot.
type TradingOpportunity struct {
	ID                     int64           `json:"id" db:"id"`
	CryptocurrencyID       *int64          `json:"cryptocurrencyId" db:"cryptocurrency_id"`
	Symbol                 string          `json:"symbol" db:"symbol"`
	OpportunityType        OpportunityType `json:"opportunityType" db:"opportunity_type"`
	RiskLevel              RiskLevel       `json:"riskLevel" db:"risk_level"`
	RiskPercentage         float64         `json:"riskPercentage" db:"risk_percentage"`
	LeverageRecommendation string          `json:"leverageRecommendation" db:"leverage_recommendation"`
	ExpectedReturn         float64         `json:"expectedReturn" db:"expected_return"`
	Confidence             float64         `json:"confidence" db:"confidence"`
	Analysis               Analysis        `json:"analysis" db:"analysis"`
	IsActive               bool            `json:"isActive" db:"is_active"`
	CreatedAt              time.Time       `json:"createdAt" db:"created_at"`
	ExpiresAt              time.Time       `json:"expiresAt" db:"expires_at"`
}

// Active reports whether the opportunity is still live at now.
func (o TradingOpportunity) Active(now time.Time) bool {
	return o.IsActive && (o.ExpiresAt.IsZero() || o.ExpiresAt.After(now))
}

// Correlation is a pairwise tier-to-tier correlation coefficient over a timeframe.
type Correlation struct {
	ID           int64     `json:"id" db:"id"`
	Tier1        Tier      `json:"tier1" db:"tier1"`
	Tier2        Tier      `json:"tier2" db:"tier2"`
	Coefficient  float64   `json:"correlation" db:"correlation"`
	Timeframe    string    `json:"timeframe" db:"timeframe"`
	CalculatedAt time.Time `json:"calculatedAt" db:"calculated_at"`
}

// PriceHistory is one recorded price point for a token.
type PriceHistory struct {
	ID               int64           `json:"id" db:"id"`
	CryptocurrencyID int64           `json:"cryptocurrencyId" db:"cryptocurrency_id"`
	Price            decimal.Decimal `json:"price" db:"price"`
	Volume           decimal.Decimal `json:"volume" db:"volume"`
	MarketCap        decimal.Decimal `json:"marketCap" db:"market_cap"`
	Timestamp        time.Time       `json:"timestamp" db:"timestamp"`
}

// MarketStats summarises the token universe for dashboards and the assistant.
type MarketStats struct {
	TotalMarketCap      float64      `json:"totalMarketCap"`
	BTCDominance        float64      `json:"btcDominance"`
	ActiveOpportunities int          `json:"activeOpportunities"`
	MarketTrend         string       `json:"marketTrend"`
	TierDistribution    map[Tier]int `json:"tierDistribution"`
	VolatilityIndex     float64      `json:"volatilityIndex"`
}
