// Package market ingests token snapshots from a market-data provider and keeps
// the repository, price history and tier correlations current.
package market

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrRateLimited is returned when the provider rejects a request with 429.
var ErrRateLimited = errors.New("market data provider rate limit exceeded")

// MarketData is one coin row as reported by a provider.
type MarketData struct {
	ID                       string              `json:"id"`
	Symbol                   string              `json:"symbol"`
	Name                     string              `json:"name"`
	Image                    string              `json:"image"`
	CurrentPrice             decimal.Decimal     `json:"current_price"`
	MarketCap                decimal.Decimal     `json:"market_cap"`
	MarketCapRank            *int                `json:"market_cap_rank"`
	TotalVolume              decimal.Decimal     `json:"total_volume"`
	PriceChange24h           decimal.NullDecimal `json:"price_change_24h"`
	PriceChangePercentage24h decimal.NullDecimal `json:"price_change_percentage_24h"`
}

// Provider defines the standard interface for all market-data providers.
type Provider interface {
	Name() string
	// FetchMarkets returns coins ordered by market cap, largest first.
	FetchMarkets(ctx context.Context) ([]MarketData, error)
}
