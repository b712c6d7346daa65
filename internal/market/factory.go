package market

import (
	"fmt"
	"log/slog"

	"tierwatch/internal/config"
)

// NewProvider creates a market-data provider based on the configured name.
func NewProvider(logger *slog.Logger, cfg *config.MarketConfig) (Provider, error) {
	switch cfg.Provider {
	case "coingecko", "":
		return NewCoinGeckoProvider(logger, cfg), nil
	default:
		return nil, fmt.Errorf("unknown market provider: %s", cfg.Provider)
	}
}
