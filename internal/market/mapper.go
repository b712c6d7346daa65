package market

import (
	"fmt"
	"strings"
	"time"

	"tierwatch/internal/model"
	"tierwatch/internal/tier"
)

// ToToken maps a provider row into a token snapshot tagged with its tier.
// Rows that would break a token invariant are rejected with
// model.ErrInvalidToken before classification.
func ToToken(m MarketData, now time.Time) (model.Token, error) {
	if m.MarketCap.IsNegative() {
		return model.Token{}, fmt.Errorf("%w: %s has negative market cap %s", model.ErrInvalidToken, m.Symbol, m.MarketCap)
	}

	token := model.Token{
		Symbol:                   strings.ToUpper(strings.TrimSpace(m.Symbol)),
		Name:                     m.Name,
		CurrentPrice:             m.CurrentPrice,
		MarketCap:                m.MarketCap,
		MarketCapRank:            m.MarketCapRank,
		Volume24h:                m.TotalVolume,
		PriceChange24h:           m.PriceChange24h.Decimal,
		PriceChangePercentage24h: m.PriceChangePercentage24h.Decimal,
		Tier:                     tier.Classify(m.MarketCap),
		LastUpdated:              now,
		Metadata: map[string]any{
			"coinGeckoId":   m.ID,
			"lastApiUpdate": now.UTC().Format(time.RFC3339),
			"logoUrl":       m.Image,
		},
	}
	if err := token.Validate(); err != nil {
		return model.Token{}, err
	}
	return token, nil
}

// ToTokens maps rows, skipping invalid ones and symbols already seen. The
// skipped rows are returned as errors.
func ToTokens(rows []MarketData, now time.Time) ([]model.Token, []error) {
	tokens := make([]model.Token, 0, len(rows))
	var errs []error
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		token, err := ToToken(row, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := seen[token.Symbol]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate symbol %s", model.ErrInvalidToken, token.Symbol))
			continue
		}
		seen[token.Symbol] = struct{}{}
		tokens = append(tokens, token)
	}
	return tokens, errs
}
