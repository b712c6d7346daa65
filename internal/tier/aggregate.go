package tier

import (
	"github.com/shopspring/decimal"

	"tierwatch/internal/model"
)

// Stats holds the members of one tier and their mean 24h change.
type Stats struct {
	Members       []model.Token
	MeanChange24h float64
}

// Aggregate partitions tokens by the tier already tagged on each snapshot.
// Tiers are not re-derived from market cap. Every known tier is present in
// the result, empty ones with a zero mean.
func Aggregate(tokens []model.Token) map[model.Tier]Stats {
	groups := make(map[model.Tier][]model.Token, len(model.Tiers))
	for _, t := range tokens {
		groups[t.Tier] = append(groups[t.Tier], t)
	}

	out := make(map[model.Tier]Stats, len(groups))
	for _, t := range model.Tiers {
		out[t] = Stats{Members: groups[t], MeanChange24h: Mean(groups[t])}
	}
	return out
}

// Mean is the unweighted mean 24h percentage change, 0 for no tokens.
func Mean(tokens []model.Token) float64 {
	if len(tokens) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, t := range tokens {
		sum = sum.Add(t.PriceChangePercentage24h)
	}
	return sum.Div(decimal.NewFromInt(int64(len(tokens)))).InexactFloat64()
}
