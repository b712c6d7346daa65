// Package tier classifies tokens into market-cap buckets and aggregates
// per-bucket performance.
package tier

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tierwatch/internal/model"
)

// Inclusive lower bounds in USD, largest first.
var thresholds = []struct {
	tier  model.Tier
	lower decimal.Decimal
}{
	{model.TierMega, decimal.NewFromInt(100_000_000_000)},
	{model.TierLarge, decimal.NewFromInt(10_000_000_000)},
	{model.TierLargeMedium, decimal.NewFromInt(5_000_000_000)},
	{model.TierSmallMedium, decimal.NewFromInt(1_000_000_000)},
	{model.TierSmall, decimal.NewFromInt(100_000_000)},
}

// Classify maps a market capitalization to its tier.
//
// A negative market cap is an ingestion bug and panics; callers validate
// tokens with model.Token.Validate before classifying.
func Classify(marketCap decimal.Decimal) model.Tier {
	if marketCap.IsNegative() {
		panic(fmt.Sprintf("tier: negative market cap %s", marketCap))
	}
	for _, th := range thresholds {
		if marketCap.GreaterThanOrEqual(th.lower) {
			return th.tier
		}
	}
	return model.TierMicro
}
