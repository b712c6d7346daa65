package opportunity

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tierwatch/internal/model"
)

var (
	longEntryFactor  = decimal.RequireFromString("0.98")
	shortEntryFactor = decimal.RequireFromString("1.02")
)

func explanation(token model.Token, kind model.OpportunityType, deviation, riskPct float64) string {
	move := "outperforming"
	if kind == model.OpportunityLong {
		move = "lagging"
	}
	size := "moderate"
	if deviation > 5 {
		size = "significant"
	}
	return fmt.Sprintf("%s is %s the %s tier average by %.1f%%, a %s break from the tier's usual co-movement. "+
		"Composite risk across volatility, volume and trend is %.1f%%.",
		token.Symbol, move, token.Tier, deviation, size, riskPct)
}

func strategy(token model.Token, kind model.OpportunityType, riskPct float64) string {
	side := "Short"
	if kind == model.OpportunityLong {
		side = "Long"
	}
	return fmt.Sprintf("%s position at %s leverage, expecting reversion toward the %s tier mean. "+
		"Enter while the deviation persists and keep risk tight.",
		side, LeverageFor(riskPct), token.Tier)
}

func entryPoint(token model.Token, kind model.OpportunityType) string {
	if kind == model.OpportunityLong {
		return fmt.Sprintf("$%s (on dip)", token.CurrentPrice.Mul(longEntryFactor).StringFixed(6))
	}
	return fmt.Sprintf("$%s (on bounce)", token.CurrentPrice.Mul(shortEntryFactor).StringFixed(6))
}

func exitPoint(expectedReturn float64) string {
	outcome := "loss"
	if expectedReturn > 0 {
		outcome = "profit"
	}
	return fmt.Sprintf("%.1f%% %s target", expectedReturn, outcome)
}

func stopLoss(riskPct float64) string {
	return fmt.Sprintf("%.1f%% stop loss", StopLossPercent(riskPct))
}
