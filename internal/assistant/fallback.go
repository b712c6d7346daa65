package assistant

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"tierwatch/internal/model"
)

const fallbackConfidence = 85

var fallbackRecommendations = []string{
	"Always use stop losses on leveraged positions",
	"Size positions based on volatility",
	"Monitor market correlation changes",
	"Keep detailed trading journal",
}

var greetings = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "greetings": {}, "greet": {}, "start": {},
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func isGreeting(query string) bool {
	for _, w := range words(query) {
		if _, ok := greetings[w]; ok {
			return true
		}
	}
	return false
}

func mentionsBitcoin(query string) bool {
	for _, w := range words(query) {
		if w == "btc" || w == "bitcoin" {
			return true
		}
	}
	return false
}

// fallback builds a rule-based reply: greeting, BTC analysis, leverage
// guidance or a general market report, checked in that order.
func fallback(query string, mc Context) Reply {
	reply := Reply{
		Sentiment:       SentimentNeutral,
		RiskLevel:       model.RiskMedium,
		Confidence:      fallbackConfidence,
		Recommendations: append([]string(nil), fallbackRecommendations...),
		Source:          "fallback",
	}
	lq := strings.ToLower(query)

	switch {
	case isGreeting(query):
		reply.Response = greetingReply(mc)
		reply.RiskLevel = model.RiskLow
	case mentionsBitcoin(query):
		btc, ok := findSymbol(mc.Tokens, "BTC")
		if !ok {
			reply.Response = generalReply(mc)
			break
		}
		change := btc.ChangePercent()
		reply.Response = bitcoinReply(btc, mc)
		reply.Sentiment = SentimentBearish
		if change > 0 {
			reply.Sentiment = SentimentBullish
		}
		if math.Abs(change) > 4 {
			reply.RiskLevel = model.RiskHigh
		}
	case containsAny(lq, "leverage", "margin", "trading strategy"):
		reply.Response = leverageReply(mc)
		reply.RiskLevel = model.RiskHigh
		if mc.MarketStats.MarketTrend == string(SentimentBullish) {
			reply.Sentiment = SentimentBullish
		}
	default:
		reply.Response = generalReply(mc)
	}
	return reply
}

func findSymbol(tokens []model.Token, symbol string) (model.Token, bool) {
	for _, t := range tokens {
		if t.Symbol == symbol {
			return t, true
		}
	}
	return model.Token{}, false
}

func greetingReply(mc Context) string {
	var b strings.Builder
	b.WriteString("Hello! I'm Chips, your personal crypto leveraging assistant.\n\n")
	b.WriteString("I can help with technical analysis and strategy, risk management and position sizing, ")
	fmt.Fprintf(&b, "leveraged setups, and correlation analysis across %d tracked tokens.\n\n", len(mc.Tokens))
	b.WriteString("**Current Market Snapshot:**\n")
	fmt.Fprintf(&b, "- Market Trend: %s\n", strings.ToUpper(mc.MarketStats.MarketTrend))
	fmt.Fprintf(&b, "- BTC Dominance: %.1f%%\n", mc.MarketStats.BTCDominance)
	fmt.Fprintf(&b, "- Active Opportunities: %d high-confidence setups\n", len(mc.Opportunities))
	fmt.Fprintf(&b, "- Total Market Cap: %s\n\n", trillions(mc.MarketStats.TotalMarketCap))
	b.WriteString("Ask me about a specific coin, a strategy or current market conditions.")
	return b.String()
}

func bitcoinReply(btc model.Token, mc Context) string {
	change := btc.ChangePercent()
	volume := btc.Volume24h.InexactFloat64()

	momentum := "Moderate"
	if math.Abs(change) > 3 {
		momentum = "Strong"
	}
	pressure := "bearish"
	if change > 0 {
		pressure = "bullish"
	}
	volatility := "Normal"
	if math.Abs(change) > 5 {
		volatility = "Elevated"
	}
	flow := "Standard retail flow"
	if volume > 2e10 {
		flow = "High institutional activity"
	}

	var plan string
	switch {
	case change > 2:
		plan = "- Consider scaling out profits into strength\n- Watch psychological resistance levels\n- Trail stops to protect gains"
	case change < -2:
		plan = "- Accumulate in steps on weakness\n- Look for support confluence\n- Prefer spot over leverage"
	default:
		plan = "- Range-bound conditions\n- Wait for a clear directional breakout\n- Confirm moves with volume"
	}

	risk := "Moderate, standard market conditions"
	if math.Abs(change) > 4 {
		risk = "Elevated due to high volatility"
	}

	var b strings.Builder
	b.WriteString("**Bitcoin (BTC) Analysis:**\n\n")
	fmt.Fprintf(&b, "- Price: %s\n", usd(btc.CurrentPrice.InexactFloat64()))
	fmt.Fprintf(&b, "- 24h Change: %.2f%%\n", change)
	fmt.Fprintf(&b, "- Market Dominance: %.2f%%\n", mc.MarketStats.BTCDominance)
	fmt.Fprintf(&b, "- Volume: %s\n\n", usd(volume))
	fmt.Fprintf(&b, "**Momentum:** %s %s pressure\n", momentum, pressure)
	fmt.Fprintf(&b, "**Volatility:** %s intraday movement\n", volatility)
	fmt.Fprintf(&b, "**Volume Profile:** %s\n\n", flow)
	fmt.Fprintf(&b, "**Trading Strategy:**\n%s\n\n", plan)
	fmt.Fprintf(&b, "**Risk Assessment:** %s", risk)
	return b.String()
}

func leverageReply(mc Context) string {
	vi := mc.MarketStats.VolatilityIndex
	label, maxLeverage := "(LOW RISK)", "5-10x"
	switch {
	case vi > 60:
		label, maxLeverage = "(HIGH RISK)", "2-3x"
	case vi > 40:
		label, maxLeverage = "(MODERATE)", "3-5x"
	}

	var b strings.Builder
	b.WriteString("**Leveraged Trading Strategy:**\n\n")
	fmt.Fprintf(&b, "- Volatility Index: %.1f/100 %s\n", vi, label)
	fmt.Fprintf(&b, "- Recommended Max Leverage: %s\n", maxLeverage)
	fmt.Fprintf(&b, "- Market Regime: %s\n\n", strings.ToUpper(mc.MarketStats.MarketTrend))
	b.WriteString("**Position Management:**\n")
	b.WriteString("- Risk 1-2% of the portfolio per trade and never more than 5%\n")
	b.WriteString("- Aim for at least 1:2 risk/reward, 1:3 on high-confidence setups\n")
	b.WriteString("- Set the stop loss before entering\n")
	b.WriteString("- Scale out in three tranches\n\n")
	b.WriteString("**Current High-Confidence Opportunities:**\n")
	b.WriteString(topOpportunities(mc.Opportunities, 3))
	b.WriteString("\n\n**Leverage Rules:**\n")
	b.WriteString("- Start at 2x before scaling up\n")
	b.WriteString("- Check funding rates regularly\n")
	b.WriteString("- Use isolated margin to cap exposure")
	return b.String()
}

func generalReply(mc Context) string {
	st := mc.MarketStats
	n := len(mc.Opportunities)

	dominance := "(Altcoin season potential)"
	if st.BTCDominance > 50 {
		dominance = "(Bitcoin strength)"
	}
	environment := "Stable conditions, good for position building"
	if st.VolatilityIndex > 50 {
		environment = "High volatility, exercise caution"
	}
	density := "Limited high-confidence signals"
	switch {
	case n > 10:
		density = "Rich target environment"
	case n > 5:
		density = "Moderate setup availability"
	}
	assessment := "Exercise heightened caution"
	if st.MarketTrend == string(SentimentBullish) && st.VolatilityIndex < 40 {
		assessment = "Favorable risk/reward environment"
	}
	stance := "**DEFENSIVE POSITIONING**: wait for better market structure before deploying significant capital."
	switch {
	case n > 8:
		stance = "**ACTIVE TRADING PHASE**: several high-probability setups available; focus on the best risk/reward."
	case n > 3:
		stance = "**SELECTIVE TRADING**: take only the highest-conviction plays."
	}

	var b strings.Builder
	b.WriteString("**Chips Market Intelligence Report:**\n\n")
	fmt.Fprintf(&b, "- Assets Tracked: %d cryptocurrencies\n", len(mc.Tokens))
	fmt.Fprintf(&b, "- Market Trend: %s\n", strings.ToUpper(st.MarketTrend))
	fmt.Fprintf(&b, "- Active Opportunities: %d algorithmic signals\n", n)
	fmt.Fprintf(&b, "- BTC Dominance: %.2f%% %s\n\n", st.BTCDominance, dominance)
	b.WriteString("**Top Movers (24h):**\n")
	b.WriteString(topPerformers(mc.Tokens, 5))
	b.WriteString("\n\n**Insights:**\n")
	fmt.Fprintf(&b, "- Volatility: %s\n", environment)
	fmt.Fprintf(&b, "- Opportunity Density: %s\n", density)
	fmt.Fprintf(&b, "- Risk Assessment: %s\n\n", assessment)
	fmt.Fprintf(&b, "%s\n\n", stance)
	b.WriteString("Ask me about specific coins, strategies or risk management.")
	return b.String()
}
