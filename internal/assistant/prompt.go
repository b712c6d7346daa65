package assistant

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"tierwatch/internal/model"
)

const persona = `You are Chips, a cryptocurrency trading expert and assistant with deep knowledge of
leveraged trading, technical analysis and market psychology. Be professional but friendly, give
specific and actionable advice, and explain complex ideas in simple terms.`

const guidelines = `GUIDELINES:
- If greeted, introduce yourself as Chips, the user's crypto leveraging assistant
- For specific strategies, give step-by-step advice
- Always include risk management recommendations
- Reference the market data and opportunities above when relevant
- Suggest entry and exit points with reasoning
- Consider leverage, position sizing, correlation and volatility`

func buildPrompt(query string, mc Context) string {
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\nCURRENT MARKET DATA:\n")
	fmt.Fprintf(&b, "- Total tracked cryptocurrencies: %d\n", len(mc.Tokens))
	fmt.Fprintf(&b, "- Active trading opportunities: %d\n", len(mc.Opportunities))
	fmt.Fprintf(&b, "- Market trend: %s\n", mc.MarketStats.MarketTrend)
	fmt.Fprintf(&b, "- BTC dominance: %.2f%%\n", mc.MarketStats.BTCDominance)
	fmt.Fprintf(&b, "- Total market cap: %s\n", trillions(mc.MarketStats.TotalMarketCap))
	b.WriteString("\nTOP PERFORMERS (24h):\n")
	b.WriteString(topPerformers(mc.Tokens, 5))
	b.WriteString("\n\nCURRENT OPPORTUNITIES:\n")
	b.WriteString(topOpportunities(mc.Opportunities, 5))
	b.WriteString("\n\n")
	b.WriteString(guidelines)
	b.WriteString("\n\nUser Question: ")
	b.WriteString(query)
	return b.String()
}

func trillions(v float64) string {
	return fmt.Sprintf("$%.2fT", v/1e12)
}

func usd(v float64) string {
	return "$" + humanize.CommafWithDigits(v, 2)
}

func topPerformers(tokens []model.Token, n int) string {
	sorted := make([]model.Token, len(tokens))
	copy(sorted, tokens)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ChangePercent() > sorted[j].ChangePercent()
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}

	lines := make([]string, 0, len(sorted))
	for _, t := range sorted {
		lines = append(lines, fmt.Sprintf("%s: %s (%.2f%%)", t.Symbol, usd(t.CurrentPrice.InexactFloat64()), t.ChangePercent()))
	}
	return strings.Join(lines, "\n")
}

func topOpportunities(opps []model.TradingOpportunity, n int) string {
	sorted := make([]model.TradingOpportunity, len(opps))
	copy(sorted, opps)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Confidence > sorted[j].Confidence })
	if len(sorted) > n {
		sorted = sorted[:n]
	}

	lines := make([]string, 0, len(sorted))
	for _, o := range sorted {
		symbol := o.Symbol
		if symbol == "" {
			symbol = "Unknown"
		}
		lines = append(lines, fmt.Sprintf("%s: %s (%.1f%% confidence, %s risk)",
			symbol, strings.ToUpper(string(o.OpportunityType)), o.Confidence, o.RiskLevel))
	}
	return strings.Join(lines, "\n")
}
