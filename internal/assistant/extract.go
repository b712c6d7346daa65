package assistant

import (
	"math"
	"strings"

	"tierwatch/internal/model"
)

var (
	bullishWords = []string{"buy", "long", "bullish", "uptrend", "support", "breakout", "rally", "pump"}
	bearishWords = []string{"sell", "short", "bearish", "downtrend", "resistance", "breakdown", "dump", "correction"}
)

var defaultRecommendations = []string{
	"Review current market conditions",
	"Consider risk/reward ratio",
	"Use appropriate position sizing",
}

// recommendationRules map phrases in a reply to a recommendation, in output order.
var recommendationRules = []struct {
	phrases        []string
	recommendation string
}{
	{[]string{"stop loss", "risk management"}, "Use proper stop loss orders"},
	{[]string{"position siz", "risk per trade"}, "Calculate appropriate position size"},
	{[]string{"leverage", "margin"}, "Consider leverage carefully"},
	{[]string{"diversif", "portfolio"}, "Maintain portfolio diversification"},
	{[]string{"volume", "liquidity"}, "Monitor trading volume"},
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// countHits counts the words that appear in either text.
func countHits(words []string, texts ...string) int {
	n := 0
	for _, w := range words {
		if containsAnyText(texts, w) {
			n++
		}
	}
	return n
}

func containsAnyText(texts []string, word string) bool {
	for _, t := range texts {
		if strings.Contains(t, word) {
			return true
		}
	}
	return false
}

func extractSentiment(text, query string) Sentiment {
	lt, lq := strings.ToLower(text), strings.ToLower(query)
	bullish := countHits(bullishWords, lt, lq)
	bearish := countHits(bearishWords, lt, lq)
	switch {
	case bullish > bearish:
		return SentimentBullish
	case bearish > bullish:
		return SentimentBearish
	default:
		return SentimentNeutral
	}
}

func extractRiskLevel(text, query string) model.RiskLevel {
	lt, lq := strings.ToLower(text), strings.ToLower(query)
	switch {
	case containsAny(lt, "high risk", "risky") || strings.Contains(lq, "leverage"):
		return model.RiskHigh
	case containsAny(lt, "low risk", "conservative", "safe"):
		return model.RiskLow
	default:
		return model.RiskMedium
	}
}

func replyConfidence(text string, mc Context) float64 {
	confidence := 75.0
	if len(mc.Tokens) > 100 {
		confidence += 10
	}
	if len(mc.Opportunities) > 5 {
		confidence += 5
	}
	if strings.ContainsAny(text, "$%") {
		confidence += 5
	}
	if len(text) > 200 {
		confidence += 5
	}
	return math.Min(95, confidence)
}

func extractRecommendations(text string) []string {
	lt := strings.ToLower(text)
	out := make([]string, 0, len(recommendationRules))
	for _, rule := range recommendationRules {
		if containsAny(lt, rule.phrases...) {
			out = append(out, rule.recommendation)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultRecommendations...)
	}
	return out
}
