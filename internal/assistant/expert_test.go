package assistant

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tierwatch/internal/config"
	"tierwatch/internal/model"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func sampleContext() Context {
	return Context{
		Tokens: []model.Token{
			{Symbol: "BTC", CurrentPrice: decimal.NewFromInt(65000), Volume24h: decimal.NewFromInt(30_000_000_000), PriceChangePercentage24h: decimal.NewFromFloat(5.5), Tier: model.TierMega},
			{Symbol: "ETH", CurrentPrice: decimal.NewFromInt(3200), PriceChangePercentage24h: decimal.NewFromFloat(-1.2), Tier: model.TierMega},
			{Symbol: "SOL", CurrentPrice: decimal.NewFromInt(150), PriceChangePercentage24h: decimal.NewFromFloat(8.1), Tier: model.TierLarge},
		},
		Opportunities: []model.TradingOpportunity{
			{Symbol: "SOL", OpportunityType: model.OpportunityShort, Confidence: 71.5, RiskLevel: model.RiskMedium},
			{Symbol: "ETH", OpportunityType: model.OpportunityLong, Confidence: 88, RiskLevel: model.RiskLow},
		},
		MarketStats: model.MarketStats{
			TotalMarketCap:  2.4e12,
			BTCDominance:    54.2,
			MarketTrend:     "bullish",
			VolatilityIndex: 45,
		},
	}
}

func TestExpert_AnalyzeWithModel(t *testing.T) {
	gen := new(MockGenerator)
	text := "Consider a long on SOL with a breakout above support. Use a stop loss and watch volume. " +
		"Position sizing matters: risk per trade should stay small. Target $170 for a 12% move. " +
		strings.Repeat("More detail. ", 10)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "User Question: should I buy SOL?") &&
			strings.Contains(p, "Total tracked cryptocurrencies: 3") &&
			strings.Contains(p, "Total market cap: $2.40T") &&
			strings.Contains(p, "ETH: LONG (88.0% confidence, low risk)")
	})).Return(text, nil).Once()

	reply := NewExpert(testLogger(), gen).Analyze(context.Background(), "should I buy SOL?", sampleContext())

	gen.AssertExpectations(t)
	assert.Equal(t, text, reply.Response)
	assert.Equal(t, "model", reply.Source)
	assert.Equal(t, SentimentBullish, reply.Sentiment)
	assert.Equal(t, model.RiskMedium, reply.RiskLevel)
	assert.Equal(t, 85.0, reply.Confidence) // 75 + $ + length
	assert.Equal(t, []string{
		"Use proper stop loss orders",
		"Calculate appropriate position size",
		"Monitor trading volume",
	}, reply.Recommendations)
}

func TestExpert_FallsBackOnGeneratorError(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("quota exceeded")).Once()

	reply := NewExpert(testLogger(), gen).Analyze(context.Background(), "hello there", sampleContext())
	assert.Equal(t, "fallback", reply.Source)
	assert.Equal(t, 85.0, reply.Confidence)
	assert.Contains(t, reply.Response, "Chips")
	assert.Equal(t, model.RiskLow, reply.RiskLevel)
	assert.Len(t, reply.Recommendations, 4)
}

func TestExpert_FallsBackOnEmptyGeneration(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return("   ", nil).Once()

	reply := NewExpert(testLogger(), gen).Analyze(context.Background(), "what now", sampleContext())
	assert.Equal(t, "fallback", reply.Source)
}

func TestFallback(t *testing.T) {
	mc := sampleContext()

	t.Run("bitcoin", func(t *testing.T) {
		reply := fallback("What about Bitcoin today?", mc)
		assert.Contains(t, reply.Response, "$65,000")
		assert.Contains(t, reply.Response, "High institutional activity")
		assert.Equal(t, SentimentBullish, reply.Sentiment)
		assert.Equal(t, model.RiskHigh, reply.RiskLevel)
	})

	t.Run("bitcoin without BTC in universe", func(t *testing.T) {
		mc := sampleContext()
		mc.Tokens = mc.Tokens[1:]
		reply := fallback("btc?", mc)
		assert.Contains(t, reply.Response, "Market Intelligence Report")
	})

	t.Run("leverage", func(t *testing.T) {
		reply := fallback("how much leverage should I use", mc)
		assert.Contains(t, reply.Response, "3-5x")
		assert.Equal(t, model.RiskHigh, reply.RiskLevel)
		assert.Equal(t, SentimentBullish, reply.Sentiment)
	})

	t.Run("general", func(t *testing.T) {
		reply := fallback("what is going on", mc)
		assert.Contains(t, reply.Response, "Market Intelligence Report")
		assert.Contains(t, reply.Response, "DEFENSIVE POSITIONING")
		assert.Equal(t, SentimentNeutral, reply.Sentiment)
		assert.Equal(t, model.RiskMedium, reply.RiskLevel)
	})

	t.Run("greeting needs a whole word", func(t *testing.T) {
		assert.True(t, isGreeting("Hey!"))
		assert.False(t, isGreeting("which coin"))
	})
}

func TestExtractors(t *testing.T) {
	assert.Equal(t, SentimentBearish, extractSentiment("expect a correction and a breakdown", "sell?"))
	assert.Equal(t, SentimentNeutral, extractSentiment("nothing to see", "ok"))

	assert.Equal(t, model.RiskHigh, extractRiskLevel("fine", "use leverage?"))
	assert.Equal(t, model.RiskLow, extractRiskLevel("a conservative approach", "ok"))

	assert.Equal(t, defaultRecommendations, extractRecommendations("nothing relevant"))

	big := Context{Tokens: make([]model.Token, 101), Opportunities: make([]model.TradingOpportunity, 6)}
	assert.Equal(t, 95.0, replyConfidence(strings.Repeat("$", 201), big))
	assert.Equal(t, 75.0, replyConfidence("plain", Context{}))
}

func TestTopPerformers(t *testing.T) {
	got := topPerformers(sampleContext().Tokens, 2)
	assert.Equal(t, "SOL: $150 (8.10%)\nBTC: $65,000 (5.50%)", got)
}

func TestNewGeminiGenerator_RequiresKey(t *testing.T) {
	_, err := NewGeminiGenerator(context.Background(), &config.AssistantConfig{})
	require.ErrorIs(t, err, ErrNoGenerator)
}
