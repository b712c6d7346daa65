// Package assistant answers free-form trading questions against the current
// market snapshot. Replies come from a language model when one is configured
// and from built-in rules otherwise.
package assistant

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"tierwatch/internal/metrics"
	"tierwatch/internal/model"
)

// ErrNoGenerator is returned when no language model is configured.
var ErrNoGenerator = errors.New("assistant: no text generator configured")

// Sentiment is the directional tone of a reply.
type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

// Context is the market snapshot a query is answered against.
type Context struct {
	Tokens        []model.Token
	Opportunities []model.TradingOpportunity
	MarketStats   model.MarketStats
}

// Reply is the assistant's answer plus a few derived signals.
type Reply struct {
	Response        string          `json:"response"`
	Sentiment       Sentiment       `json:"sentiment"`
	RiskLevel       model.RiskLevel `json:"riskLevel"`
	Confidence      float64         `json:"confidence"`
	Recommendations []string        `json:"recommendations"`
	Source          string          `json:"source"`
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Expert answers queries. A nil generator always uses the fallback.
type Expert struct {
	logger    *slog.Logger
	generator Generator
}

// NewExpert creates a new Expert.
func NewExpert(logger *slog.Logger, generator Generator) *Expert {
	return &Expert{logger: logger, generator: generator}
}

// Analyze answers query. It never fails: generator errors fall back to the
// rule-based reply.
func (e *Expert) Analyze(ctx context.Context, query string, mc Context) Reply {
	text, err := e.generate(ctx, buildPrompt(query, mc))
	if err != nil {
		if !errors.Is(err, ErrNoGenerator) {
			e.logger.Warn("Assistant: generator failed, using fallback", "error", err)
		}
		metrics.AssistantCalls.WithLabelValues("fallback").Inc()
		return fallback(query, mc)
	}

	metrics.AssistantCalls.WithLabelValues("model").Inc()
	return Reply{
		Response:        text,
		Sentiment:       extractSentiment(text, query),
		RiskLevel:       extractRiskLevel(text, query),
		Confidence:      replyConfidence(text, mc),
		Recommendations: extractRecommendations(text),
		Source:          "model",
	}
}

func (e *Expert) generate(ctx context.Context, prompt string) (string, error) {
	if e.generator == nil {
		return "", ErrNoGenerator
	}
	text, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("assistant: empty generation")
	}
	return text, nil
}
