package assistant

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"tierwatch/internal/config"
)

// GeminiGenerator generates replies with a Gemini model.
type GeminiGenerator struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// NewGeminiGenerator creates a Gemini-backed Generator. It returns
// ErrNoGenerator when no API key is configured.
func NewGeminiGenerator(ctx context.Context, cfg *config.AssistantConfig) (*GeminiGenerator, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, ErrNoGenerator
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiGenerator{
		client: client,
		model:  cfg.Model,
		config: &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(cfg.Temperature),
			MaxOutputTokens: cfg.MaxOutputTokens,
		},
	}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), g.config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}
