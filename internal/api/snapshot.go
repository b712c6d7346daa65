package api

import (
	"context"
	"fmt"
	"time"

	"tierwatch/internal/model"
	"tierwatch/internal/stats"
)

// MarketUpdate is the payload pushed to websocket clients.
type MarketUpdate struct {
	Type      string           `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Data      MarketUpdateData `json:"data"`
}

// MarketUpdateData is the snapshot carried by a MarketUpdate.
type MarketUpdateData struct {
	Cryptocurrencies []model.Token              `json:"cryptocurrencies"`
	Opportunities    []model.TradingOpportunity `json:"opportunities"`
	Correlations     []model.Correlation        `json:"correlations"`
	TotalMarketCap   float64                    `json:"totalMarketCap"`
	BTCDominance     float64                    `json:"btcDominance"`
}

func (s *Server) marketUpdate(ctx context.Context) (MarketUpdate, error) {
	tokens, err := s.deps.Repo.GetAllTokens(ctx)
	if err != nil {
		return MarketUpdate{}, fmt.Errorf("load tokens: %w", err)
	}
	opps, err := s.deps.Repo.GetActiveOpportunities(ctx)
	if err != nil {
		return MarketUpdate{}, fmt.Errorf("load opportunities: %w", err)
	}
	correlations, err := s.deps.Repo.GetLatestCorrelations(ctx)
	if err != nil {
		return MarketUpdate{}, fmt.Errorf("load correlations: %w", err)
	}

	return MarketUpdate{
		Type:      "marketUpdate",
		Timestamp: time.Now().UTC(),
		Data: MarketUpdateData{
			Cryptocurrencies: tokens,
			Opportunities:    opps,
			Correlations:     correlations,
			TotalMarketCap:   stats.TotalMarketCap(tokens).InexactFloat64(),
			BTCDominance:     stats.BTCDominance(tokens),
		},
	}, nil
}

func (s *Server) computeStats(ctx context.Context) (model.MarketStats, error) {
	tokens, err := s.deps.Repo.GetAllTokens(ctx)
	if err != nil {
		return model.MarketStats{}, err
	}
	opps, err := s.deps.Repo.GetActiveOpportunities(ctx)
	if err != nil {
		return model.MarketStats{}, err
	}
	return statsFor(tokens, opps), nil
}

func statsFor(tokens []model.Token, opps []model.TradingOpportunity) model.MarketStats {
	return stats.Compute(tokens, len(opps))
}
