package opportunity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tierwatch/internal/config"
	"tierwatch/internal/database"
	"tierwatch/internal/metrics"
	"tierwatch/internal/model"
)

// Engine runs opportunity analysis over the stored token universe and persists
// the emitted signals.
type Engine struct {
	logger   *slog.Logger
	repo     database.Repository
	cfg      *config.AnalysisConfig
	detector *Detector
}

// NewEngine creates a new instance of the Engine.
func NewEngine(logger *slog.Logger, repo database.Repository, cfg *config.AnalysisConfig, detector *Detector) *Engine {
	return &Engine{
		logger:   logger,
		repo:     repo,
		cfg:      cfg,
		detector: detector,
	}
}

// Analyze validates a token snapshot and returns the ranked opportunities it
// yields. It performs no I/O.
func (e *Engine) Analyze(tokens []model.Token) ([]model.TradingOpportunity, error) {
	if err := model.ValidateTokens(tokens); err != nil {
		return nil, err
	}
	return e.detector.Detect(tokens), nil
}

type signalKey struct {
	tokenID int64
	kind    model.OpportunityType
}

// Run analyses the current snapshot from the repository and stores every
// emitted opportunity. It returns the stored rows in rank order.
func (e *Engine) Run(ctx context.Context) ([]model.TradingOpportunity, error) {
	start := time.Now()

	tokens, err := e.repo.GetAllTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("load token snapshot: %w", err)
	}

	opps, err := e.Analyze(tokens)
	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("analyze snapshot: %w", err)
	}

	previous, err := e.supersedable(ctx)
	if err != nil {
		return nil, err
	}

	stored := make([]model.TradingOpportunity, 0, len(opps))
	var storeErrs []error
	for _, opp := range opps {
		saved, err := e.repo.CreateOpportunity(ctx, opp)
		if err != nil {
			e.logger.Error("Failed to store opportunity", "symbol", opp.Symbol, "error", err)
			storeErrs = append(storeErrs, fmt.Errorf("store %s: %w", opp.Symbol, err))
			continue
		}
		metrics.OpportunitiesEmitted.WithLabelValues(string(saved.OpportunityType)).Inc()
		stored = append(stored, saved)

		// The replacement is stored, so older signals may go.
		if opp.CryptocurrencyID != nil {
			for _, id := range previous[signalKey{*opp.CryptocurrencyID, opp.OpportunityType}] {
				if err := e.repo.DeactivateOpportunity(ctx, id); err != nil {
					e.logger.Error("Failed to deactivate superseded opportunity", "id", id, "error", err)
				}
			}
		}
	}

	if len(opps) > 0 && len(stored) == 0 {
		return nil, fmt.Errorf("store opportunities: %w", errors.Join(storeErrs...))
	}

	e.logger.Info("Opportunity analysis complete",
		"tokens", len(tokens),
		"opportunities", len(stored),
		"duration", time.Since(start),
	)
	return stored, nil
}

// supersedable indexes the currently active signals by token and direction
// when supersede is enabled.
func (e *Engine) supersedable(ctx context.Context) (map[signalKey][]int64, error) {
	if !e.cfg.Supersede {
		return nil, nil
	}
	active, err := e.repo.GetActiveOpportunities(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active opportunities: %w", err)
	}
	out := make(map[signalKey][]int64, len(active))
	for _, a := range active {
		if a.CryptocurrencyID == nil {
			continue
		}
		k := signalKey{*a.CryptocurrencyID, a.OpportunityType}
		out[k] = append(out[k], a.ID)
	}
	return out, nil
}

// Start runs analysis every cfg.Interval until ctx is cancelled. A zero
// interval returns immediately.
func (e *Engine) Start(ctx context.Context) {
	if e.cfg.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Engine: context cancelled, stopping scheduled analysis")
			return
		case <-ticker.C:
			if _, err := e.Run(ctx); err != nil {
				e.logger.Error("Scheduled analysis failed", "error", err)
			}
		}
	}
}
