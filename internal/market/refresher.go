package market

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tierwatch/internal/database"
	"tierwatch/internal/metrics"
	"tierwatch/internal/model"
	"tierwatch/internal/opportunity"
	"tierwatch/internal/stats"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 16 * time.Second

	correlationWindow = 30
)

// Result summarises one refresh cycle.
type Result struct {
	Tokens        int `json:"cryptocurrencies"`
	Opportunities int `json:"opportunities"`
}

// Refresher pulls market data, stores it and runs analysis on every cycle.
// Cycles are serialized.
type Refresher struct {
	logger   *slog.Logger
	provider Provider
	repo     database.Repository
	engine   *opportunity.Engine
	interval time.Duration
	series   *stats.TierSeries
	now      func() time.Time
	after    []func(ctx context.Context, res Result)

	mu sync.Mutex
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithAfterRefresh registers fn to run after every successful cycle.
func WithAfterRefresh(fn func(ctx context.Context, res Result)) RefresherOption {
	return func(r *Refresher) { r.after = append(r.after, fn) }
}

// WithRefresherClock overrides the clock used for snapshot timestamps.
func WithRefresherClock(now func() time.Time) RefresherOption {
	return func(r *Refresher) { r.now = now }
}

// NewRefresher creates a new Refresher.
func NewRefresher(logger *slog.Logger, provider Provider, repo database.Repository, engine *opportunity.Engine, interval time.Duration, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		logger:   logger,
		provider: provider,
		repo:     repo,
		engine:   engine,
		interval: interval,
		series:   stats.NewTierSeries(correlationWindow),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh runs one cycle: fetch, validate, upsert, record history and
// correlations, analyse, then notify hooks.
func (r *Refresher) Refresh(ctx context.Context) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.refresh(ctx)
	if err != nil {
		metrics.RefreshRuns.WithLabelValues("error").Inc()
		return res, err
	}
	metrics.RefreshRuns.WithLabelValues("success").Inc()

	for _, fn := range r.after {
		fn(ctx, res)
	}
	return res, nil
}

func (r *Refresher) refresh(ctx context.Context) (Result, error) {
	rows, err := r.provider.FetchMarkets(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch markets from %s: %w", r.provider.Name(), err)
	}

	now := r.now()
	tokens, rejected := ToTokens(rows, now)
	for _, err := range rejected {
		r.logger.Warn("Refresher: skipping invalid market row", "error", err)
	}

	stored := make([]model.Token, 0, len(tokens))
	for _, token := range tokens {
		saved, err := r.repo.UpsertToken(ctx, token)
		if err != nil {
			r.logger.Error("Refresher: failed to upsert token", "symbol", token.Symbol, "error", err)
			continue
		}
		stored = append(stored, saved)

		point := model.PriceHistory{
			CryptocurrencyID: saved.ID,
			Price:            saved.CurrentPrice,
			Volume:           saved.Volume24h,
			MarketCap:        saved.MarketCap,
			Timestamp:        now,
		}
		if _, err := r.repo.AddPriceHistory(ctx, point); err != nil {
			r.logger.Error("Refresher: failed to record price history", "symbol", saved.Symbol, "error", err)
		}
	}
	if len(tokens) > 0 && len(stored) == 0 {
		return Result{}, fmt.Errorf("no tokens stored out of %d", len(tokens))
	}
	metrics.TokensIngested.Add(float64(len(stored)))

	r.recordCorrelations(ctx, stored, now)

	opps, err := r.engine.Run(ctx)
	if err != nil {
		return Result{Tokens: len(stored)}, fmt.Errorf("analysis after refresh: %w", err)
	}

	r.logger.Info("Market data refreshed",
		"provider", r.provider.Name(),
		"fetched", len(rows),
		"stored", len(stored),
		"opportunities", len(opps),
	)
	return Result{Tokens: len(stored), Opportunities: len(opps)}, nil
}

func (r *Refresher) recordCorrelations(ctx context.Context, tokens []model.Token, now time.Time) {
	if len(tokens) == 0 {
		return
	}
	r.series.Add(tokens)
	for _, c := range r.series.Correlations(r.timeframe(), now) {
		if _, err := r.repo.CreateCorrelation(ctx, c); err != nil {
			r.logger.Error("Refresher: failed to store correlation", "tier1", c.Tier1, "tier2", c.Tier2, "error", err)
		}
	}
}

// timeframe labels correlation records with the span the window covers.
func (r *Refresher) timeframe() string {
	if r.interval <= 0 {
		return "24h"
	}
	span := r.interval * time.Duration(r.series.Len())
	if span >= 24*time.Hour {
		return fmt.Sprintf("%dd", int(span/(24*time.Hour)))
	}
	if span >= time.Hour {
		return fmt.Sprintf("%dh", int(span/time.Hour))
	}
	return fmt.Sprintf("%dm", int(span/time.Minute))
}

// Start refreshes immediately and then every interval until ctx is cancelled.
// A failed cycle is retried with exponential backoff before the next tick.
func (r *Refresher) Start(ctx context.Context) {
	r.logger.Info("Refresher: starting", "provider", r.provider.Name(), "interval", r.interval)
	r.refreshWithRetry(ctx)
	if r.interval <= 0 {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Refresher: context cancelled, shutting down")
			return
		case <-ticker.C:
			r.refreshWithRetry(ctx)
		}
	}
}

func (r *Refresher) refreshWithRetry(ctx context.Context) {
	backoff := initialBackoff
	for {
		_, err := r.Refresh(ctx)
		if err == nil {
			return
		}
		r.logger.Error("Refresher: refresh failed", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}
