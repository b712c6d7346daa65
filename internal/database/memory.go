package database

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"tierwatch/internal/model"
)

// MemoryRepository is an in-memory Repository with auto-increment ids.
// Reads return copies so callers always observe a consistent snapshot.
type MemoryRepository struct {
	mu  sync.RWMutex
	now func() time.Time

	tokens        map[int64]model.Token
	symbols       map[string]int64
	opportunities map[int64]model.TradingOpportunity
	correlations  []model.Correlation
	history       []model.PriceHistory

	nextTokenID       int64
	nextOpportunityID int64
	nextCorrelationID int64
	nextHistoryID     int64
}

// Compile-time interface check.
var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		now:               time.Now,
		tokens:            make(map[int64]model.Token),
		symbols:           make(map[string]int64),
		opportunities:     make(map[int64]model.TradingOpportunity),
		nextTokenID:       1,
		nextOpportunityID: 1,
		nextCorrelationID: 1,
		nextHistoryID:     1,
	}
}

// Migrate is a no-op for the in-memory store.
func (r *MemoryRepository) Migrate(context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (r *MemoryRepository) Close() {}

func cloneToken(t model.Token) model.Token {
	if t.MarketCapRank != nil {
		rank := *t.MarketCapRank
		t.MarketCapRank = &rank
	}
	t.Metadata = maps.Clone(t.Metadata)
	return t
}

func cloneOpportunity(o model.TradingOpportunity) model.TradingOpportunity {
	if o.CryptocurrencyID != nil {
		id := *o.CryptocurrencyID
		o.CryptocurrencyID = &id
	}
	return o
}

// GetAllTokens returns every token ordered by id.
func (r *MemoryRepository) GetAllTokens(_ context.Context) ([]model.Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Token, 0, len(r.tokens))
	for _, t := range r.tokens {
		out = append(out, cloneToken(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetTokensByTier returns the tokens tagged with tier, ordered by id.
func (r *MemoryRepository) GetTokensByTier(ctx context.Context, tier model.Tier) ([]model.Token, error) {
	all, err := r.GetAllTokens(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Token, 0)
	for _, t := range all {
		if t.Tier == tier {
			out = append(out, t)
		}
	}
	return out, nil
}

// GetTokenBySymbol returns ErrNotFound for an unknown symbol.
func (r *MemoryRepository) GetTokenBySymbol(_ context.Context, symbol string) (model.Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.symbols[symbol]
	if !ok {
		return model.Token{}, fmt.Errorf("token %s: %w", symbol, ErrNotFound)
	}
	return cloneToken(r.tokens[id]), nil
}

// UpsertToken inserts a new token or replaces the one with the same symbol,
// keeping its id.
func (r *MemoryRepository) UpsertToken(_ context.Context, token model.Token) (model.Token, error) {
	if err := token.Validate(); err != nil {
		return model.Token{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.symbols[token.Symbol]; ok {
		token.ID = id
	} else {
		token.ID = r.nextTokenID
		r.nextTokenID++
		r.symbols[token.Symbol] = token.ID
	}
	token.LastUpdated = r.now()
	token = cloneToken(token)
	r.tokens[token.ID] = token
	return cloneToken(token), nil
}

// GetAllOpportunities returns every stored opportunity ordered by id.
func (r *MemoryRepository) GetAllOpportunities(_ context.Context) ([]model.TradingOpportunity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.TradingOpportunity, 0, len(r.opportunities))
	for _, o := range r.opportunities {
		out = append(out, cloneOpportunity(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetActiveOpportunities returns active, unexpired opportunities ordered by
// confidence, highest first.
func (r *MemoryRepository) GetActiveOpportunities(ctx context.Context) ([]model.TradingOpportunity, error) {
	all, err := r.GetAllOpportunities(ctx)
	if err != nil {
		return nil, err
	}
	now := r.now()
	out := make([]model.TradingOpportunity, 0, len(all))
	for _, o := range all {
		if o.Active(now) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out, nil
}

// CreateOpportunity stores opp as a new active row.
func (r *MemoryRepository) CreateOpportunity(_ context.Context, opp model.TradingOpportunity) (model.TradingOpportunity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	opp.ID = r.nextOpportunityID
	r.nextOpportunityID++
	if opp.CreatedAt.IsZero() {
		opp.CreatedAt = r.now()
	}
	opp.IsActive = true
	opp = cloneOpportunity(opp)
	r.opportunities[opp.ID] = opp
	return cloneOpportunity(opp), nil
}

// DeactivateOpportunity marks an opportunity inactive.
func (r *MemoryRepository) DeactivateOpportunity(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	opp, ok := r.opportunities[id]
	if !ok {
		return fmt.Errorf("opportunity %d: %w", id, ErrNotFound)
	}
	opp.IsActive = false
	r.opportunities[id] = opp
	return nil
}

// GetLatestCorrelations returns the newest record for each tier pair and timeframe.
func (r *MemoryRepository) GetLatestCorrelations(_ context.Context) ([]model.Correlation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type key struct {
		t1, t2    model.Tier
		timeframe string
	}
	latest := make(map[key]int)
	for i, c := range r.correlations {
		k := key{c.Tier1, c.Tier2, c.Timeframe}
		if j, ok := latest[k]; !ok || !c.CalculatedAt.Before(r.correlations[j].CalculatedAt) {
			latest[k] = i
		}
	}

	out := make([]model.Correlation, 0, len(latest))
	for _, i := range latest {
		out = append(out, r.correlations[i])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateCorrelation stores a correlation record.
func (r *MemoryRepository) CreateCorrelation(_ context.Context, c model.Correlation) (model.Correlation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c.ID = r.nextCorrelationID
	r.nextCorrelationID++
	if c.CalculatedAt.IsZero() {
		c.CalculatedAt = r.now()
	}
	r.correlations = append(r.correlations, c)
	return c, nil
}

// AddPriceHistory records one price point.
func (r *MemoryRepository) AddPriceHistory(_ context.Context, p model.PriceHistory) (model.PriceHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[p.CryptocurrencyID]; !ok {
		return model.PriceHistory{}, fmt.Errorf("token id %d: %w", p.CryptocurrencyID, ErrNotFound)
	}
	p.ID = r.nextHistoryID
	r.nextHistoryID++
	if p.Timestamp.IsZero() {
		p.Timestamp = r.now()
	}
	r.history = append(r.history, p)
	return p, nil
}

// GetPriceHistory returns the points recorded for tokenID after since, oldest first.
func (r *MemoryRepository) GetPriceHistory(_ context.Context, tokenID int64, since time.Time) ([]model.PriceHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.PriceHistory, 0)
	for _, p := range r.history {
		if p.CryptocurrencyID == tokenID && p.Timestamp.After(since) {
			out = append(out, p)
		}
	}
	return out, nil
}
