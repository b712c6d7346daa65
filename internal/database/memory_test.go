package database

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tierwatch/internal/model"
)

func TestMemoryRepository_UpsertToken(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	first, err := repo.UpsertToken(ctx, sampleToken("BTC", 1_200_000_000_000, "1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)
	assert.False(t, first.LastUpdated.IsZero())

	second, err := repo.UpsertToken(ctx, sampleToken("ETH", 400_000_000_000, "2"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.ID)

	again, err := repo.UpsertToken(ctx, sampleToken("BTC", 1_300_000_000_000, "3"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	all, err := repo.GetAllTokens(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].MarketCap.Equal(decimal.NewFromInt(1_300_000_000_000)))

	t.Run("rejects invalid tokens", func(t *testing.T) {
		bad := sampleToken("", 1, "0")
		_, err := repo.UpsertToken(ctx, bad)
		assert.ErrorIs(t, err, model.ErrInvalidToken)
	})

	t.Run("returned copies are isolated", func(t *testing.T) {
		got, err := repo.GetTokenBySymbol(ctx, "ETH")
		require.NoError(t, err)
		got.Metadata["coinGeckoId"] = "mutated"
		*got.MarketCapRank = 99

		again, err := repo.GetTokenBySymbol(ctx, "ETH")
		require.NoError(t, err)
		assert.Equal(t, "ETH", again.Metadata["coinGeckoId"])
		assert.Equal(t, 1, *again.MarketCapRank)
	})
}

func TestMemoryRepository_GetTokensByTier(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	large := sampleToken("AAA", 20_000_000_000, "1")
	micro := sampleToken("BBB", 1_000, "1")
	micro.Tier = model.TierMicro
	_, err := repo.UpsertToken(ctx, large)
	require.NoError(t, err)
	_, err = repo.UpsertToken(ctx, micro)
	require.NoError(t, err)

	got, err := repo.GetTokensByTier(ctx, model.TierMicro)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "BBB", got[0].Symbol)

	none, err := repo.GetTokensByTier(ctx, model.TierMega)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryRepository_ActiveOpportunities(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	live, err := repo.CreateOpportunity(ctx, model.TradingOpportunity{Symbol: "A", Confidence: 70, ExpiresAt: now.Add(time.Hour)})
	require.NoError(t, err)
	better, err := repo.CreateOpportunity(ctx, model.TradingOpportunity{Symbol: "B", Confidence: 90, ExpiresAt: now.Add(time.Hour)})
	require.NoError(t, err)
	_, err = repo.CreateOpportunity(ctx, model.TradingOpportunity{Symbol: "C", Confidence: 99, ExpiresAt: now.Add(-time.Second)})
	require.NoError(t, err)

	active, err := repo.GetActiveOpportunities(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, better.ID, active[0].ID)
	assert.Equal(t, live.ID, active[1].ID)

	require.NoError(t, repo.DeactivateOpportunity(ctx, better.ID))
	active, err = repo.GetActiveOpportunities(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, live.ID, active[0].ID)

	all, err := repo.GetAllOpportunities(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	assert.ErrorIs(t, repo.DeactivateOpportunity(ctx, 42), ErrNotFound)
}

func TestMemoryRepository_LatestCorrelations(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := repo.CreateCorrelation(ctx, model.Correlation{Tier1: model.TierMega, Tier2: model.TierLarge, Coefficient: 0.1, Timeframe: "24h", CalculatedAt: base})
	require.NoError(t, err)
	_, err = repo.CreateCorrelation(ctx, model.Correlation{Tier1: model.TierMega, Tier2: model.TierLarge, Coefficient: 0.8, Timeframe: "24h", CalculatedAt: base.Add(time.Minute)})
	require.NoError(t, err)
	_, err = repo.CreateCorrelation(ctx, model.Correlation{Tier1: model.TierMega, Tier2: model.TierSmall, Coefficient: -0.3, Timeframe: "24h", CalculatedAt: base})
	require.NoError(t, err)

	latest, err := repo.GetLatestCorrelations(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.InDelta(t, 0.8, latest[0].Coefficient, 1e-9)
	assert.InDelta(t, -0.3, latest[1].Coefficient, 1e-9)
}

func TestMemoryRepository_PriceHistory(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	token, err := repo.UpsertToken(ctx, sampleToken("SOL", 60_000_000_000, "1"))
	require.NoError(t, err)

	_, err = repo.AddPriceHistory(ctx, model.PriceHistory{CryptocurrencyID: token.ID, Price: decimal.NewFromInt(100), Timestamp: base})
	require.NoError(t, err)
	_, err = repo.AddPriceHistory(ctx, model.PriceHistory{CryptocurrencyID: token.ID, Price: decimal.NewFromInt(110), Timestamp: base.Add(2 * time.Hour)})
	require.NoError(t, err)

	points, err := repo.GetPriceHistory(ctx, token.ID, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.True(t, points[0].Price.Equal(decimal.NewFromInt(110)))

	_, err = repo.AddPriceHistory(ctx, model.PriceHistory{CryptocurrencyID: 404, Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrNotFound)
}
