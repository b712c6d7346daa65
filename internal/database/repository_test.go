package database

import (
	"context"
	"flag"
	"log"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"tierwatch/internal/model"
)

var (
	pgRepo *PostgresRepository
)

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	// Define the PostgreSQL container request
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpassword",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		log.Printf("postgres container unavailable, skipping postgres tests: %s", err)
		os.Exit(m.Run())
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		log.Fatalf("could not get container host: %s", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		log.Fatalf("could not get mapped port: %s", err)
	}

	connStr := "postgres://testuser:testpassword@" + host + ":" + port.Port() + "/testdb?sslmode=disable"
	pgRepo, err = NewPostgresRepository(ctx, connStr)
	if err != nil {
		log.Fatalf("could not connect to database: %s", err)
	}
	if err := pgRepo.Migrate(ctx); err != nil {
		log.Fatalf("could not migrate: %s", err)
	}

	code := m.Run()

	pgRepo.Close()
	if err := pgContainer.Terminate(ctx); err != nil {
		log.Printf("could not stop postgres container: %s", err)
	}
	os.Exit(code)
}

func requirePostgres(t *testing.T) *PostgresRepository {
	t.Helper()
	if pgRepo == nil {
		t.Skip("postgres container not available")
	}
	return pgRepo
}

func sampleToken(symbol string, marketCap int64, change string) model.Token {
	rank := 1
	return model.Token{
		Symbol:                   symbol,
		Name:                     symbol + " coin",
		CurrentPrice:             decimal.RequireFromString("60000.12345678"),
		MarketCap:                decimal.NewFromInt(marketCap),
		MarketCapRank:            &rank,
		Volume24h:                decimal.NewFromInt(marketCap / 20),
		PriceChange24h:           decimal.RequireFromString("120.5"),
		PriceChangePercentage24h: decimal.RequireFromString(change),
		Tier:                     model.TierLarge,
		Metadata:                 map[string]any{"coinGeckoId": symbol},
	}
}

func TestPostgresRepository_UpsertToken(t *testing.T) {
	repo := requirePostgres(t)
	ctx := context.Background()

	first, err := repo.UpsertToken(ctx, sampleToken("PGA", 20_000_000_000, "1.5"))
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	updated := sampleToken("PGA", 21_000_000_000, "-2.25")
	second, err := repo.UpsertToken(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	got, err := repo.GetTokenBySymbol(ctx, "PGA")
	require.NoError(t, err)
	assert.True(t, got.MarketCap.Equal(decimal.NewFromInt(21_000_000_000)))
	assert.True(t, got.PriceChangePercentage24h.Equal(decimal.RequireFromString("-2.25")))
	assert.True(t, got.CurrentPrice.Equal(decimal.RequireFromString("60000.12345678")))
	require.NotNil(t, got.MarketCapRank)
	assert.Equal(t, 1, *got.MarketCapRank)
	assert.Equal(t, "PGA", got.Metadata["coinGeckoId"])

	byTier, err := repo.GetTokensByTier(ctx, model.TierLarge)
	require.NoError(t, err)
	assert.NotEmpty(t, byTier)

	_, err = repo.GetTokenBySymbol(ctx, "MISSING")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRepository_Opportunities(t *testing.T) {
	repo := requirePostgres(t)
	ctx := context.Background()

	token, err := repo.UpsertToken(ctx, sampleToken("PGB", 15_000_000_000, "4"))
	require.NoError(t, err)

	now := time.Now()
	opp := model.TradingOpportunity{
		CryptocurrencyID:       &token.ID,
		Symbol:                 token.Symbol,
		OpportunityType:        model.OpportunityShort,
		RiskLevel:              model.RiskMedium,
		RiskPercentage:         32.25,
		LeverageRecommendation: "5-7x",
		ExpectedReturn:         3.252,
		Confidence:             78.875,
		Analysis:               model.Analysis{VolatilityRisk: 25, Explanation: "test"},
		CreatedAt:              now,
		ExpiresAt:              now.Add(24 * time.Hour),
	}
	stored, err := repo.CreateOpportunity(ctx, opp)
	require.NoError(t, err)
	assert.NotZero(t, stored.ID)
	assert.True(t, stored.IsActive)
	assert.Equal(t, "test", stored.Analysis.Explanation)

	expired := opp
	expired.ExpiresAt = now.Add(-time.Hour)
	_, err = repo.CreateOpportunity(ctx, expired)
	require.NoError(t, err)

	active, err := repo.GetActiveOpportunities(ctx)
	require.NoError(t, err)
	ids := make([]int64, 0, len(active))
	for _, a := range active {
		ids = append(ids, a.ID)
	}
	assert.Contains(t, ids, stored.ID)
	assert.Len(t, ids, 1)

	require.NoError(t, repo.DeactivateOpportunity(ctx, stored.ID))
	active, err = repo.GetActiveOpportunities(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	assert.ErrorIs(t, repo.DeactivateOpportunity(ctx, 999999), ErrNotFound)
}

func TestPostgresRepository_CorrelationsAndHistory(t *testing.T) {
	repo := requirePostgres(t)
	ctx := context.Background()

	older := time.Now().Add(-time.Hour)
	_, err := repo.CreateCorrelation(ctx, model.Correlation{Tier1: model.TierMega, Tier2: model.TierLarge, Coefficient: 0.4, Timeframe: "24h", CalculatedAt: older})
	require.NoError(t, err)
	newest, err := repo.CreateCorrelation(ctx, model.Correlation{Tier1: model.TierMega, Tier2: model.TierLarge, Coefficient: 0.9, Timeframe: "24h"})
	require.NoError(t, err)

	latest, err := repo.GetLatestCorrelations(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, newest.ID, latest[0].ID)
	assert.InDelta(t, 0.9, latest[0].Coefficient, 1e-9)

	token, err := repo.UpsertToken(ctx, sampleToken("PGC", 12_000_000_000, "0"))
	require.NoError(t, err)
	_, err = repo.AddPriceHistory(ctx, model.PriceHistory{CryptocurrencyID: token.ID, Price: token.CurrentPrice, Volume: token.Volume24h, MarketCap: token.MarketCap})
	require.NoError(t, err)

	points, err := repo.GetPriceHistory(ctx, token.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.True(t, points[0].Price.Equal(token.CurrentPrice))
}
