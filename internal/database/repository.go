package database

import (
	"context"
	"errors"
	"time"

	"tierwatch/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Repository defines the standard interface for database operations.
type Repository interface {
	GetAllTokens(ctx context.Context) ([]model.Token, error)
	GetTokensByTier(ctx context.Context, tier model.Tier) ([]model.Token, error)
	GetTokenBySymbol(ctx context.Context, symbol string) (model.Token, error)
	// UpsertToken inserts or updates a token keyed by symbol and returns the
	// stored row with its id and LastUpdated set.
	UpsertToken(ctx context.Context, token model.Token) (model.Token, error)

	GetAllOpportunities(ctx context.Context) ([]model.TradingOpportunity, error)
	// GetActiveOpportunities returns opportunities that are active and not expired.
	GetActiveOpportunities(ctx context.Context) ([]model.TradingOpportunity, error)
	CreateOpportunity(ctx context.Context, opp model.TradingOpportunity) (model.TradingOpportunity, error)
	DeactivateOpportunity(ctx context.Context, id int64) error

	GetLatestCorrelations(ctx context.Context) ([]model.Correlation, error)
	CreateCorrelation(ctx context.Context, c model.Correlation) (model.Correlation, error)

	AddPriceHistory(ctx context.Context, p model.PriceHistory) (model.PriceHistory, error)
	GetPriceHistory(ctx context.Context, tokenID int64, since time.Time) ([]model.PriceHistory, error)

	Migrate(ctx context.Context) error
	Close()
}
