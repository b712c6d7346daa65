package database

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tierwatch/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// PostgresRepository implements Repository on PostgreSQL through pgxpool.
type PostgresRepository struct {
	Pool *pgxpool.Pool
}

// Compile-time interface check.
var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository connects to dsn and verifies the connection.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresRepository{Pool: pool}, nil
}

// Migrate creates the schema if it does not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (r *PostgresRepository) Close() {
	r.Pool.Close()
}

const tokenColumns = `id, symbol, name, current_price, market_cap, market_cap_rank, volume_24h,
	price_change_24h, price_change_percentage_24h, tier, last_updated, metadata`

func scanToken(row pgx.Row) (model.Token, error) {
	var (
		t    model.Token
		meta []byte
	)
	err := row.Scan(&t.ID, &t.Symbol, &t.Name, &t.CurrentPrice, &t.MarketCap, &t.MarketCapRank,
		&t.Volume24h, &t.PriceChange24h, &t.PriceChangePercentage24h, &t.Tier, &t.LastUpdated, &meta)
	if err != nil {
		return model.Token{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &t.Metadata); err != nil {
			return model.Token{}, fmt.Errorf("decode metadata for %s: %w", t.Symbol, err)
		}
	}
	return t, nil
}

func (r *PostgresRepository) queryTokens(ctx context.Context, query string, args ...any) ([]model.Token, error) {
	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Token, 0)
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetAllTokens returns every token ordered by id.
func (r *PostgresRepository) GetAllTokens(ctx context.Context) ([]model.Token, error) {
	tokens, err := r.queryTokens(ctx, `SELECT `+tokenColumns+` FROM cryptocurrencies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("get all tokens: %w", err)
	}
	return tokens, nil
}

// GetTokensByTier returns the tokens tagged with tier, ordered by id.
func (r *PostgresRepository) GetTokensByTier(ctx context.Context, tier model.Tier) ([]model.Token, error) {
	tokens, err := r.queryTokens(ctx, `SELECT `+tokenColumns+` FROM cryptocurrencies WHERE tier = $1 ORDER BY id`, string(tier))
	if err != nil {
		return nil, fmt.Errorf("get tokens by tier: %w", err)
	}
	return tokens, nil
}

// GetTokenBySymbol returns ErrNotFound for an unknown symbol.
func (r *PostgresRepository) GetTokenBySymbol(ctx context.Context, symbol string) (model.Token, error) {
	row := r.Pool.QueryRow(ctx, `SELECT `+tokenColumns+` FROM cryptocurrencies WHERE symbol = $1`, symbol)
	t, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Token{}, fmt.Errorf("token %s: %w", symbol, ErrNotFound)
	}
	if err != nil {
		return model.Token{}, fmt.Errorf("get token by symbol: %w", err)
	}
	return t, nil
}

// UpsertToken inserts a token or updates the row with the same symbol.
func (r *PostgresRepository) UpsertToken(ctx context.Context, token model.Token) (model.Token, error) {
	if err := token.Validate(); err != nil {
		return model.Token{}, err
	}
	meta, err := json.Marshal(token.Metadata)
	if err != nil {
		return model.Token{}, fmt.Errorf("encode metadata for %s: %w", token.Symbol, err)
	}

	query := `
	INSERT INTO cryptocurrencies (
		symbol, name, current_price, market_cap, market_cap_rank, volume_24h,
		price_change_24h, price_change_percentage_24h, tier, metadata, last_updated
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	ON CONFLICT (symbol) DO UPDATE SET
		name = EXCLUDED.name,
		current_price = EXCLUDED.current_price,
		market_cap = EXCLUDED.market_cap,
		market_cap_rank = EXCLUDED.market_cap_rank,
		volume_24h = EXCLUDED.volume_24h,
		price_change_24h = EXCLUDED.price_change_24h,
		price_change_percentage_24h = EXCLUDED.price_change_percentage_24h,
		tier = EXCLUDED.tier,
		metadata = EXCLUDED.metadata,
		last_updated = NOW()
	RETURNING ` + tokenColumns

	row := r.Pool.QueryRow(ctx, query,
		token.Symbol, token.Name, token.CurrentPrice, token.MarketCap, token.MarketCapRank, token.Volume24h,
		token.PriceChange24h, token.PriceChangePercentage24h, string(token.Tier), meta,
	)
	stored, err := scanToken(row)
	if err != nil {
		return model.Token{}, fmt.Errorf("upsert token %s: %w", token.Symbol, err)
	}
	return stored, nil
}

const opportunityColumns = `id, cryptocurrency_id, symbol, opportunity_type, risk_level, risk_percentage,
	leverage_recommendation, expected_return, confidence, analysis, is_active, created_at, expires_at`

func scanOpportunity(row pgx.Row) (model.TradingOpportunity, error) {
	var (
		o        model.TradingOpportunity
		analysis []byte
		expires  *time.Time
	)
	err := row.Scan(&o.ID, &o.CryptocurrencyID, &o.Symbol, &o.OpportunityType, &o.RiskLevel, &o.RiskPercentage,
		&o.LeverageRecommendation, &o.ExpectedReturn, &o.Confidence, &analysis, &o.IsActive, &o.CreatedAt, &expires)
	if err != nil {
		return model.TradingOpportunity{}, err
	}
	if err := json.Unmarshal(analysis, &o.Analysis); err != nil {
		return model.TradingOpportunity{}, fmt.Errorf("decode analysis for opportunity %d: %w", o.ID, err)
	}
	if expires != nil {
		o.ExpiresAt = *expires
	}
	return o, nil
}

func (r *PostgresRepository) queryOpportunities(ctx context.Context, query string, args ...any) ([]model.TradingOpportunity, error) {
	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.TradingOpportunity, 0)
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetAllOpportunities returns every stored opportunity ordered by id.
func (r *PostgresRepository) GetAllOpportunities(ctx context.Context) ([]model.TradingOpportunity, error) {
	opps, err := r.queryOpportunities(ctx, `SELECT `+opportunityColumns+` FROM trading_opportunities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("get all opportunities: %w", err)
	}
	return opps, nil
}

// GetActiveOpportunities returns active, unexpired opportunities ordered by
// confidence, highest first.
func (r *PostgresRepository) GetActiveOpportunities(ctx context.Context) ([]model.TradingOpportunity, error) {
	opps, err := r.queryOpportunities(ctx, `
		SELECT `+opportunityColumns+`
		FROM trading_opportunities
		WHERE is_active AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY confidence DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("get active opportunities: %w", err)
	}
	return opps, nil
}

// CreateOpportunity stores opp as a new active row.
func (r *PostgresRepository) CreateOpportunity(ctx context.Context, opp model.TradingOpportunity) (model.TradingOpportunity, error) {
	analysis, err := json.Marshal(opp.Analysis)
	if err != nil {
		return model.TradingOpportunity{}, fmt.Errorf("encode analysis: %w", err)
	}
	var expires *time.Time
	if !opp.ExpiresAt.IsZero() {
		expires = &opp.ExpiresAt
	}
	created := opp.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	query := `
	INSERT INTO trading_opportunities (
		cryptocurrency_id, symbol, opportunity_type, risk_level, risk_percentage,
		leverage_recommendation, expected_return, confidence, analysis, is_active, created_at, expires_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, $10, $11)
	RETURNING ` + opportunityColumns

	row := r.Pool.QueryRow(ctx, query,
		opp.CryptocurrencyID, opp.Symbol, string(opp.OpportunityType), string(opp.RiskLevel), opp.RiskPercentage,
		opp.LeverageRecommendation, opp.ExpectedReturn, opp.Confidence, analysis, created, expires,
	)
	stored, err := scanOpportunity(row)
	if err != nil {
		return model.TradingOpportunity{}, fmt.Errorf("create opportunity for %s: %w", opp.Symbol, err)
	}
	return stored, nil
}

// DeactivateOpportunity marks an opportunity inactive.
func (r *PostgresRepository) DeactivateOpportunity(ctx context.Context, id int64) error {
	tag, err := r.Pool.Exec(ctx, `UPDATE trading_opportunities SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate opportunity %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("opportunity %d: %w", id, ErrNotFound)
	}
	return nil
}

// GetLatestCorrelations returns the newest record for each tier pair and timeframe.
func (r *PostgresRepository) GetLatestCorrelations(ctx context.Context) ([]model.Correlation, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT id, tier1, tier2, correlation, timeframe, calculated_at FROM (
			SELECT DISTINCT ON (tier1, tier2, timeframe) id, tier1, tier2, correlation, timeframe, calculated_at
			FROM correlation_data
			ORDER BY tier1, tier2, timeframe, calculated_at DESC, id DESC
		) latest
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("get latest correlations: %w", err)
	}
	defer rows.Close()

	out := make([]model.Correlation, 0)
	for rows.Next() {
		var c model.Correlation
		if err := rows.Scan(&c.ID, &c.Tier1, &c.Tier2, &c.Coefficient, &c.Timeframe, &c.CalculatedAt); err != nil {
			return nil, fmt.Errorf("scan correlation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCorrelation stores a correlation record.
func (r *PostgresRepository) CreateCorrelation(ctx context.Context, c model.Correlation) (model.Correlation, error) {
	calculated := c.CalculatedAt
	if calculated.IsZero() {
		calculated = time.Now()
	}
	err := r.Pool.QueryRow(ctx, `
		INSERT INTO correlation_data (tier1, tier2, correlation, timeframe, calculated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, calculated_at`,
		string(c.Tier1), string(c.Tier2), c.Coefficient, c.Timeframe, calculated,
	).Scan(&c.ID, &c.CalculatedAt)
	if err != nil {
		return model.Correlation{}, fmt.Errorf("create correlation: %w", err)
	}
	return c, nil
}

// AddPriceHistory records one price point.
func (r *PostgresRepository) AddPriceHistory(ctx context.Context, p model.PriceHistory) (model.PriceHistory, error) {
	ts := p.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	err := r.Pool.QueryRow(ctx, `
		INSERT INTO price_history (cryptocurrency_id, price, volume, market_cap, timestamp)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, timestamp`,
		p.CryptocurrencyID, p.Price, p.Volume, p.MarketCap, ts,
	).Scan(&p.ID, &p.Timestamp)
	if err != nil {
		return model.PriceHistory{}, fmt.Errorf("add price history for token %d: %w", p.CryptocurrencyID, err)
	}
	return p, nil
}

// GetPriceHistory returns the points recorded for tokenID after since, oldest first.
func (r *PostgresRepository) GetPriceHistory(ctx context.Context, tokenID int64, since time.Time) ([]model.PriceHistory, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT id, cryptocurrency_id, price, volume, market_cap, timestamp
		FROM price_history
		WHERE cryptocurrency_id = $1 AND timestamp > $2
		ORDER BY timestamp, id`, tokenID, since)
	if err != nil {
		return nil, fmt.Errorf("get price history: %w", err)
	}
	defer rows.Close()

	out := make([]model.PriceHistory, 0)
	for rows.Next() {
		var p model.PriceHistory
		if err := rows.Scan(&p.ID, &p.CryptocurrencyID, &p.Price, &p.Volume, &p.MarketCap, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("scan price history: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
