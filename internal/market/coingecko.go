package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"tierwatch/internal/config"
	"tierwatch/internal/metrics"
)

const coinGeckoName = "coingecko"

// CoinGeckoProvider pages through the CoinGecko /coins/markets endpoint.
type CoinGeckoProvider struct {
	logger  *slog.Logger
	client  *resty.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker

	perPage   int
	maxTokens int
}

// NewCoinGeckoProvider creates a new CoinGeckoProvider.
func NewCoinGeckoProvider(logger *slog.Logger, cfg *config.MarketConfig) *CoinGeckoProvider {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("x-cg-demo-api-key", cfg.APIKey)
	}

	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = 250
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        coinGeckoName,
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("CoinGeckoProvider: circuit breaker state changed", "from", from.String(), "to", to.String())
		},
	})

	return &CoinGeckoProvider{
		logger:    logger,
		client:    client,
		limiter:   rate.NewLimiter(rate.Every(cfg.RequestInterval), 1),
		breaker:   breaker,
		perPage:   perPage,
		maxTokens: maxTokens,
	}
}

func (p *CoinGeckoProvider) Name() string {
	return coinGeckoName
}

// FetchMarkets pages until a short page or the token cap. An error on the
// first page is returned; a later failure stops paging and keeps what was
// already fetched.
func (p *CoinGeckoProvider) FetchMarkets(ctx context.Context) ([]MarketData, error) {
	all := make([]MarketData, 0, p.maxTokens)
	for page := 1; len(all) < p.maxTokens; page++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return all, err
		}

		rows, err := p.fetchPage(ctx, page)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			p.logger.Warn("CoinGeckoProvider: stopping pagination after failed page", "page", page, "error", err)
			break
		}
		all = append(all, rows...)
		if len(rows) < p.perPage {
			break
		}
	}

	if len(all) > p.maxTokens {
		all = all[:p.maxTokens]
	}
	p.logger.Debug("CoinGeckoProvider: fetched markets", "count", len(all))
	return all, nil
}

func (p *CoinGeckoProvider) fetchPage(ctx context.Context, page int) ([]MarketData, error) {
	result, err := p.breaker.Execute(func() (interface{}, error) {
		resp, err := p.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"vs_currency":             "usd",
				"order":                   "market_cap_desc",
				"per_page":                strconv.Itoa(p.perPage),
				"page":                    strconv.Itoa(page),
				"sparkline":               "false",
				"price_change_percentage": "24h",
			}).
			Get("/coins/markets")
		if err != nil {
			return nil, fmt.Errorf("request page %d: %w", page, err)
		}
		if resp.StatusCode() == http.StatusTooManyRequests {
			return nil, ErrRateLimited
		}
		if resp.IsError() {
			return nil, fmt.Errorf("page %d: unexpected status %d", page, resp.StatusCode())
		}

		var rows []MarketData
		if err := json.Unmarshal(resp.Body(), &rows); err != nil {
			return nil, fmt.Errorf("decode page %d: %w", page, err)
		}
		return rows, nil
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.ProviderRequests.WithLabelValues(coinGeckoName, "rejected").Inc()
		return nil, fmt.Errorf("coingecko unavailable: %w", err)
	case err != nil:
		metrics.ProviderRequests.WithLabelValues(coinGeckoName, "error").Inc()
		return nil, err
	}
	metrics.ProviderRequests.WithLabelValues(coinGeckoName, "success").Inc()
	return result.([]MarketData), nil
}
