package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"tierwatch/internal/assistant"
	"tierwatch/internal/cache"
	"tierwatch/internal/database"
	"tierwatch/internal/model"
	"tierwatch/internal/stats"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func (s *Server) listTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.deps.Repo.GetAllTokens(r.Context())
	if err != nil {
		s.logger.Error("Failed to fetch cryptocurrencies", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch cryptocurrencies")
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (s *Server) listTokensByTier(w http.ResponseWriter, r *http.Request) {
	t := model.Tier(mux.Vars(r)["tier"])
	if !t.Valid() {
		writeError(w, http.StatusBadRequest, "unknown tier: "+string(t))
		return
	}
	tokens, err := s.deps.Repo.GetTokensByTier(r.Context(), t)
	if err != nil {
		s.logger.Error("Failed to fetch cryptocurrencies by tier", "tier", t, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch cryptocurrencies by tier")
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

// PriceHistoryResponse is the price series of one token over a window.
type PriceHistoryResponse struct {
	Symbol     string               `json:"symbol"`
	Hours      int                  `json:"hours"`
	Volatility float64              `json:"volatility"`
	History    []model.PriceHistory `json:"history"`
}

func (s *Server) priceHistory(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		h, err := strconv.Atoi(raw)
		if err != nil || h <= 0 {
			writeError(w, http.StatusBadRequest, "hours must be a positive integer")
			return
		}
		hours = h
	}

	ctx := r.Context()
	token, err := s.deps.Repo.GetTokenBySymbol(ctx, symbol)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown symbol: "+symbol)
		return
	}
	if err != nil {
		s.logger.Error("Failed to fetch cryptocurrency", "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch price history")
		return
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	history, err := s.deps.Repo.GetPriceHistory(ctx, token.ID, since)
	if err != nil {
		s.logger.Error("Failed to fetch price history", "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch price history")
		return
	}

	prices := make([]float64, len(history))
	for i, p := range history {
		prices[i] = p.Price.InexactFloat64()
	}
	writeJSON(w, http.StatusOK, PriceHistoryResponse{
		Symbol:     token.Symbol,
		Hours:      hours,
		Volatility: stats.Volatility(prices),
		History:    history,
	})
}

func (s *Server) listOpportunities(w http.ResponseWriter, r *http.Request) {
	opps, err := s.deps.Repo.GetActiveOpportunities(r.Context())
	if err != nil {
		s.logger.Error("Failed to fetch opportunities", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch opportunities")
		return
	}
	writeJSON(w, http.StatusOK, opps)
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	opps, err := s.deps.Analyzer.Run(r.Context())
	if err != nil {
		s.logger.Error("Failed to analyze opportunities", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to analyze opportunities")
		return
	}
	s.Publish(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Analysis complete",
		"count":   len(opps),
	})
}

func (s *Server) listCorrelations(w http.ResponseWriter, r *http.Request) {
	correlations, err := s.deps.Repo.GetLatestCorrelations(r.Context())
	if err != nil {
		s.logger.Error("Failed to fetch correlations", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch correlations")
		return
	}
	writeJSON(w, http.StatusOK, correlations)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	if s.deps.Refresher == nil {
		writeError(w, http.StatusServiceUnavailable, "Market refresh is not configured")
		return
	}
	res, err := s.deps.Refresher.Refresh(r.Context())
	if err != nil {
		s.logger.Error("Failed to refresh market data", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to refresh market data")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":          "Market data refreshed successfully",
		"cryptocurrencies": res.Tokens,
		"opportunities":    res.Opportunities,
	})
}

func (s *Server) marketStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cache != nil {
		st, err := s.deps.Cache.MarketStats(r.Context())
		if err == nil {
			// Signals expire between publishes; the count is always live.
			opps, oerr := s.deps.Repo.GetActiveOpportunities(r.Context())
			if oerr == nil {
				st.ActiveOpportunities = len(opps)
				writeJSON(w, http.StatusOK, st)
				return
			}
			err = oerr
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("Cached market stats unavailable", "error", err)
		}
	}

	st, err := s.computeStats(r.Context())
	if err != nil {
		s.logger.Error("Failed to fetch market stats", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch market stats")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type assistantRequest struct {
	Query string `json:"query"`
}

func (s *Server) assistantQuery(w http.ResponseWriter, r *http.Request) {
	if s.deps.Assistant == nil {
		writeError(w, http.StatusServiceUnavailable, "Assistant is not configured")
		return
	}

	var req assistantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	ctx := r.Context()
	tokens, err := s.deps.Repo.GetAllTokens(ctx)
	if err != nil {
		s.logger.Error("Failed to load assistant context", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to process query")
		return
	}
	opps, err := s.deps.Repo.GetActiveOpportunities(ctx)
	if err != nil {
		s.logger.Error("Failed to load assistant context", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to process query")
		return
	}

	reply := s.deps.Assistant.Analyze(ctx, req.Query, assistant.Context{
		Tokens:        tokens,
		Opportunities: opps,
		MarketStats:   statsFor(tokens, opps),
	})
	writeJSON(w, http.StatusOK, reply)
}
