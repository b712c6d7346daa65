package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func validToken(symbol string) Token {
	return Token{
		Symbol:    symbol,
		MarketCap: decimal.NewFromInt(1_000),
		Volume24h: decimal.NewFromInt(10),
		Tier:      TierMicro,
	}
}

func TestToken_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Token)
		ok     bool
	}{
		{"valid", func(*Token) {}, true},
		{"zero market cap", func(tk *Token) { tk.MarketCap = decimal.Zero }, true},
		{"empty symbol", func(tk *Token) { tk.Symbol = "" }, false},
		{"negative market cap", func(tk *Token) { tk.MarketCap = decimal.NewFromInt(-1) }, false},
		{"negative volume", func(tk *Token) { tk.Volume24h = decimal.NewFromInt(-1) }, false},
		{"unknown tier", func(tk *Token) { tk.Tier = "giant" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := validToken("AAA")
			tt.mutate(&tk)
			err := tk.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidToken)
			}
		})
	}
}

func TestValidateTokens(t *testing.T) {
	assert.NoError(t, ValidateTokens(nil))
	assert.NoError(t, ValidateTokens([]Token{validToken("A"), validToken("B")}))
	assert.ErrorIs(t, ValidateTokens([]Token{validToken("A"), validToken("A")}), ErrInvalidToken)
}

func TestTier_Valid(t *testing.T) {
	for _, tr := range Tiers {
		assert.True(t, tr.Valid())
	}
	assert.False(t, Tier("").Valid())
}

func TestTradingOpportunity_Active(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	o := TradingOpportunity{IsActive: true, ExpiresAt: now.Add(time.Hour)}
	assert.True(t, o.Active(now))
	assert.False(t, o.Active(now.Add(time.Hour)))

	o.IsActive = false
	assert.False(t, o.Active(now))
}
