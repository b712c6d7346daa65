package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"tierwatch/internal/model"
)

func TestWriteFile(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	opps := []model.TradingOpportunity{
		{
			ID:                     7,
			Symbol:                 "AAA",
			OpportunityType:        model.OpportunityShort,
			RiskLevel:              model.RiskMedium,
			RiskPercentage:         32.25,
			LeverageRecommendation: "5-7x",
			ExpectedReturn:         3.252,
			Confidence:             78.875,
			Analysis: model.Analysis{
				HistoricalSuccessRate: 69.2,
				EntryPoint:            "$102.000000 (on bounce)",
				ExitPoint:             "3.3% profit target",
				StopLoss:              "4.8% stop loss",
			},
			CreatedAt: created,
			ExpiresAt: created.Add(24 * time.Hour),
		},
	}
	stats := model.MarketStats{
		TotalMarketCap:      1000,
		BTCDominance:        60,
		ActiveOpportunities: 1,
		MarketTrend:         "neutral",
		TierDistribution:    map[model.Tier]int{model.TierLarge: 3},
	}

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteFile(path, opps, stats))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{OpportunitySheet, MarketSheet}, f.GetSheetList())

	rows, err := f.GetRows(OpportunitySheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Symbol", rows[0][1])
	assert.Equal(t, []string{
		"7", "AAA", "short", "medium", "32.25", "5-7x", "3.25", "78.88", "69.2",
		"$102.000000 (on bounce)", "3.3% profit target", "4.8% stop loss",
		"2025-03-01T12:00:00Z", "2025-03-02T12:00:00Z",
	}, rows[1])

	market, err := f.GetRows(MarketSheet)
	require.NoError(t, err)
	require.Len(t, market, 6+len(model.Tiers))
	assert.Equal(t, []string{"Market Trend", "neutral"}, market[4])
	assert.Equal(t, []string{"Tier large", "3"}, market[7])
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 78.88, round2(78.875))
	assert.Equal(t, -1.24, round2(-1.236))
	assert.Equal(t, 3.0, round2(3))
}
