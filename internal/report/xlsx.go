// Package report exports opportunities and market stats as a spreadsheet.
package report

import (
	"fmt"
	"math"
	"time"

	"github.com/xuri/excelize/v2"

	"tierwatch/internal/model"
)

const (
	OpportunitySheet = "Opportunities"
	MarketSheet      = "Market"
)

var opportunityHeader = []any{
	"ID", "Symbol", "Type", "Risk Level", "Risk %", "Leverage", "Expected Return %",
	"Confidence", "Success Rate %", "Entry", "Exit", "Stop Loss", "Created", "Expires",
}

// Build lays out one row per opportunity plus a market summary sheet.
func Build(opps []model.TradingOpportunity, stats model.MarketStats) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", OpportunitySheet); err != nil {
		return nil, err
	}

	if err := writeRow(f, OpportunitySheet, 1, opportunityHeader); err != nil {
		return nil, err
	}
	for i, o := range opps {
		row := []any{
			o.ID,
			o.Symbol,
			string(o.OpportunityType),
			string(o.RiskLevel),
			round2(o.RiskPercentage),
			o.LeverageRecommendation,
			round2(o.ExpectedReturn),
			round2(o.Confidence),
			round2(o.Analysis.HistoricalSuccessRate),
			o.Analysis.EntryPoint,
			o.Analysis.ExitPoint,
			o.Analysis.StopLoss,
			o.CreatedAt.UTC().Format(time.RFC3339),
			o.ExpiresAt.UTC().Format(time.RFC3339),
		}
		if err := writeRow(f, OpportunitySheet, i+2, row); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(MarketSheet); err != nil {
		return nil, err
	}
	summary := [][]any{
		{"Metric", "Value"},
		{"Total Market Cap", stats.TotalMarketCap},
		{"BTC Dominance %", round2(stats.BTCDominance)},
		{"Active Opportunities", stats.ActiveOpportunities},
		{"Market Trend", stats.MarketTrend},
		{"Volatility Index", round2(stats.VolatilityIndex)},
	}
	for _, t := range model.Tiers {
		summary = append(summary, []any{"Tier " + string(t), stats.TierDistribution[t]})
	}
	for i, row := range summary {
		if err := writeRow(f, MarketSheet, i+1, row); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// WriteFile builds the workbook and saves it to path.
func WriteFile(path string, opps []model.TradingOpportunity, stats model.MarketStats) error {
	f, err := Build(opps, stats)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report %s: %w", path, err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
