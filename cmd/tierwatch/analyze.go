package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"tierwatch/internal/model"
	"tierwatch/internal/tier"
)

func analyzeCmd(a *app) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Detect opportunities in a JSON token snapshot and print them",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(input)
			if err != nil {
				return err
			}
			defer f.Close()

			tokens, err := loadSnapshot(f)
			if err != nil {
				return err
			}
			opps, err := a.newEngine(nil).Analyze(tokens)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(opps)
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "path to a JSON array of tokens")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// loadSnapshot decodes a token array and tags untiered tokens by market cap.
// Missing ids are assigned above the largest explicit id, in file order.
func loadSnapshot(r io.Reader) ([]model.Token, error) {
	var tokens []model.Token
	if err := json.NewDecoder(r).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	var maxID int64
	for _, t := range tokens {
		maxID = max(maxID, t.ID)
	}
	for i := range tokens {
		if tokens[i].ID == 0 {
			maxID++
			tokens[i].ID = maxID
		}
		if tokens[i].Tier != "" {
			continue
		}
		if tokens[i].MarketCap.IsNegative() {
			return nil, fmt.Errorf("%w: %s has negative market cap", model.ErrInvalidToken, tokens[i].Symbol)
		}
		tokens[i].Tier = tier.Classify(tokens[i].MarketCap)
	}
	return tokens, nil
}
