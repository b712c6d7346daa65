package main

import (
	"github.com/spf13/cobra"

	"tierwatch/internal/market"
)

func refreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Run one market ingestion and analysis cycle against the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			repo, err := a.openRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			provider, err := market.NewProvider(a.logger, &a.cfg.Market)
			if err != nil {
				return err
			}
			refresher := market.NewRefresher(a.logger, provider, repo, a.newEngine(repo), a.cfg.Market.RefreshInterval)

			res, err := refresher.Refresh(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("refreshed %d cryptocurrencies, %d opportunities\n", res.Tokens, res.Opportunities)
			return nil
		},
	}
}
