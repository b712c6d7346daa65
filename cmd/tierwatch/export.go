package main

import (
	"github.com/spf13/cobra"

	"tierwatch/internal/report"
	"tierwatch/internal/stats"
)

func exportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write active opportunities and market stats to an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			repo, err := a.openRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			tokens, err := repo.GetAllTokens(ctx)
			if err != nil {
				return err
			}
			opps, err := repo.GetActiveOpportunities(ctx)
			if err != nil {
				return err
			}

			if err := report.WriteFile(out, opps, stats.Compute(tokens, len(opps))); err != nil {
				return err
			}
			a.logger.Info("Report written", "path", out, "opportunities", len(opps))
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "opportunities.xlsx", "output workbook path")
	return cmd
}
