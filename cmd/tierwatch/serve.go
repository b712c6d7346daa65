package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"tierwatch/internal/api"
	"tierwatch/internal/assistant"
	"tierwatch/internal/market"
)

func serveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API, websocket push, market refresher and analysis scheduler",
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
			engine := a.newEngine(repo)

			deps := api.Deps{
				Repo:      repo,
				Analyzer:  engine,
				Assistant: assistant.NewExpert(a.logger, a.generator(ctx)),
			}
			if c := a.openCache(ctx); c != nil {
				defer c.Close()
				deps.Cache = c
			}

			var srv *api.Server
			refresher := market.NewRefresher(a.logger, provider, repo, engine, a.cfg.Market.RefreshInterval,
				market.WithAfterRefresh(func(ctx context.Context, _ market.Result) {
					srv.Publish(ctx)
				}),
			)
			deps.Refresher = refresher
			srv = api.NewServer(a.logger, &a.cfg.Server, deps)

			go engine.Start(ctx)
			go refresher.Start(ctx)
			return srv.Start(ctx)
		},
	}
}

// generator returns the configured Gemini generator, or nil for the
// rule-based assistant.
func (a *app) generator(ctx context.Context) assistant.Generator {
	gen, err := assistant.NewGeminiGenerator(ctx, &a.cfg.Assistant)
	if errors.Is(err, assistant.ErrNoGenerator) {
		a.logger.Info("No Gemini API key configured, assistant uses rule-based replies")
		return nil
	}
	if err != nil {
		a.logger.Warn("Gemini unavailable, assistant uses rule-based replies", "error", err)
		return nil
	}
	return gen
}
