package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tierwatch/internal/cache"
	"tierwatch/internal/config"
	"tierwatch/internal/database"
	"tierwatch/internal/opportunity"
)

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	var configPath string
	a := &app{}

	root := &cobra.Command{
		Use:          "tierwatch",
		Short:        "Tier-relative crypto opportunity scanner",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("cannot load config: %w", err)
			}
			a.cfg = cfg
			a.logger = newLogger(cfg.Log.Level)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", ".", "directory containing config.yaml and .env")

	root.AddCommand(serveCmd(a))
	root.AddCommand(analyzeCmd(a))
	root.AddCommand(refreshCmd(a))
	root.AddCommand(exportCmd(a))
	return root
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func (a *app) openRepository(ctx context.Context) (database.Repository, error) {
	switch a.cfg.Database.Driver {
	case "memory", "":
		a.logger.Info("Using in-memory repository")
		return database.NewMemoryRepository(), nil
	case "postgres":
		repo, err := database.NewPostgresRepository(ctx, a.cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		a.logger.Info("Connected to PostgreSQL", "host", a.cfg.Database.Host, "db", a.cfg.Database.DBName)
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown database driver: %s", a.cfg.Database.Driver)
	}
}

// openCache returns nil when the cache is disabled or unreachable.
func (a *app) openCache(ctx context.Context) *cache.RedisCache {
	if !a.cfg.Redis.Enabled {
		return nil
	}
	c, err := cache.NewRedisCache(ctx, &a.cfg.Redis)
	if err != nil {
		a.logger.Warn("Redis unavailable, continuing without cache", "error", err)
		return nil
	}
	return c
}

func (a *app) newEngine(repo database.Repository) *opportunity.Engine {
	return opportunity.NewEngine(a.logger, repo, &a.cfg.Analysis, opportunity.NewDetector())
}
