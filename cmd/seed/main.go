// Command seed fills the Launchpad database with demo data.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"launchpad/internal/bootstrap"
	"launchpad/internal/config"
	"launchpad/internal/middleware"
	"launchpad/internal/seed"
)

func main() {
	users := flag.Int("users", seed.DefaultUsers, "number of users to create")
	products := flag.Int("products", seed.DefaultProducts, "number of products to create")
	articles := flag.Int("articles", seed.DefaultArticles, "number of articles to create")
	news := flag.Int("news", seed.DefaultNews, "number of news items to create")
	seedValue := flag.Int64("seed", seed.DefaultSeed, "random seed; the same seed yields the same data")
	maxDays := flag.Int("max-days", seed.DefaultMaxDays, "spread timestamps over this many past days")
	clean := flag.Bool("clean", true, "clear all tables before seeding")
	dryRun := flag.Bool("dry-run", false, "generate without writing")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fatal("failed to load configuration", err)
	}
	middleware.InitLogger(cfg.Env, cfg.LogLevel)

	ctx := context.Background()
	db, _, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SkipRedis: true})
	if err != nil {
		fatal("failed to initialize runtime", err)
	}

	if *clean && !*dryRun {
		if err := seed.ClearData(ctx, db); err != nil {
			fatal("cleanup failed", err)
		}
		middleware.Logger.Info("tables cleared")
	}

	s, err := seed.NewSeeder(db, seed.Options{
		Users:    *users,
		Products: *products,
		Articles: *articles,
		News:     *news,
		Seed:     *seedValue,
		MaxDays:  *maxDays,
		DryRun:   *dryRun,
	})
	if err != nil {
		fatal("failed to prepare seeder", err)
	}
	summary, err := s.Run(ctx)
	if err != nil {
		fatal("seeding failed", err)
	}
	if !*dryRun {
		if err := seed.BuiltIns(ctx, db); err != nil {
			fatal("built-in content failed", err)
		}
	}

	middleware.Logger.Info("seed finished",
		slog.Bool("dry_run", *dryRun),
		slog.Int64("seed", *seedValue),
		slog.Any("summary", summary),
		slog.String("password", seed.DefaultPassword),
	)
}

func fatal(msg string, err error) {
	middleware.Logger.Error(msg, slog.String("error", err.Error()))
	os.Exit(1)
}
