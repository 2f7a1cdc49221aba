package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"agent-radar/internal/adapters/fetcher"
	"agent-radar/internal/adapters/repo"
	"agent-radar/internal/infra/config"
	"agent-radar/internal/infra/db"
	applog "agent-radar/internal/infra/log"
	"agent-radar/internal/usecase/jobs"
)

func main() {
	var (
		refreshAll bool
		cleanup    bool
		only       string
	)
	flag.BoolVar(&refreshAll, "refresh-all", false, "Refresh GitHub Trending, RSS feeds and skills.sh")
	flag.StringVar(&only, "only", "", "Refresh a single source: trending, ai or skills")
	flag.BoolVar(&cleanup, "cleanup", false, "Delete rows older than the retention windows")
	flag.Parse()

	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)
	log.Logger = logger

	if !refreshAll && !cleanup && only == "" {
		log.Fatal().Msg("refresh: укажите -refresh-all, -only или -cleanup")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("refresh: нет подключения к БД")
	}
	defer pool.Close()

	store := repo.NewPostgres(pool)
	if err := store.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("refresh: ошибка миграции")
	}

	svc := jobs.NewService(jobs.Deps{
		Runs:            store,
		Trending:        store,
		AiItems:         store,
		Skills:          store,
		Sources:         store,
		Retention:       store,
		TrendingFetcher: fetcher.NewGitHub(cfg.HTTPTimeout, logger),
		FeedFetcher:     fetcher.NewRSS(cfg.HTTPTimeout, 10, logger),
		SkillsFetcher:   fetcher.NewSkills(cfg.HTTPTimeout, logger),
	}, jobs.NewRunner(store, logger), jobs.Retention{
		AIDays:       cfg.Retention.AIDays,
		TrendingDays: cfg.Retention.TrendingDays,
		PushLogDays:  cfg.Retention.PushLogDays,
		SkillsDays:   cfg.Retention.SkillsDays,
	}, logger)

	failed := false
	if refreshAll {
		res, err := svc.RefreshAll(ctx, "cli")
		if err != nil {
			failed = true
			logger.Error().Err(err).Msg("refresh: обновление завершилось с ошибками")
		}
		logger.Info().Int("trending", res.Trending.Count).Int("ai", res.AI.Count).Int("skills", res.Skills.Count).Msg("refresh: обновление выполнено")
	}
	if only != "" {
		var run func(context.Context, string) (jobs.Result, error)
		switch only {
		case "trending":
			run = svc.RefreshTrending
		case "ai":
			run = svc.RefreshAiFeeds
		case "skills":
			run = svc.RefreshSkills
		default:
			log.Fatal().Str("only", only).Msg("refresh: неизвестный источник")
		}
		res, err := run(ctx, "cli")
		if err != nil {
			failed = true
			logger.Error().Err(err).Str("source", only).Msg("refresh: ошибка обновления")
		} else {
			logger.Info().Str("source", only).Int("count", res.Count).Bool("skipped", res.Skipped).Msg("refresh: источник обновлён")
		}
	}
	if cleanup {
		res, err := svc.Cleanup(ctx)
		if err != nil {
			failed = true
			logger.Error().Err(err).Msg("refresh: ошибка очистки")
		} else {
			logger.Info().Int("deleted", res.Count).Msg("refresh: очистка выполнена")
		}
	}
	if failed {
		log.Fatal().Msg("refresh: завершено с ошибками")
	}
}
