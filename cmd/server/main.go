package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"agent-radar/internal/adapters/fetcher"
	"agent-radar/internal/adapters/httpapi"
	"agent-radar/internal/adapters/repo"
	"agent-radar/internal/adapters/sender"
	"agent-radar/internal/adapters/translator"
	"agent-radar/internal/domain"
	"agent-radar/internal/infra/cache"
	"agent-radar/internal/infra/config"
	"agent-radar/internal/infra/db"
	httpinfra "agent-radar/internal/infra/http"
	applog "agent-radar/internal/infra/log"
	"agent-radar/internal/infra/metrics"
	"agent-radar/internal/infra/openai"
	"agent-radar/internal/usecase/channels"
	"agent-radar/internal/usecase/digest"
	"agent-radar/internal/usecase/jobs"
	"agent-radar/internal/usecase/push"
	"agent-radar/internal/usecase/schedule"
	"agent-radar/internal/usecase/users"
)

const (
	feedItemsPerSource = 10
	tickSchedule       = "* * * * *"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)
	log.Logger = logger

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("server: нет подключения к БД")
	}
	defer pool.Close()

	store := repo.NewPostgres(pool)
	if err := store.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("server: ошибка миграции")
	}

	var tokens domain.TokenCache = cache.NewMemory()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		tokens = cache.NewRedis(client)
	}

	runner := jobs.NewRunner(store, logger)
	jobService := jobs.NewService(jobs.Deps{
		Runs:            store,
		Trending:        store,
		AiItems:         store,
		Skills:          store,
		Sources:         store,
		Retention:       store,
		TrendingFetcher: fetcher.NewGitHub(cfg.HTTPTimeout, logger),
		FeedFetcher:     fetcher.NewRSS(cfg.HTTPTimeout, feedItemsPerSource, logger),
		SkillsFetcher:   fetcher.NewSkills(cfg.HTTPTimeout, logger),
	}, runner, jobs.Retention{
		AIDays:       cfg.Retention.AIDays,
		TrendingDays: cfg.Retention.TrendingDays,
		PushLogDays:  cfg.Retention.PushLogDays,
		SkillsDays:   cfg.Retention.SkillsDays,
	}, logger)

	builder := digest.NewBuilder(store, store, store, store, logger,
		digest.WithTranslator(newTranslator(cfg, store, logger), cfg.Translate.Enabled))

	senderOpts := sender.Options{Timeout: cfg.HTTPTimeout, ChunkDelay: cfg.ChunkDelay}
	pushService := push.NewService(builder, jobService, store, store, store, push.Transports{
		WeCom:  sender.NewWeCom(senderOpts, logger),
		Feishu: sender.NewFeishu(senderOpts, logger),
		WeChat: sender.NewWeChat(tokens, senderOpts, logger),
	}, logger)
	ticker := schedule.NewTicker(store, store, store, jobService, pushService, logger)

	api := httpapi.New(httpapi.Deps{
		Users:      users.NewService(store, cfg.AdminEmailList(), logger),
		Settings:   schedule.NewService(store),
		Channels:   channels.NewService(store, store),
		Push:       pushService,
		Jobs:       jobService,
		Data:       store,
		Logs:       store,
		Admin:      store,
		Tokens:     httpinfra.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		AdminToken: cfg.Auth.AdminToken,
		Logger:     logger,
	})
	server := httpinfra.NewServer(logger)
	api.Register(server.Router)

	triggers, err := buildTriggers(cfg, jobService, ticker, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("server: неверное расписание")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	for _, p := range triggers {
		g.Go(func() error {
			p.Start(gctx)
			return nil
		})
	}
	if cfg.MetricsAddr != "" {
		metrics.StartServer(gctx, logger, cfg.MetricsAddr)
	}

	logger.Info().Int("port", cfg.Port).Int("triggers", len(triggers)).Msg("server: запущен")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("server: аварийная остановка")
	}
	logger.Info().Msg("server: остановлен")
}

// buildTriggers создаёт поминутный такт рассылок и периодические обновления источников.
func buildTriggers(cfg config.AppConfig, svc *jobs.Service, ticker *schedule.Ticker, logger zerolog.Logger) ([]*schedule.Periodic, error) {
	logger = applog.Component(logger, "triggers")
	specs := []struct {
		name string
		expr string
		run  func(ctx context.Context) error
	}{
		{"tick", tickSchedule, func(ctx context.Context) error {
			ticker.Tick(ctx, time.Now())
			return nil
		}},
		{domain.JobGitHubTrending, cfg.Cron.Trending, func(ctx context.Context) error {
			_, err := svc.RefreshTrending(ctx, "cron")
			return err
		}},
		{domain.JobAiFeeds, cfg.Cron.AI, func(ctx context.Context) error {
			_, err := svc.RefreshAiFeeds(ctx, "cron")
			return err
		}},
		{domain.JobSkillsLeaderboard, cfg.Cron.Skills, func(ctx context.Context) error {
			_, err := svc.RefreshSkills(ctx, "cron")
			return err
		}},
		{domain.JobCleanup, cfg.Cron.Cleanup, func(ctx context.Context) error {
			_, err := svc.Cleanup(ctx)
			return err
		}},
	}
	out := make([]*schedule.Periodic, 0, len(specs))
	for _, s := range specs {
		sched, err := schedule.ParseSchedule(s.expr)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		out = append(out, &schedule.Periodic{Name: s.name, Schedule: sched, Run: s.run, Log: logger})
	}
	return out, nil
}

// newTranslator выбирает провайдера перевода; openai без ключа откатывается на LibreTranslate.
func newTranslator(cfg config.AppConfig, store domain.TranslationRepo, logger zerolog.Logger) *translator.Cached {
	var provider domain.TextTranslator = translator.NewLibre(cfg.Translate.Endpoint, cfg.Translate.APIKey, cfg.Translate.Timeout)
	if cfg.Translate.Provider == "openai" {
		if cfg.OpenAI.APIKey == "" {
			logger.Warn().Msg("server: OPENAI_API_KEY не задан, перевод через LibreTranslate")
		} else {
			client := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.Translate.Timeout)
			provider = translator.NewOpenAI(client, cfg.OpenAI.Model)
		}
	}
	return translator.NewCached(provider, store, cfg.Translate.Timeout, logger)
}
