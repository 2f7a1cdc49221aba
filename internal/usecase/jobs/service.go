package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"agent-radar/internal/domain"
)

// Пороги актуальности по умолчанию, в минутах.
const (
	DefaultTrendingStaleMinutes = 360
	DefaultAiStaleMinutes       = 60
	DefaultSkillsStaleMinutes   = 360
)

// Retention задаёт срок хранения данных в днях.
type Retention struct {
	AIDays       int
	TrendingDays int
	PushLogDays  int
	SkillsDays   int
}

// Нижние границы сроков хранения. Значения по умолчанию задаются в конфигурации.
const (
	minAIDays       = 7
	minTrendingDays = 14
	minPushLogDays  = 7
	minSkillsDays   = 7
)

// ClampRetention не даёт сроку хранения опуститься ниже floor, в том числе для нуля и отрицательных days.
func ClampRetention(days, floor int) int {
	return max(days, floor)
}

// Effective возвращает сроки хранения с учётом нижних границ.
func (r Retention) Effective() Retention {
	return Retention{
		AIDays:       ClampRetention(r.AIDays, minAIDays),
		TrendingDays: ClampRetention(r.TrendingDays, minTrendingDays),
		PushLogDays:  ClampRetention(r.PushLogDays, minPushLogDays),
		SkillsDays:   ClampRetention(r.SkillsDays, minSkillsDays),
	}
}

// Deps собирает зависимости сервиса обновления данных.
type Deps struct {
	Runs      domain.JobRunRepo
	Trending  domain.TrendingRepo
	AiItems   domain.AiItemRepo
	Skills    domain.SkillsRepo
	Sources   domain.SourceRepo
	Retention domain.RetentionRepo

	TrendingFetcher domain.TrendingFetcher
	FeedFetcher     domain.FeedFetcher
	SkillsFetcher   domain.SkillsFetcher
}

// Service обновляет данные источников и чистит устаревшие записи через Runner.
type Service struct {
	deps      Deps
	runner    *Runner
	retention Retention
	log       zerolog.Logger
	now       func() time.Time
}

// NewService создаёт сервис.
func NewService(deps Deps, runner *Runner, retention Retention, logger zerolog.Logger) *Service {
	return &Service{
		deps:      deps,
		runner:    runner,
		retention: retention.Effective(),
		log:       logger.With().Str("component", "jobs").Logger(),
		now:       time.Now,
	}
}

// Runner возвращает общий исполнитель задач.
func (s *Service) Runner() *Runner {
	return s.runner
}

// RefreshTrending загружает GitHub Trending и заменяет снимок за сегодня.
func (s *Service) RefreshTrending(ctx context.Context, reason string) (Result, error) {
	return s.runner.Run(ctx, domain.JobGitHubTrending, func(ctx context.Context) (any, error) {
		repos, err := s.deps.TrendingFetcher.FetchTrending(ctx)
		if err != nil {
			return nil, err
		}
		date := s.now().UTC().Format(time.DateOnly)
		for i := range repos {
			repos[i].SnapshotDate = date
		}
		if err := s.deps.Trending.ReplaceTrendingSnapshot(ctx, date, repos); err != nil {
			return nil, fmt.Errorf("сохранение снимка trending: %w", err)
		}
		return repos, nil
	}, Options{Reason: reason})
}

// RefreshAiFeeds загружает глобальные ленты и активные ленты пользователей.
func (s *Service) RefreshAiFeeds(ctx context.Context, reason string) (Result, error) {
	return s.runner.Run(ctx, domain.JobAiFeeds, func(ctx context.Context) (any, error) {
		feeds, err := s.feedsForAllUsers(ctx)
		if err != nil {
			return nil, err
		}
		items, err := s.deps.FeedFetcher.FetchFeeds(ctx, feeds)
		if err != nil {
			return nil, err
		}
		saved, err := s.deps.AiItems.UpsertAiItems(ctx, items)
		if err != nil {
			return nil, fmt.Errorf("сохранение записей лент: %w", err)
		}
		return saved, nil
	}, Options{Reason: reason})
}

func (s *Service) feedsForAllUsers(ctx context.Context) ([]domain.FeedSource, error) {
	feeds := append([]domain.FeedSource(nil), domain.DefaultFeeds...)
	seen := make(map[string]struct{}, len(feeds))
	for _, f := range feeds {
		seen[f.URL] = struct{}{}
	}
	sources, err := s.deps.Sources.ListActiveSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение источников: %w", err)
	}
	for _, src := range sources {
		if _, ok := seen[src.URL]; ok || src.URL == "" {
			continue
		}
		seen[src.URL] = struct{}{}
		feeds = append(feeds, domain.FeedSource{Name: src.Name, URL: src.URL})
	}
	return feeds, nil
}

// RefreshSkills загружает рейтинги skills.sh и заменяет сегодняшние снимки.
func (s *Service) RefreshSkills(ctx context.Context, reason string) (Result, error) {
	return s.runner.Run(ctx, domain.JobSkillsLeaderboard, func(ctx context.Context) (any, error) {
		lists, err := s.deps.SkillsFetcher.FetchSkills(ctx)
		if err != nil {
			return nil, err
		}
		date := s.now().UTC().Format(time.DateOnly)
		counts := make(map[string]int, len(lists))
		for _, listType := range domain.SkillsListTypes {
			items, ok := lists[listType]
			if !ok {
				continue
			}
			if err := s.deps.Skills.ReplaceSkillsSnapshot(ctx, date, listType, items); err != nil {
				return nil, fmt.Errorf("сохранение рейтинга %s: %w", listType, err)
			}
			counts[string(listType)] = len(items)
		}
		return counts, nil
	}, Options{Reason: reason})
}

func (s *Service) refreshIfStale(ctx context.Context, name string, minMinutes int, refresh func(context.Context, string) (Result, error)) (Result, error) {
	run, err := s.deps.Runs.GetJobRun(ctx, name)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.log.Warn().Err(err).Str("job", name).Msg("jobs: не удалось получить состояние задачи, считаем данные устаревшими")
	}
	if err == nil && !IsStale(run.LastRunAt, minMinutes, s.now()) {
		return Result{Skipped: true, Reason: ReasonFresh, LastRunAt: run.LastRunAt}, nil
	}
	return refresh(ctx, "stale")
}

// RefreshTrendingIfStale обновляет trending, только если данные старше minMinutes.
func (s *Service) RefreshTrendingIfStale(ctx context.Context, minMinutes int) (Result, error) {
	if minMinutes <= 0 {
		minMinutes = DefaultTrendingStaleMinutes
	}
	return s.refreshIfStale(ctx, domain.JobGitHubTrending, minMinutes, s.RefreshTrending)
}

// RefreshAiFeedsIfStale обновляет ленты, только если данные старше minMinutes.
func (s *Service) RefreshAiFeedsIfStale(ctx context.Context, minMinutes int) (Result, error) {
	if minMinutes <= 0 {
		minMinutes = DefaultAiStaleMinutes
	}
	return s.refreshIfStale(ctx, domain.JobAiFeeds, minMinutes, s.RefreshAiFeeds)
}

// RefreshSkillsIfStale обновляет рейтинги skills.sh, только если данные старше minMinutes.
func (s *Service) RefreshSkillsIfStale(ctx context.Context, minMinutes int) (Result, error) {
	if minMinutes <= 0 {
		minMinutes = DefaultSkillsStaleMinutes
	}
	return s.refreshIfStale(ctx, domain.JobSkillsLeaderboard, minMinutes, s.RefreshSkills)
}

// RefreshAllResult содержит итоги безусловного обновления всех источников.
type RefreshAllResult struct {
	Trending Result `json:"trending"`
	AI       Result `json:"ai"`
	Skills   Result `json:"skills"`
}

// RefreshAll последовательно обновляет все источники. Ошибка одного не мешает остальным;
// все ошибки возвращаются вместе.
func (s *Service) RefreshAll(ctx context.Context, reason string) (RefreshAllResult, error) {
	var (
		out  RefreshAllResult
		errs []error
	)
	var err error
	if out.Trending, err = s.RefreshTrending(ctx, reason); err != nil {
		errs = append(errs, err)
	}
	if out.AI, err = s.RefreshAiFeeds(ctx, reason); err != nil {
		errs = append(errs, err)
	}
	if out.Skills, err = s.RefreshSkills(ctx, reason); err != nil {
		errs = append(errs, err)
	}
	return out, errors.Join(errs...)
}

// CleanupResult хранит количество удалённых записей по сущностям.
type CleanupResult struct {
	AI       int64 `json:"ai"`
	Trending int64 `json:"trending"`
	Skills   int64 `json:"skills"`
	Logs     int64 `json:"logs"`
}

// Count реализует Counter.
func (c CleanupResult) Count() int {
	return int(c.AI + c.Trending + c.Skills + c.Logs)
}

func (c CleanupResult) String() string {
	return fmt.Sprintf("ai:%d, trending:%d, skills:%d, logs:%d", c.AI, c.Trending, c.Skills, c.Logs)
}

// Cleanup удаляет данные старше сроков хранения.
func (s *Service) Cleanup(ctx context.Context) (Result, error) {
	ret := s.retention
	return s.runner.Run(ctx, domain.JobCleanup, func(ctx context.Context) (any, error) {
		now := s.now().UTC()
		var (
			res CleanupResult
			err error
		)
		if res.AI, err = s.deps.Retention.DeleteAiItemsBefore(ctx, now.AddDate(0, 0, -ret.AIDays)); err != nil {
			return nil, fmt.Errorf("очистка ai_items: %w", err)
		}
		if res.Trending, err = s.deps.Retention.DeleteTrendingBefore(ctx, now.AddDate(0, 0, -ret.TrendingDays).Format(time.DateOnly)); err != nil {
			return nil, fmt.Errorf("очистка trending: %w", err)
		}
		if res.Skills, err = s.deps.Retention.DeleteSkillsBefore(ctx, now.AddDate(0, 0, -ret.SkillsDays).Format(time.DateOnly)); err != nil {
			return nil, fmt.Errorf("очистка skills: %w", err)
		}
		if res.Logs, err = s.deps.Retention.DeletePushLogsBefore(ctx, now.AddDate(0, 0, -ret.PushLogDays)); err != nil {
			return nil, fmt.Errorf("очистка push_logs: %w", err)
		}
		return res, nil
	}, Options{MessageFunc: func(result any) string {
		if res, ok := result.(CleanupResult); ok {
			return res.String()
		}
		return ""
	}})
}

// Status возвращает состояние всех задач.
func (s *Service) Status(ctx context.Context) ([]domain.JobRun, error) {
	return s.deps.Runs.ListJobRuns(ctx)
}
