package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"agent-radar/internal/domain"
	"agent-radar/internal/infra/metrics"
)

// Translator переводит текст на китайский. При любой ошибке возвращает исходный текст.
type Translator interface {
	TranslateText(ctx context.Context, text string) string
}

// TrendingReader читает последний снимок GitHub Trending.
type TrendingReader interface {
	LatestTrending(ctx context.Context, limit int) ([]domain.TrendingSnapshot, error)
}

// AiItemReader читает свежие записи лент.
type AiItemReader interface {
	LatestAiItems(ctx context.Context, sourceURLs []string, limit int) ([]domain.AiItem, error)
}

// SkillsReader читает рейтинг skills.sh.
type SkillsReader interface {
	LatestSkills(ctx context.Context, listType domain.SkillsListType, limit int) ([]domain.SkillItem, error)
}

// SourceLister возвращает источники пользователя.
type SourceLister interface {
	ListSources(ctx context.Context, userID int64) ([]domain.AiSource, error)
}

// Builder собирает дайджест из последних снимков хранилища.
type Builder struct {
	trending   TrendingReader
	aiItems    AiItemReader
	skills     SkillsReader
	sources    SourceLister
	translator Translator
	translate  bool
	loc        *time.Location
	now        func() time.Time
	log        zerolog.Logger
}

// BuilderOption настраивает Builder.
type BuilderOption func(*Builder)

// WithTranslator включает перевод; enabled задаёт значение по умолчанию для пользователей.
func WithTranslator(t Translator, enabled bool) BuilderOption {
	return func(b *Builder) {
		b.translator = t
		b.translate = enabled
	}
}

// WithLocation задаёт часовой пояс даты в заголовке.
func WithLocation(loc *time.Location) BuilderOption {
	return func(b *Builder) {
		if loc != nil {
			b.loc = loc
		}
	}
}

// NewBuilder создаёт сборщик дайджеста.
func NewBuilder(trending TrendingReader, aiItems AiItemReader, skills SkillsReader, sources SourceLister, logger zerolog.Logger, opts ...BuilderOption) *Builder {
	loc, err := time.LoadLocation(domain.DefaultScheduleTimezone)
	if err != nil {
		loc = time.FixedZone("CST", 8*3600)
	}
	b := &Builder{
		trending: trending,
		aiItems:  aiItems,
		skills:   skills,
		sources:  sources,
		loc:      loc,
		now:      time.Now,
		log:      logger.With().Str("component", "digest").Logger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Summary хранит данные дайджеста вместе с составом секций.
type Summary struct {
	domain.DigestSummary
	Sections   []Section
	SkillsType domain.SkillsListType
}

// BuildDigestSummary возвращает отфильтрованные и ограниченные данные без оформления.
func (b *Builder) BuildDigestSummary(ctx context.Context, opts Options) (Summary, error) {
	sections := opts.Sections()
	enabled := make(map[Section]bool, len(sections))
	for _, s := range sections {
		enabled[s] = true
	}
	keywords := ParseKeywords(opts.Keywords)
	trendingLimit, aiLimit, papersLimit, skillsLimit := opts.limits()
	out := Summary{Sections: sections, SkillsType: domain.NormalizeSkillsListType(opts.SkillsType)}

	if enabled[SectionTrending] {
		repos, err := b.trending.LatestTrending(ctx, max(trendingLimit*4, 50))
		if err != nil {
			return Summary{}, fmt.Errorf("получение trending: %w", err)
		}
		out.Trending = FilterTrending(repos, keywords, trendingLimit)
	}

	if enabled[SectionAI] || enabled[SectionPapers] {
		sourceURLs, err := b.resolveSources(ctx, opts)
		if err != nil {
			return Summary{}, err
		}
		pool := max(aiLimit*4, papersLimit*4, 40)
		items, err := b.aiItems.LatestAiItems(ctx, sourceURLs, pool)
		if err != nil {
			return Summary{}, fmt.Errorf("получение записей лент: %w", err)
		}
		if enabled[SectionAI] {
			out.AiItems = FilterAiItems(items, keywords, aiLimit)
		}
		if enabled[SectionPapers] {
			out.Papers = FilterAiItems(ResearchOnly(items), keywords, papersLimit)
		}
	}

	if enabled[SectionSkills] {
		skills, err := b.skills.LatestSkills(ctx, out.SkillsType, min(max(skillsLimit*4, 50), 200))
		if err != nil {
			return Summary{}, fmt.Errorf("получение рейтинга skills: %w", err)
		}
		out.Skills = FilterSkills(skills, keywords, skillsLimit)
	}

	if b.shouldTranslate(opts) {
		b.translateSummary(ctx, &out.DigestSummary)
	}
	b.log.Debug().
		Int64("user_id", opts.UserID).
		Int("trending", len(out.Trending)).
		Int("ai", len(out.AiItems)).
		Int("papers", len(out.Papers)).
		Int("skills", len(out.Skills)).
		Msg("digest: сводка собрана")
	return out, nil
}

// BuildDigestText собирает текст дайджеста.
func (b *Builder) BuildDigestText(ctx context.Context, opts Options) (string, error) {
	start := time.Now()
	defer func() { metrics.DigestBuildSeconds.Observe(time.Since(start).Seconds()) }()

	summary, err := b.BuildDigestSummary(ctx, opts)
	if err != nil {
		return "", err
	}
	return FormatDigest(summary, b.now().In(b.loc)), nil
}

// resolveSources выбирает ленты: явный список, затем активные источники пользователя,
// затем глобальный набор.
func (b *Builder) resolveSources(ctx context.Context, opts Options) ([]string, error) {
	if len(opts.SourceURLs) > 0 {
		return opts.SourceURLs, nil
	}
	if opts.UserID > 0 && b.sources != nil {
		sources, err := b.sources.ListSources(ctx, opts.UserID)
		if err != nil {
			return nil, fmt.Errorf("получение источников пользователя: %w", err)
		}
		var urls []string
		for _, s := range sources {
			if s.Active && s.URL != "" {
				urls = append(urls, s.URL)
			}
		}
		if len(urls) > 0 {
			return urls, nil
		}
	}
	return domain.DefaultFeedURLs(), nil
}

func (b *Builder) shouldTranslate(opts Options) bool {
	if b.translator == nil {
		return false
	}
	if opts.Translate != nil {
		return *opts.Translate
	}
	return b.translate
}

func (b *Builder) translateSummary(ctx context.Context, s *domain.DigestSummary) {
	for i := range s.Trending {
		s.Trending[i].Description = b.translator.TranslateText(ctx, s.Trending[i].Description)
	}
	for i := range s.AiItems {
		s.AiItems[i].Title = b.translator.TranslateText(ctx, s.AiItems[i].Title)
		s.AiItems[i].Summary = b.translator.TranslateText(ctx, s.AiItems[i].Summary)
	}
	for i := range s.Papers {
		s.Papers[i].Title = b.translator.TranslateText(ctx, s.Papers[i].Title)
	}
}
