package domain

import (
	"context"
	"time"
)

// TrendingFetcher загружает текущий рейтинг GitHub Trending.
type TrendingFetcher interface {
	FetchTrending(ctx context.Context) ([]TrendingSnapshot, error)
}

// FeedFetcher загружает записи из набора RSS-лент.
type FeedFetcher interface {
	FetchFeeds(ctx context.Context, feeds []FeedSource) ([]AiItem, error)
}

// SkillsFetcher загружает все рейтинги skills.sh за один запрос.
type SkillsFetcher interface {
	FetchSkills(ctx context.Context) (map[SkillsListType][]SkillItem, error)
}

// TextTranslator переводит текст на китайский.
type TextTranslator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// TrendingRepo хранит дневные снимки GitHub Trending.
type TrendingRepo interface {
	// ReplaceTrendingSnapshot удаляет снимок за дату и записывает новый в одной транзакции.
	ReplaceTrendingSnapshot(ctx context.Context, date string, repos []TrendingSnapshot) error
	// LatestTrending возвращает последний снимок по убыванию (stars_delta, stars).
	LatestTrending(ctx context.Context, limit int) ([]TrendingSnapshot, error)
}

// AiItemRepo хранит записи RSS-лент.
type AiItemRepo interface {
	// UpsertAiItems вставляет записи или обновляет существующие по URL.
	UpsertAiItems(ctx context.Context, items []AiItem) (int, error)
	// LatestAiItems возвращает записи по убыванию (published_at, id); при пустом sourceURLs без фильтра.
	LatestAiItems(ctx context.Context, sourceURLs []string, limit int) ([]AiItem, error)
}

// SkillsRepo хранит рейтинги skills.sh.
type SkillsRepo interface {
	ReplaceSkillsSnapshot(ctx context.Context, date string, listType SkillsListType, items []SkillItem) error
	LatestSkills(ctx context.Context, listType SkillsListType, limit int) ([]SkillItem, error)
}

// CatalogRepo отвечает на поисковые запросы публичных списков.
type CatalogRepo interface {
	// SearchTrending для monthly суммирует stars_delta за 30 дней, lastweek берёт предпоследний снимок.
	SearchTrending(ctx context.Context, q TrendingQuery) ([]TrendingSnapshot, error)
	SearchAiItems(ctx context.Context, q AiItemQuery) ([]AiItem, error)
	SearchSkills(ctx context.Context, q SkillsQuery) (SkillsPage, error)
}

// AdminRepo читает сводные данные для панели администратора.
type AdminRepo interface {
	AdminStats(ctx context.Context) (AdminStats, error)
	ListPushLogsPage(ctx context.Context, q PushLogQuery) (PushLogPage, error)
}

// UserRepo управляет пользователями.
type UserRepo interface {
	CreateUser(ctx context.Context, user User) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id int64) (User, error)
	UpdateUserRole(ctx context.Context, id int64, role UserRole) error
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// ChannelRepo управляет каналами доставки.
type ChannelRepo interface {
	ListChannels(ctx context.Context, userID int64) ([]PushChannel, error)
	ListActiveChannels(ctx context.Context, userID int64) ([]PushChannel, error)
	GetChannelByType(ctx context.Context, userID int64, channelType ChannelType) (PushChannel, error)
	CreateChannel(ctx context.Context, channel PushChannel) (PushChannel, error)
	UpdateChannel(ctx context.Context, channel PushChannel) error
}

// ScheduleRepo управляет расписаниями рассылки.
type ScheduleRepo interface {
	GetSchedule(ctx context.Context, userID int64) (PushSchedule, error)
	// CreateSchedule создаёт расписание; при гонке возвращает уже существующее.
	CreateSchedule(ctx context.Context, schedule PushSchedule) (PushSchedule, error)
	UpdateSchedule(ctx context.Context, schedule PushSchedule) error
	ListSchedules(ctx context.Context) ([]PushSchedule, error)
}

// SourceRepo управляет пользовательскими RSS-источниками.
type SourceRepo interface {
	ListSources(ctx context.Context, userID int64) ([]AiSource, error)
	// ListActiveSources возвращает активные источники всех пользователей.
	ListActiveSources(ctx context.Context) ([]AiSource, error)
	CreateSource(ctx context.Context, source AiSource) (AiSource, error)
	SetSourceActive(ctx context.Context, userID, id int64, active bool) error
	DeleteSource(ctx context.Context, userID, id int64) error
}

// PushLogRepo хранит попытки доставки.
type PushLogRepo interface {
	// InsertPushLog записывает попытку. Для непустого SentKey возвращает false,
	// если запись для (user, channel, sent_key) уже есть.
	InsertPushLog(ctx context.Context, entry PushLog) (bool, error)
	PushLogExists(ctx context.Context, userID, channelID int64, sentKey string) (bool, error)
	ListPushLogs(ctx context.Context, userID int64, limit int) ([]PushLog, error)
}

// JobRunRepo хранит метаданные запусков задач.
type JobRunRepo interface {
	// GetJobRun возвращает ErrNotFound, если задача ещё не запускалась.
	GetJobRun(ctx context.Context, name string) (JobRun, error)
	UpsertJobRun(ctx context.Context, run JobRun) error
	ListJobRuns(ctx context.Context) ([]JobRun, error)
}

// RetentionRepo удаляет устаревшие данные.
type RetentionRepo interface {
	DeleteAiItemsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteTrendingBefore(ctx context.Context, cutoffDate string) (int64, error)
	DeleteSkillsBefore(ctx context.Context, cutoffDate string) (int64, error)
	DeletePushLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// TranslationRepo хранит постоянный кэш переводов.
type TranslationRepo interface {
	GetTranslation(ctx context.Context, hash string) (string, bool, error)
	SaveTranslation(ctx context.Context, entry TranslationEntry) error
}

// TokenCache хранит токены доступа внешних API.
type TokenCache interface {
	GetToken(ctx context.Context, key string) (string, bool, error)
	SetToken(ctx context.Context, key, token string, ttl time.Duration) error
}
