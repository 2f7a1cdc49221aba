package domain

// Имена фоновых задач, они же ключи в data_jobs.
const (
	JobGitHubTrending    = "github_trending"
	JobAiFeeds           = "ai_feeds"
	JobSkillsLeaderboard = "skills_leaderboard"
	JobCleanup           = "cleanup"
)

// DigestSummary содержит отфильтрованные данные дайджеста без текстового оформления.
type DigestSummary struct {
	Trending []TrendingSnapshot `json:"trending"`
	AiItems  []AiItem           `json:"ai_items"`
	Papers   []AiItem           `json:"papers"`
	Skills   []SkillItem        `json:"skills"`
}
