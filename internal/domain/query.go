package domain

import (
	"math"
	"strings"
)

// TrendingPeriod выбирает срез снимков GitHub Trending.
type TrendingPeriod string

const (
	TrendingPeriodWeekly   TrendingPeriod = "weekly"
	TrendingPeriodLastWeek TrendingPeriod = "lastweek"
	TrendingPeriodMonthly  TrendingPeriod = "monthly"
)

// NormalizeTrendingPeriod сводит неизвестные значения к weekly.
func NormalizeTrendingPeriod(raw string) TrendingPeriod {
	switch p := TrendingPeriod(strings.ToLower(strings.TrimSpace(raw))); p {
	case TrendingPeriodLastWeek, TrendingPeriodMonthly:
		return p
	default:
		return TrendingPeriodWeekly
	}
}

// TrendingQuery фильтрует публичный список репозиториев.
// Language сравнивается точно, Search ищет подстроку в owner, name и description.
type TrendingQuery struct {
	Period   TrendingPeriod
	Language string
	Search   string
	Limit    int
}

// AiItemQuery фильтрует записи лент. Пустой SourceURLs означает все ленты.
type AiItemQuery struct {
	SourceURLs []string
	Search     string
	Limit      int
}

// SkillsQuery фильтрует последний рейтинг skills.sh.
type SkillsQuery struct {
	ListType SkillsListType
	Search   string
	Limit    int
}

// SkillsPage содержит страницу рейтинга и сведения о снимке.
// SnapshotDate пустая, если рейтинг ещё не загружался.
type SkillsPage struct {
	Items        []SkillItem
	ListType     SkillsListType
	SnapshotDate string
	Total        int
}

// PushLogQuery задаёт страницу журнала доставки для администратора.
type PushLogQuery struct {
	Status PushStatus
	Page   int
	Limit  int
}

// Offset возвращает смещение страницы; страницы нумеруются с 1.
func (q PushLogQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// PushLogView дополняет запись журнала данными пользователя и канала.
// Поля пустые, если пользователь или канал уже удалены.
type PushLogView struct {
	PushLog
	UserEmail   string `json:"user_email"`
	UserName    string `json:"user_name"`
	ChannelType string `json:"channel_type"`
	ChannelName string `json:"channel_name"`
}

// PushLogPage содержит страницу журнала и общее число записей под фильтром.
type PushLogPage struct {
	Logs  []PushLogView
	Total int
}

// AdminStats агрегирует счётчики для панели администратора.
type AdminStats struct {
	UserCount    int
	ChannelCount int
	LogCount     int
	SuccessCount int
}

// SuccessRate возвращает долю успешных доставок в процентах, округлённую до целого.
func (s AdminStats) SuccessRate() int {
	if s.LogCount <= 0 {
		return 0
	}
	return int(math.Round(float64(s.SuccessCount) / float64(s.LogCount) * 100))
}
