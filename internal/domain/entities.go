package domain

import (
	"fmt"
	"strings"
	"time"
)

// TrendingSnapshot описывает репозиторий из снимка GitHub Trending за день.
type TrendingSnapshot struct {
	ID           int64     `json:"id"`
	Owner        string    `json:"owner"`
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	Description  string    `json:"description"`
	Language     string    `json:"language"`
	Stars        int       `json:"stars"`
	Forks        int       `json:"forks"`
	StarsDelta   int       `json:"stars_delta"`
	SnapshotDate string    `json:"snapshot_date"`
	CreatedAt    time.Time `json:"created_at"`
}

// FullName возвращает owner/name.
func (r TrendingSnapshot) FullName() string {
	return r.Owner + "/" + r.Name
}

// AiItem представляет запись из RSS-ленты. Уникальна по URL.
type AiItem struct {
	ID          int64      `json:"id"`
	Source      string     `json:"source"`
	SourceURL   string     `json:"source_url"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Summary     string     `json:"summary"`
	PublishedAt *time.Time `json:"published_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// SkillsListType задаёт вид рейтинга skills.sh.
type SkillsListType string

const (
	SkillsTrending SkillsListType = "trending"
	SkillsHot      SkillsListType = "hot"
	SkillsAllTime  SkillsListType = "all_time"
)

// SkillsListTypes перечисляет все поддерживаемые рейтинги.
var SkillsListTypes = []SkillsListType{SkillsAllTime, SkillsTrending, SkillsHot}

// NormalizeSkillsListType приводит значение к известному рейтингу, по умолчанию trending.
func NormalizeSkillsListType(value string) SkillsListType {
	switch SkillsListType(strings.ToLower(strings.TrimSpace(value))) {
	case SkillsHot:
		return SkillsHot
	case SkillsAllTime:
		return SkillsAllTime
	default:
		return SkillsTrending
	}
}

// SkillItem описывает позицию в рейтинге skills.sh.
type SkillItem struct {
	ID                int64          `json:"id"`
	ListType          SkillsListType `json:"list_type"`
	Rank              int            `json:"rank"`
	Source            string         `json:"source"`
	SkillID           string         `json:"skill_id"`
	Name              string         `json:"name"`
	Installs          int64          `json:"installs"`
	InstallsYesterday *int64         `json:"installs_yesterday"`
	Change            *float64       `json:"change"`
	SnapshotDate      string         `json:"snapshot_date"`
}

// SkillURL возвращает ссылку на страницу навыка или пустую строку.
func (s SkillItem) SkillURL() string {
	if s.Source == "" || s.SkillID == "" {
		return ""
	}
	return fmt.Sprintf("https://skills.sh/%s/%s", s.Source, s.SkillID)
}

// RepoURL возвращает ссылку на репозиторий источника.
func (s SkillItem) RepoURL() string {
	if s.Source == "" {
		return ""
	}
	return "https://github.com/" + s.Source
}

// PushStatus задаёт результат попытки доставки.
type PushStatus string

const (
	PushStatusSuccess PushStatus = "success"
	PushStatusFailed  PushStatus = "failed"
	PushStatusManual  PushStatus = "manual"
)

// PushLog фиксирует одну попытку доставки в канал.
// SentKey связывает попытку с конкретным слотом расписания пользователя.
type PushLog struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	ChannelID int64      `json:"channel_id"`
	Status    PushStatus `json:"status"`
	Detail    string     `json:"detail"`
	SentKey   string     `json:"sent_key,omitempty"`
	SentAt    time.Time  `json:"sent_at"`
}

// JobRun хранит метаданные последнего запуска именованной задачи.
type JobRun struct {
	Name        string     `json:"name"`
	LastRunAt   *time.Time `json:"last_run_at"`
	LastStatus  string     `json:"last_status"`
	LastMessage string     `json:"last_message"`
	LastCount   int        `json:"last_count"`
}

const (
	JobStatusSuccess = "success"
	JobStatusFailed  = "failed"
)

// TranslationEntry хранит запись кэша переводов с ключом sha1 исходного текста.
type TranslationEntry struct {
	Hash       string
	SourceText string
	TargetText string
}
