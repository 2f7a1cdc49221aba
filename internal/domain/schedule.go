package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Frequency задаёт периодичность рассылки.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekday Frequency = "weekday"
	FrequencyWeekly  Frequency = "weekly"
)

// ParseFrequency проверяет значение периодичности.
func ParseFrequency(value string) (Frequency, bool) {
	switch f := Frequency(strings.ToLower(strings.TrimSpace(value))); f {
	case FrequencyDaily, FrequencyWeekday, FrequencyWeekly:
		return f, true
	default:
		return "", false
	}
}

const (
	DefaultScheduleTime     = "08:30"
	DefaultScheduleTimezone = "Asia/Shanghai"
)

// PushSchedule хранит расписание рассылки, по одной записи на пользователя.
type PushSchedule struct {
	ID        int64         `json:"id"`
	UserID    int64         `json:"user_id"`
	Time      string        `json:"time"`
	Timezone  string        `json:"timezone"`
	Frequency Frequency     `json:"frequency"`
	Content   ContentConfig `json:"content"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// DefaultSchedule возвращает расписание по умолчанию для пользователя.
func DefaultSchedule(userID int64) PushSchedule {
	return PushSchedule{
		UserID:    userID,
		Time:      DefaultScheduleTime,
		Timezone:  DefaultScheduleTimezone,
		Frequency: FrequencyDaily,
		Content:   ContentConfig{Topics: []string{TopicWeekly, TopicAI}},
	}
}

// Темы дайджеста. weekly и trending обозначают одну секцию.
const (
	TopicWeekly   = "weekly"
	TopicTrending = "trending"
	TopicAI       = "ai"
	TopicPapers   = "papers"
	TopicSkills   = "skills"
)

// ContentConfig задаёт содержимое дайджеста и хранится в content_json расписания.
type ContentConfig struct {
	Topics        []string `json:"topics,omitempty"`
	Keywords      string   `json:"keywords,omitempty"`
	TrendingLimit FlexInt  `json:"trendingLimit,omitempty"`
	AILimit       FlexInt  `json:"aiLimit,omitempty"`
	PapersLimit   FlexInt  `json:"papersLimit,omitempty"`
	SkillsLimit   FlexInt  `json:"skillsLimit,omitempty"`
	SkillsType    string   `json:"skillsType,omitempty"`
	Translate     *bool    `json:"translate,omitempty"`
	SourceURLs    []string `json:"sourceUrls,omitempty"`
}

// ParseContentConfig разбирает content_json. Некорректный JSON даёт пустую конфигурацию.
func ParseContentConfig(raw []byte) ContentConfig {
	var cfg ContentConfig
	if len(raw) == 0 {
		return cfg
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return ContentConfig{}
	}
	return cfg
}

// FlexInt принимает как число, так и числовую строку: форма настроек отправляет значения полей как есть.
type FlexInt int

// UnmarshalJSON реализует json.Unmarshaler.
func (n *FlexInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*n = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = FlexInt(int(v))
	return nil
}
