package digest

import (
	"strings"

	"agent-radar/internal/domain"
)

// Лимиты секций по умолчанию.
const (
	DefaultTrendingLimit = 5
	DefaultAILimit       = 5
	DefaultPapersLimit   = 5
	DefaultSkillsLimit   = 10

	maxSectionLimit = 50
)

// Section задаёт секцию дайджеста.
type Section string

const (
	SectionTrending Section = "trending"
	SectionAI       Section = "ai"
	SectionPapers   Section = "papers"
	SectionSkills   Section = "skills"
)

var sectionOrder = []Section{SectionTrending, SectionAI, SectionPapers, SectionSkills}

// Options описывает состав дайджеста.
type Options struct {
	UserID        int64
	Topics        []string
	Keywords      string
	TrendingLimit int
	AILimit       int
	PapersLimit   int
	SkillsLimit   int
	SkillsType    string
	SourceURLs    []string
	// Translate переопределяет глобальную настройку перевода.
	Translate *bool
}

// OptionsFromContent строит параметры дайджеста из настроек пользователя.
func OptionsFromContent(userID int64, cfg domain.ContentConfig) Options {
	return Options{
		UserID:        userID,
		Topics:        cfg.Topics,
		Keywords:      cfg.Keywords,
		TrendingLimit: int(cfg.TrendingLimit),
		AILimit:       int(cfg.AILimit),
		PapersLimit:   int(cfg.PapersLimit),
		SkillsLimit:   int(cfg.SkillsLimit),
		SkillsType:    cfg.SkillsType,
		SourceURLs:    cfg.SourceURLs,
		Translate:     cfg.Translate,
	}
}

// Sections возвращает включённые секции в фиксированном порядке.
// weekly и trending означают одно и то же; пустой список означает weekly и ai.
func (o Options) Sections() []Section {
	enabled := make(map[Section]bool)
	for _, topic := range o.Topics {
		switch strings.ToLower(strings.TrimSpace(topic)) {
		case domain.TopicWeekly, domain.TopicTrending:
			enabled[SectionTrending] = true
		case domain.TopicAI:
			enabled[SectionAI] = true
		case domain.TopicPapers:
			enabled[SectionPapers] = true
		case domain.TopicSkills:
			enabled[SectionSkills] = true
		}
	}
	if len(enabled) == 0 {
		enabled[SectionTrending] = true
		enabled[SectionAI] = true
	}
	out := make([]Section, 0, len(enabled))
	for _, s := range sectionOrder {
		if enabled[s] {
			out = append(out, s)
		}
	}
	return out
}

func clampLimit(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	if value > maxSectionLimit {
		return maxSectionLimit
	}
	return value
}

func (o Options) limits() (trending, ai, papers, skills int) {
	return clampLimit(o.TrendingLimit, DefaultTrendingLimit),
		clampLimit(o.AILimit, DefaultAILimit),
		clampLimit(o.PapersLimit, DefaultPapersLimit),
		clampLimit(o.SkillsLimit, DefaultSkillsLimit)
}
