package digest

import (
	"strings"
	"unicode"

	"agent-radar/internal/domain"
)

// Категории записей лент.
const (
	CategoryResearch   = "research"
	CategoryOpenSource = "opensource"
	CategoryProduct    = "product"
	CategoryAI         = "ai"
)

// ParseKeywords разбивает строку ключевых слов по запятым (включая полноширинные),
// точкам с запятой и пробелам. Результат в нижнем регистре без повторов.
func ParseKeywords(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		switch r {
		case ',', '，', ';', '；', '、':
			return true
		}
		return unicode.IsSpace(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		kw := strings.ToLower(strings.TrimSpace(f))
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// MatchesKeywords сообщает, содержит ли текст хотя бы одно ключевое слово.
// Пустой список пропускает всё.
func MatchesKeywords(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ClassifyAiItem относит запись к категории по имени источника.
func ClassifyAiItem(source string) string {
	s := strings.ToLower(source)
	switch {
	case containsAny(s, "arxiv", "paper", "research"):
		return CategoryResearch
	case containsAny(s, "hugging", "open source", "github"):
		return CategoryOpenSource
	case containsAny(s, "openai", "anthropic", "product"):
		return CategoryProduct
	default:
		return CategoryAI
	}
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func trendingText(r domain.TrendingSnapshot) string {
	return r.Owner + " " + r.Name + " " + r.Description
}

func aiText(item domain.AiItem) string {
	return item.Title + " " + item.Summary + " " + item.Source
}

func skillText(s domain.SkillItem) string {
	return s.Name + " " + s.SkillID + " " + s.Source
}

// filterLimit оставляет подходящие под ключевые слова элементы, не больше limit.
func filterLimit[T any](items []T, keywords []string, text func(T) string, limit int) []T {
	out := make([]T, 0, min(len(items), limit))
	for _, item := range items {
		if len(out) >= limit {
			break
		}
		if MatchesKeywords(text(item), keywords) {
			out = append(out, item)
		}
	}
	return out
}

// FilterTrending применяет фильтр ключевых слов к репозиториям.
func FilterTrending(items []domain.TrendingSnapshot, keywords []string, limit int) []domain.TrendingSnapshot {
	return filterLimit(items, keywords, trendingText, limit)
}

// FilterAiItems применяет фильтр ключевых слов к записям лент.
func FilterAiItems(items []domain.AiItem, keywords []string, limit int) []domain.AiItem {
	return filterLimit(items, keywords, aiText, limit)
}

// FilterSkills применяет фильтр ключевых слов к навыкам.
func FilterSkills(items []domain.SkillItem, keywords []string, limit int) []domain.SkillItem {
	return filterLimit(items, keywords, skillText, limit)
}

// ResearchOnly оставляет записи исследовательских источников.
func ResearchOnly(items []domain.AiItem) []domain.AiItem {
	var out []domain.AiItem
	for _, item := range items {
		if ClassifyAiItem(item.Source) == CategoryResearch {
			out = append(out, item)
		}
	}
	return out
}
