package digest

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"agent-radar/internal/domain"
)

const (
	digestTitle      = "【AI 机器人周报】"
	emptySectionLine = "暂无匹配内容"
	summaryMaxRunes  = 120
)

var sectionNumerals = []string{"一", "二", "三", "四", "五", "六"}

var skillsLabels = map[domain.SkillsListType]string{
	domain.SkillsTrending: "趋势榜",
	domain.SkillsHot:      "飙升榜",
	domain.SkillsAllTime:  "总榜",
}

// FormatDigest оформляет дайджест в markdown-подобный текст с нумерованными секциями.
// Пустая секция не пропускается, чтобы нумерация не зависела от фильтра.
func FormatDigest(s Summary, now time.Time) string {
	var b strings.Builder
	b.WriteString(digestTitle + now.Format(time.DateOnly) + "\n")

	sources := make([]string, 0, 3)
	for i, section := range s.Sections {
		b.WriteString("\n")
		numeral := sectionNumerals[i%len(sectionNumerals)]
		switch section {
		case SectionTrending:
			fmt.Fprintf(&b, "%s、GitHub 周度热度\n", numeral)
			writeTrending(&b, s.Trending)
			sources = appendOnce(sources, "GitHub Trending")
		case SectionAI:
			fmt.Fprintf(&b, "%s、AI 资讯信号\n", numeral)
			writeAiItems(&b, s.AiItems, true)
			sources = appendOnce(sources, "AI RSS 聚合")
		case SectionPapers:
			fmt.Fprintf(&b, "%s、论文精选\n", numeral)
			writeAiItems(&b, s.Papers, false)
			sources = appendOnce(sources, "AI RSS 聚合")
		case SectionSkills:
			fmt.Fprintf(&b, "%s、Skills %s\n", numeral, skillsLabels[s.SkillsType])
			writeSkills(&b, s.Skills)
			sources = appendOnce(sources, "skills.sh")
		}
	}
	b.WriteString("\n来源：" + strings.Join(sources, " + "))
	return b.String()
}

func writeTrending(b *strings.Builder, repos []domain.TrendingSnapshot) {
	if len(repos) == 0 {
		b.WriteString(emptySectionLine + "\n")
		return
	}
	for i, r := range repos {
		line := fmt.Sprintf("%d. %s (+%d) %s", i+1, r.FullName(), r.StarsDelta, r.Language)
		b.WriteString(strings.TrimSpace(line) + "\n")
		if desc := truncateRunes(strings.TrimSpace(r.Description), summaryMaxRunes); desc != "" {
			b.WriteString("   " + desc + "\n")
		}
		if r.URL != "" {
			b.WriteString("   " + r.URL + "\n")
		}
	}
}

func writeAiItems(b *strings.Builder, items []domain.AiItem, withSummary bool) {
	if len(items) == 0 {
		b.WriteString(emptySectionLine + "\n")
		return
	}
	for i, item := range items {
		fmt.Fprintf(b, "%d. %s (%s)\n", i+1, strings.TrimSpace(item.Title), item.Source)
		if withSummary {
			if summary := truncateRunes(strings.TrimSpace(item.Summary), summaryMaxRunes); summary != "" {
				b.WriteString("   " + summary + "\n")
			}
		}
		if item.URL != "" {
			b.WriteString("   " + item.URL + "\n")
		}
	}
}

func writeSkills(b *strings.Builder, skills []domain.SkillItem) {
	if len(skills) == 0 {
		b.WriteString(emptySectionLine + "\n")
		return
	}
	for i, s := range skills {
		line := fmt.Sprintf("%d. %s", i+1, s.Name)
		if s.Source != "" {
			line += " (" + s.Source + ")"
		}
		line += " 安装 " + formatCount(s.Installs)
		b.WriteString(line + "\n")
		if u := s.SkillURL(); u != "" {
			b.WriteString("   " + u + "\n")
		}
	}
}

func formatCount(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fm", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "…"
}

func appendOnce(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
