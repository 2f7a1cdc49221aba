package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"agent-radar/internal/domain"
	"agent-radar/internal/infra/metrics"
)

const (
	skillsURL    = "https://skills.sh/trending"
	skillsSource = "skills.sh"

	flightPrefix = `self.__next_f.push([1,"`
	skillsMarker = "allTimeSkills"
)

var skillsLists = []struct {
	key      string
	listType domain.SkillsListType
}{
	{key: "allTimeSkills", listType: domain.SkillsAllTime},
	{key: "trendingSkills", listType: domain.SkillsTrending},
	{key: "trulyTrendingSkills", listType: domain.SkillsHot},
}

// Skills извлекает рейтинги skills.sh из flight-payload страницы Next.js.
type Skills struct {
	http *resty.Client
	url  string
	log  zerolog.Logger
}

var _ domain.SkillsFetcher = (*Skills)(nil)

// NewSkills создаёт загрузчик skills.sh.
func NewSkills(timeout time.Duration, logger zerolog.Logger) *Skills {
	return NewSkillsWithURL(skillsURL, timeout, logger)
}

// NewSkillsWithURL создаёт загрузчик с другим адресом страницы.
func NewSkillsWithURL(url string, timeout time.Duration, logger zerolog.Logger) *Skills {
	return &Skills{
		http: newRestyClient(timeout),
		url:  url,
		log:  logger.With().Str("component", "fetcher.skills").Logger(),
	}
}

// FetchSkills загружает страницу и возвращает все три рейтинга.
func (s *Skills) FetchSkills(ctx context.Context) (map[domain.SkillsListType][]domain.SkillItem, error) {
	start := time.Now()
	resp, err := s.http.R().SetContext(ctx).Get(s.url)
	if err == nil && resp.IsError() {
		err = fmt.Errorf("unexpected status %d", resp.StatusCode())
	}
	if err != nil {
		metrics.ObserveNetworkRequest("fetcher", "skills", skillsSource, start, err)
		return nil, &domain.FetchError{Source: skillsSource, Err: err}
	}

	lists, err := ParseSkillsPage(resp.String())
	metrics.ObserveNetworkRequest("fetcher", "skills", skillsSource, start, err)
	if err != nil {
		return nil, &domain.FetchError{Source: skillsSource, Err: err}
	}
	s.log.Debug().
		Int("all_time", len(lists[domain.SkillsAllTime])).
		Int("trending", len(lists[domain.SkillsTrending])).
		Int("hot", len(lists[domain.SkillsHot])).
		Msg("skills: рейтинги разобраны")
	return lists, nil
}

type rawSkill struct {
	Source            string      `json:"source"`
	SkillID           string      `json:"skillId"`
	SkillIDSnake      string      `json:"skill_id"`
	Name              string      `json:"name"`
	Installs          flexNumber  `json:"installs"`
	InstallsYesterday *flexNumber `json:"installsYesterday"`
	Change            *flexNumber `json:"change"`
}

// flexNumber принимает число, числовую строку или null.
type flexNumber struct {
	value float64
	valid bool
}

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*n = flexNumber{}
		return nil
	}
	s := strings.Trim(string(data), `"`)
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) {
		*n = flexNumber{}
		return nil
	}
	*n = flexNumber{value: f, valid: true}
	return nil
}

// ParseSkillsPage извлекает рейтинги из HTML страницы skills.sh.
// Ранги назначаются по порядку, начиная с 1.
func ParseSkillsPage(html string) (map[domain.SkillsListType][]domain.SkillItem, error) {
	payload, err := extractFlightPayload(html)
	if err != nil {
		return nil, err
	}
	idx := strings.Index(payload, `{"`+skillsMarker+`"`)
	if idx == -1 {
		return nil, errors.New("skills.sh 榜单数据未找到")
	}
	object := extractJSONObject(payload, idx)
	if object == "" {
		return nil, errors.New("skills.sh 榜单解析失败")
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal([]byte(object), &data); err != nil {
		return nil, fmt.Errorf("skills.sh 榜单解析失败: %w", err)
	}

	out := make(map[domain.SkillsListType][]domain.SkillItem, len(skillsLists))
	for _, list := range skillsLists {
		var raw []rawSkill
		if blob, ok := data[list.key]; ok {
			if err := json.Unmarshal(blob, &raw); err != nil {
				raw = nil
			}
		}
		items := make([]domain.SkillItem, 0, len(raw))
		for i, r := range raw {
			items = append(items, r.toItem(list.listType, i+1))
		}
		out[list.listType] = items
	}
	return out, nil
}

func (r rawSkill) toItem(listType domain.SkillsListType, rank int) domain.SkillItem {
	item := domain.SkillItem{
		ListType: listType,
		Rank:     rank,
		Source:   r.Source,
		SkillID:  r.SkillID,
		Name:     r.Name,
	}
	if item.SkillID == "" {
		item.SkillID = r.SkillIDSnake
	}
	if r.Installs.valid {
		item.Installs = int64(r.Installs.value)
	}
	if r.InstallsYesterday != nil && r.InstallsYesterday.valid {
		v := int64(r.InstallsYesterday.value)
		item.InstallsYesterday = &v
	}
	if r.Change != nil && r.Change.valid {
		v := r.Change.value
		item.Change = &v
	}
	return item
}

// extractFlightPayload находит строковый аргумент self.__next_f.push, содержащий рейтинги,
// и возвращает его раскодированным.
func extractFlightPayload(html string) (string, error) {
	markerIdx := strings.Index(html, skillsMarker)
	if markerIdx == -1 {
		return "", errors.New("skills.sh 数据结构未匹配")
	}
	start := strings.LastIndex(html[:markerIdx], flightPrefix)
	if start == -1 {
		return "", errors.New("skills.sh 数据片段缺失")
	}
	i := start + len(flightPrefix)
	escaped := false
	end := -1
	for j := i; j < len(html); j++ {
		switch {
		case escaped:
			escaped = false
		case html[j] == '\\':
			escaped = true
		case html[j] == '"':
			end = j
		}
		if end != -1 {
			break
		}
	}
	if end == -1 || end == i {
		return "", errors.New("skills.sh 数据为空")
	}
	var payload string
	if err := json.Unmarshal([]byte(`"`+html[i:end]+`"`), &payload); err != nil {
		return "", fmt.Errorf("skills.sh 数据解码失败: %w", err)
	}
	return payload, nil
}

// extractJSONObject возвращает сбалансированный JSON-объект, начиная с позиции from.
func extractJSONObject(text string, from int) string {
	depth := 0
	inString := false
	escaped := false
	start := -1
	for i := from; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start != -1 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
