package digest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"agent-radar/internal/domain"
)

type stubStore struct {
	trending    []domain.TrendingSnapshot
	aiItems     []domain.AiItem
	skills      []domain.SkillItem
	sources     []domain.AiSource
	trendingErr error

	aiCalls   [][]string
	aiLimit   int
	skillType domain.SkillsListType
}

func (s *stubStore) LatestTrending(_ context.Context, limit int) ([]domain.TrendingSnapshot, error) {
	if s.trendingErr != nil {
		return nil, s.trendingErr
	}
	return s.trending[:min(limit, len(s.trending))], nil
}

func (s *stubStore) LatestAiItems(_ context.Context, sourceURLs []string, limit int) ([]domain.AiItem, error) {
	s.aiCalls = append(s.aiCalls, sourceURLs)
	s.aiLimit = limit
	return s.aiItems[:min(limit, len(s.aiItems))], nil
}

func (s *stubStore) LatestSkills(_ context.Context, listType domain.SkillsListType, limit int) ([]domain.SkillItem, error) {
	s.skillType = listType
	return s.skills[:min(limit, len(s.skills))], nil
}

func (s *stubStore) ListSources(_ context.Context, userID int64) ([]domain.AiSource, error) {
	var out []domain.AiSource
	for _, src := range s.sources {
		if src.UserID == userID {
			out = append(out, src)
		}
	}
	return out, nil
}

type upperTranslator struct {
	calls int
}

func (u *upperTranslator) TranslateText(_ context.Context, text string) string {
	u.calls++
	if text == "" {
		return text
	}
	return "译:" + text
}

func newTestBuilder(store *stubStore, opts ...BuilderOption) *Builder {
	b := NewBuilder(store, store, store, store, zerolog.Nop(), opts...)
	b.now = func() time.Time { return time.Date(2024, 6, 5, 1, 0, 0, 0, time.UTC) }
	return b
}

func mustContain(t *testing.T, text, substr string) {
	t.Helper()
	if !strings.Contains(text, substr) {
		t.Fatalf("expected %q in:\n%s", substr, text)
	}
}

func mustNotContain(t *testing.T, text, substr string) {
	t.Helper()
	if strings.Contains(text, substr) {
		t.Fatalf("unexpected %q in:\n%s", substr, text)
	}
}

func TestBuildDigestTextKeywordFilter(t *testing.T) {
	store := &stubStore{
		trending: []domain.TrendingSnapshot{
			{Owner: "acme", Name: "agentkit", URL: "https://github.com/acme/agentkit", Description: "Agent framework", StarsDelta: 120},
			{Owner: "acme", Name: "imgtool", Description: "Image resizer", StarsDelta: 90},
		},
	}
	text, err := newTestBuilder(store).BuildDigestText(context.Background(), Options{
		Topics:   []string{"weekly"},
		Keywords: "agent",
	})
	if err != nil {
		t.Fatalf("BuildDigestText: %v", err)
	}
	mustContain(t, text, "【AI 机器人周报】2024-06-05")
	mustContain(t, text, "一、GitHub 周度热度")
	mustContain(t, text, "acme/agentkit (+120)")
	mustContain(t, text, "Agent framework")
	mustNotContain(t, text, "imgtool")
	mustContain(t, text, "来源：GitHub Trending")
}

func TestBuildDigestTextEmptySectionsKeepNumbering(t *testing.T) {
	store := &stubStore{}
	text, err := newTestBuilder(store).BuildDigestText(context.Background(), Options{
		Topics: []string{"weekly", "ai", "papers", "skills"},
	})
	if err != nil {
		t.Fatalf("BuildDigestText: %v", err)
	}
	mustContain(t, text, "一、GitHub 周度热度")
	mustContain(t, text, "二、AI 资讯信号")
	mustContain(t, text, "三、论文精选")
	mustContain(t, text, "四、Skills 趋势榜")
	if got := strings.Count(text, emptySectionLine); got != 4 {
		t.Fatalf("expected 4 empty markers, got %d:\n%s", got, text)
	}
}

func TestBuildDigestSummaryPapersFromResearchSources(t *testing.T) {
	store := &stubStore{
		aiItems: []domain.AiItem{
			{Title: "Launch", Source: "OpenAI News", URL: "https://openai.com/a"},
			{Title: "Scaling agents", Source: "arXiv cs.AI", URL: "https://arxiv.org/abs/1"},
			{Title: "Reasoning", Source: "arXiv cs.CL", URL: "https://arxiv.org/abs/2"},
		},
	}
	summary, err := newTestBuilder(store).BuildDigestSummary(context.Background(), Options{
		Topics:      []string{"papers"},
		PapersLimit: 1,
	})
	if err != nil {
		t.Fatalf("BuildDigestSummary: %v", err)
	}
	if len(summary.Papers) != 1 || summary.Papers[0].Title != "Scaling agents" {
		t.Fatalf("unexpected papers: %+v", summary.Papers)
	}
	if len(summary.AiItems) != 0 || len(summary.Trending) != 0 {
		t.Fatalf("disabled sections must stay empty: %+v", summary.DigestSummary)
	}
	if store.aiLimit != 40 {
		t.Fatalf("papers pool = %d, want 40", store.aiLimit)
	}
}

func TestBuildDigestSummarySourceResolution(t *testing.T) {
	store := &stubStore{
		sources: []domain.AiSource{
			{UserID: 7, URL: "https://example.com/a.xml", Active: true},
			{UserID: 7, URL: "https://example.com/b.xml", Active: false},
		},
	}
	b := newTestBuilder(store)
	ctx := context.Background()

	if _, err := b.BuildDigestSummary(ctx, Options{Topics: []string{"ai"}, SourceURLs: []string{"https://x/feed"}, UserID: 7}); err != nil {
		t.Fatalf("explicit: %v", err)
	}
	if _, err := b.BuildDigestSummary(ctx, Options{Topics: []string{"ai"}, UserID: 7}); err != nil {
		t.Fatalf("user sources: %v", err)
	}
	if _, err := b.BuildDigestSummary(ctx, Options{Topics: []string{"ai"}, UserID: 8}); err != nil {
		t.Fatalf("defaults: %v", err)
	}

	if len(store.aiCalls) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(store.aiCalls))
	}
	if got := store.aiCalls[0]; len(got) != 1 || got[0] != "https://x/feed" {
		t.Fatalf("explicit sources ignored: %v", got)
	}
	if got := store.aiCalls[1]; len(got) != 1 || got[0] != "https://example.com/a.xml" {
		t.Fatalf("user sources not used: %v", got)
	}
	if got := store.aiCalls[2]; len(got) != len(domain.DefaultFeeds) {
		t.Fatalf("default feeds not used: %v", got)
	}
}

func TestBuildDigestSummarySkillsType(t *testing.T) {
	store := &stubStore{
		skills: []domain.SkillItem{{Name: "pdf", Source: "anthropics/skills", SkillID: "pdf", Installs: 1500}},
	}
	text, err := newTestBuilder(store).BuildDigestText(context.Background(), Options{
		Topics:     []string{"skills"},
		SkillsType: "hot",
	})
	if err != nil {
		t.Fatalf("BuildDigestText: %v", err)
	}
	if store.skillType != domain.SkillsHot {
		t.Fatalf("skills type = %q", store.skillType)
	}
	mustContain(t, text, "一、Skills 飙升榜")
	mustContain(t, text, "pdf (anthropics/skills) 安装 1.5k")
	mustContain(t, text, "https://skills.sh/anthropics/skills/pdf")
}

func TestBuildDigestSummaryTranslation(t *testing.T) {
	store := &stubStore{
		aiItems: []domain.AiItem{{Title: "Hello", Summary: "World", Source: "OpenAI News"}},
	}
	tr := &upperTranslator{}
	b := newTestBuilder(store, WithTranslator(tr, true))

	summary, err := b.BuildDigestSummary(context.Background(), Options{Topics: []string{"ai"}})
	if err != nil {
		t.Fatalf("BuildDigestSummary: %v", err)
	}
	if summary.AiItems[0].Title != "译:Hello" {
		t.Fatalf("title not translated: %q", summary.AiItems[0].Title)
	}
	if store.aiItems[0].Title != "Hello" {
		t.Fatalf("store rows must not be mutated")
	}

	off := false
	tr.calls = 0
	summary, err = b.BuildDigestSummary(context.Background(), Options{Topics: []string{"ai"}, Translate: &off})
	if err != nil {
		t.Fatalf("BuildDigestSummary: %v", err)
	}
	if tr.calls != 0 || summary.AiItems[0].Title != "Hello" {
		t.Fatalf("translation must be skipped when disabled per user")
	}
}

func TestBuildDigestSummaryPropagatesStoreError(t *testing.T) {
	boom := errors.New("boom")
	store := &stubStore{trendingErr: boom}
	_, err := newTestBuilder(store).BuildDigestSummary(context.Background(), Options{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}
