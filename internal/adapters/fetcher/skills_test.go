package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"agent-radar/internal/domain"
)

const skillsPayload = `0:["$","div",null]
5:{"allTimeSkills":[{"source":"anthropics/skills","skillId":"pdf","name":"pdf","installs":1200},{"source":"acme/tools","skill_id":"web","name":"web search","installs":"800","installsYesterday":null}],"trendingSkills":[{"source":"acme/tools","skillId":"web","name":"web search","installs":800,"installsYesterday":40,"change":12.5}],"trulyTrendingSkills":[],"total":3}`

func skillsPage(t *testing.T) string {
	t.Helper()
	encoded, err := json.Marshal(skillsPayload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	quoted := string(encoded)
	return `<html><script>self.__next_f.push([1,"boot"])</script>` +
		`<script>self.__next_f.push([1,` + quoted + `])</script></html>`
}

func TestParseSkillsPage(t *testing.T) {
	lists, err := ParseSkillsPage(skillsPage(t))
	if err != nil {
		t.Fatalf("ParseSkillsPage: %v", err)
	}

	all := lists[domain.SkillsAllTime]
	if len(all) != 2 {
		t.Fatalf("ожидали 2 навыка, получили %d", len(all))
	}
	if all[0].Rank != 1 || all[1].Rank != 2 {
		t.Fatalf("ranks must start at 1: %+v", all)
	}
	if all[1].SkillID != "web" || all[1].Installs != 800 || all[1].InstallsYesterday != nil {
		t.Fatalf("unexpected second skill: %+v", all[1])
	}
	if all[0].SkillURL() != "https://skills.sh/anthropics/skills/pdf" {
		t.Fatalf("unexpected skill url %q", all[0].SkillURL())
	}

	trending := lists[domain.SkillsTrending]
	if len(trending) != 1 || trending[0].ListType != domain.SkillsTrending {
		t.Fatalf("unexpected trending list: %+v", trending)
	}
	if trending[0].InstallsYesterday == nil || *trending[0].InstallsYesterday != 40 {
		t.Fatalf("installs yesterday not parsed: %+v", trending[0])
	}
	if trending[0].Change == nil || *trending[0].Change != 12.5 {
		t.Fatalf("change not parsed: %+v", trending[0])
	}

	if hot, ok := lists[domain.SkillsHot]; !ok || len(hot) != 0 {
		t.Fatalf("hot list must be present and empty: %+v", hot)
	}
}

func TestParseSkillsPageWithoutPayload(t *testing.T) {
	if _, err := ParseSkillsPage("<html>nothing</html>"); err == nil {
		t.Fatalf("expected error for a page without leaderboard")
	}
}

func TestSkillsFetch(t *testing.T) {
	page := skillsPage(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	lists, err := NewSkillsWithURL(srv.URL, time.Second, zerolog.Nop()).FetchSkills(context.Background())
	if err != nil {
		t.Fatalf("FetchSkills: %v", err)
	}
	if len(lists[domain.SkillsAllTime]) != 2 {
		t.Fatalf("unexpected lists: %+v", lists)
	}
}

func TestSkillsFetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewSkillsWithURL(srv.URL, time.Second, zerolog.Nop()).FetchSkills(context.Background())
	var fe *domain.FetchError
	if !errors.As(err, &fe) || fe.Source != skillsSource {
		t.Fatalf("expected FetchError, got %v", err)
	}
}
