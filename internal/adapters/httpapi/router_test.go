package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"agent-radar/internal/domain"
	httpinfra "agent-radar/internal/infra/http"
	"agent-radar/internal/usecase/channels"
	"agent-radar/internal/usecase/digest"
	"agent-radar/internal/usecase/jobs"
	"agent-radar/internal/usecase/push"
	"agent-radar/internal/usecase/schedule"
	"agent-radar/internal/usecase/users"
)

type stubUsers struct {
	users    map[string]domain.User
	password string
}

func (s *stubUsers) Register(_ context.Context, email, password, name string) (domain.User, error) {
	if _, ok := s.users[email]; ok {
		return domain.User{}, domain.ErrEmailTaken
	}
	if len(password) < 6 {
		return domain.User{}, users.ErrWeakPassword
	}
	u := domain.User{ID: int64(len(s.users) + 1), Email: email, Name: name, Role: domain.UserRoleUser}
	s.users[email] = u
	s.password = password
	return u, nil
}

func (s *stubUsers) Login(_ context.Context, email, password string) (domain.User, error) {
	u, ok := s.users[email]
	if !ok || password != s.password {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return u, nil
}

func (s *stubUsers) Get(_ context.Context, id int64) (domain.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (s *stubUsers) List(context.Context) ([]domain.User, error) { return nil, nil }

func (s *stubUsers) SetRole(_ context.Context, actorID, id int64, _ domain.UserRole) error {
	if actorID == id {
		return users.ErrSelfRoleChange
	}
	return nil
}

func (s *stubUsers) Delete(context.Context, int64, int64) error { return nil }

type stubSettings struct {
	sched domain.PushSchedule
}

func (s *stubSettings) GetOrCreate(_ context.Context, userID int64) (domain.PushSchedule, error) {
	out := s.sched
	out.UserID = userID
	return out, nil
}

func (s *stubSettings) Update(_ context.Context, userID int64, in schedule.UpdateInput) (domain.PushSchedule, error) {
	if in.Timezone == "Mars/Base" {
		return domain.PushSchedule{}, schedule.ErrInvalidTimezone
	}
	s.sched = domain.PushSchedule{UserID: userID, Time: in.Time, Timezone: in.Timezone, Frequency: domain.Frequency(in.Frequency), Content: in.Content}
	return s.sched, nil
}

type stubChannels struct {
	upserted []string
}

func (s *stubChannels) ListChannels(context.Context, int64) ([]domain.PushChannel, error) {
	return nil, nil
}

func (s *stubChannels) UpsertChannel(_ context.Context, userID int64, rawType string, in channels.ChannelInput) (domain.PushChannel, error) {
	t, err := domain.ParseChannelType(rawType)
	if err != nil {
		return domain.PushChannel{}, err
	}
	s.upserted = append(s.upserted, rawType)
	return domain.PushChannel{ID: 1, UserID: userID, Type: t, Webhook: in.Webhook, Active: true}, nil
}

func (s *stubChannels) ListSources(context.Context, int64) ([]domain.AiSource, error) {
	return nil, nil
}

func (s *stubChannels) AddSource(_ context.Context, userID int64, name, rawURL string) (domain.AiSource, error) {
	if !strings.HasPrefix(rawURL, "http") {
		return domain.AiSource{}, channels.ErrSourceURLInvalid
	}
	return domain.AiSource{ID: 3, UserID: userID, Name: name, URL: rawURL, Active: true}, nil
}

func (s *stubChannels) SetSourceActive(context.Context, int64, int64, bool) error { return nil }

func (s *stubChannels) DeleteSource(_ context.Context, _ int64, id int64) error {
	if id == 404 {
		return domain.ErrNotFound
	}
	return nil
}

type stubPush struct {
	sendErr     error
	testErr     error
	previewOpts digest.Options
	sendCtxErr  error
}

func (s *stubPush) SendNow(ctx context.Context, _ int64) (push.SendNowResult, error) {
	s.sendCtxErr = ctx.Err()
	if s.sendErr != nil {
		return push.SendNowResult{}, s.sendErr
	}
	return push.SendNowResult{Text: "digest", Results: []push.ChannelResult{{ChannelID: 1, Channel: domain.ChannelWeCom, Status: domain.PushStatusManual}}}, nil
}

func (s *stubPush) TestChannel(context.Context, int64, domain.ChannelType) error {
	return s.testErr
}

func (s *stubPush) Preview(_ context.Context, opts digest.Options) (string, error) {
	s.previewOpts = opts
	return "preview:" + strings.Join(opts.Topics, ","), nil
}

type stubJobs struct {
	refreshReason string
	refreshErr    error
}

func (s *stubJobs) RefreshAll(_ context.Context, reason string) (jobs.RefreshAllResult, error) {
	s.refreshReason = reason
	return jobs.RefreshAllResult{Trending: jobs.Result{Count: 3}, Skills: jobs.Result{Count: 2}}, s.refreshErr
}

func (s *stubJobs) Cleanup(context.Context) (jobs.Result, error) { return jobs.Result{Count: 1}, nil }

func (s *stubJobs) Status(context.Context) ([]domain.JobRun, error) {
	return []domain.JobRun{{Name: domain.JobGitHubTrending, LastStatus: domain.JobStatusSuccess}}, nil
}

// stubData запоминает последние запросы, чтобы проверять фильтры обработчиков.
type stubData struct {
	trending domain.TrendingQuery
	ai       domain.AiItemQuery
	skills   domain.SkillsQuery
}

func (s *stubData) SearchTrending(_ context.Context, q domain.TrendingQuery) ([]domain.TrendingSnapshot, error) {
	s.trending = q
	return []domain.TrendingSnapshot{{Owner: "acme", Name: "agent"}}, nil
}

func (s *stubData) SearchAiItems(_ context.Context, q domain.AiItemQuery) ([]domain.AiItem, error) {
	s.ai = q
	return []domain.AiItem{
		{Source: "arXiv cs.AI", Title: "paper"},
		{Source: "OpenAI Blog", Title: "news"},
	}, nil
}

func (s *stubData) SearchSkills(_ context.Context, q domain.SkillsQuery) (domain.SkillsPage, error) {
	s.skills = q
	return domain.SkillsPage{
		Items:        []domain.SkillItem{{Name: string(q.ListType), Source: "acme/skills", SkillID: "pdf"}, {Name: "orphan"}},
		ListType:     q.ListType,
		SnapshotDate: "2031-01-15",
		Total:        12,
	}, nil
}

type stubLogs struct{}

func (stubLogs) ListPushLogs(context.Context, int64, int) ([]domain.PushLog, error) { return nil, nil }

type stubAdmin struct {
	logsQuery domain.PushLogQuery
}

func (s *stubAdmin) AdminStats(context.Context) (domain.AdminStats, error) {
	return domain.AdminStats{UserCount: 3, ChannelCount: 2, LogCount: 4, SuccessCount: 3}, nil
}

func (s *stubAdmin) ListPushLogsPage(_ context.Context, q domain.PushLogQuery) (domain.PushLogPage, error) {
	s.logsQuery = q
	return domain.PushLogPage{
		Logs:  []domain.PushLogView{{PushLog: domain.PushLog{ID: 9, Status: q.Status}, UserEmail: "a@b.io", ChannelType: "wecom"}},
		Total: 41,
	}, nil
}

type fixture struct {
	router   http.Handler
	tokens   *httpinfra.TokenIssuer
	users    *stubUsers
	channels *stubChannels
	push     *stubPush
	jobs     *stubJobs
	data     *stubData
	admin    *stubAdmin
}

func newFixture() *fixture {
	f := &fixture{
		tokens:   httpinfra.NewTokenIssuer("secret", time.Hour),
		users:    &stubUsers{users: map[string]domain.User{}},
		channels: &stubChannels{},
		push:     &stubPush{},
		jobs:     &stubJobs{},
		data:     &stubData{},
		admin:    &stubAdmin{},
	}
	api := New(Deps{
		Users:      f.users,
		Settings:   &stubSettings{sched: domain.DefaultSchedule(0)},
		Channels:   f.channels,
		Push:       f.push,
		Jobs:       f.jobs,
		Data:       f.data,
		Logs:       stubLogs{},
		Admin:      f.admin,
		Tokens:     f.tokens,
		AdminToken: "admin-token",
		Logger:     zerolog.Nop(),
	})
	r := chi.NewRouter()
	api.Register(r)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path, body, token string) (*httptest.ResponseRecorder, httpinfra.Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	var resp httpinfra.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("ответ не JSON: %v (%s)", err, rec.Body.String())
	}
	return rec, resp
}

func (f *fixture) token(t *testing.T, user domain.User) string {
	t.Helper()
	token, err := f.tokens.Issue(user)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}

func TestHealth(t *testing.T) {
	f := newFixture()
	rec, resp := f.do(t, http.MethodGet, "/api/health", "", "")
	if rec.Code != http.StatusOK || resp.Code != 200 || resp.Msg != "success" {
		t.Fatalf("unexpected health response %d %+v", rec.Code, resp)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture()
	rec, resp := f.do(t, http.MethodPost, "/api/auth/register", `{"email":"a@b.io","password":"secret1"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("register: %d %s", rec.Code, resp.Msg)
	}
	data := resp.Data.(map[string]any)
	if data["token"] == "" {
		t.Fatal("ожидали токен в ответе")
	}

	rec, _ = f.do(t, http.MethodPost, "/api/auth/register", `{"email":"a@b.io","password":"secret1"}`, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("повторная регистрация: ожидали 409, получили %d", rec.Code)
	}

	rec, _ = f.do(t, http.MethodPost, "/api/auth/login", `{"email":"a@b.io","password":"wrong"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("неверный пароль: ожидали 401, получили %d", rec.Code)
	}

	rec, _ = f.do(t, http.MethodPost, "/api/auth/login", `{"email":"a@b.io","password":"secret1"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d", rec.Code)
	}

	rec, _ = f.do(t, http.MethodPost, "/api/auth/login", `not json`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("битое тело: ожидали 400, получили %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newFixture()
	for _, path := range []string{"/api/settings", "/api/sources", "/api/logs"} {
		rec, _ := f.do(t, http.MethodGet, path, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s без токена: ожидали 401, получили %d", path, rec.Code)
		}
	}
}

func TestSettings(t *testing.T) {
	f := newFixture()
	token := f.token(t, domain.User{ID: 7})

	rec, resp := f.do(t, http.MethodGet, "/api/settings", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("get settings: %d %s", rec.Code, resp.Msg)
	}
	data := resp.Data.(map[string]any)
	if chans, ok := data["channels"].([]any); !ok || len(chans) != 0 {
		t.Fatalf("ожидали пустой список каналов, получили %v", data["channels"])
	}

	body := `{"time":"09:00","timezone":"UTC","frequency":"weekly","content":{"topics":["ai"],"aiLimit":"7"}}`
	rec, resp = f.do(t, http.MethodPut, "/api/settings", body, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("update settings: %d %s", rec.Code, resp.Msg)
	}
	sched := resp.Data.(map[string]any)["schedule"].(map[string]any)
	if sched["time"] != "09:00" || sched["frequency"] != "weekly" {
		t.Fatalf("unexpected schedule %v", sched)
	}

	rec, _ = f.do(t, http.MethodPut, "/api/settings", `{"time":"09:00","timezone":"Mars/Base"}`, token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("неверная зона: ожидали 400, получили %d", rec.Code)
	}
}

func TestChannels(t *testing.T) {
	f := newFixture()
	token := f.token(t, domain.User{ID: 7})

	rec, resp := f.do(t, http.MethodPost, "/api/channels/wecom", `{"webhook":"https://example.com/hook"}`, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert: %d %s", rec.Code, resp.Msg)
	}
	rec, _ = f.do(t, http.MethodPost, "/api/channels/telegram", `{}`, token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("неизвестный тип: ожидали 400, получили %d", rec.Code)
	}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"missing", domain.ErrChannelNotFound, http.StatusNotFound},
		{"config", &domain.ConfigError{Channel: domain.ChannelWeCom, Reason: domain.ReasonWebhookMissing}, http.StatusBadRequest},
		{"transport", &domain.TransportError{Channel: domain.ChannelWeCom, Code: 93000}, http.StatusBadRequest},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.push.testErr = tt.err
			rec, resp := f.do(t, http.MethodPost, "/api/channels/wecom/test", "", token)
			if rec.Code != tt.want {
				t.Fatalf("ожидали %d, получили %d (%s)", tt.want, rec.Code, resp.Msg)
			}
			if tt.want == http.StatusInternalServerError && resp.Msg == "boom" {
				t.Fatal("внутренняя ошибка не должна уходить клиенту")
			}
		})
	}
}

func TestSources(t *testing.T) {
	f := newFixture()
	token := f.token(t, domain.User{ID: 7})

	rec, _ := f.do(t, http.MethodPost, "/api/sources", `{"name":"Blog","url":"https://example.com/feed.xml"}`, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("add: %d", rec.Code)
	}
	rec, _ = f.do(t, http.MethodPost, "/api/sources", `{"url":"ftp://nope"}`, token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("неверный URL: ожидали 400, получили %d", rec.Code)
	}
	rec, _ = f.do(t, http.MethodPatch, "/api/sources/3", `{"active":false}`, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle: %d", rec.Code)
	}
	rec, _ = f.do(t, http.MethodPatch, "/api/sources/3", `{}`, token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("toggle без active: ожидали 400, получили %d", rec.Code)
	}
	rec, _ = f.do(t, http.MethodDelete, "/api/sources/404", "", token)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete missing: ожидали 404, получили %d", rec.Code)
	}
	rec, _ = f.do(t, http.MethodDelete, "/api/sources/abc", "", token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("delete bad id: ожидали 400, получили %d", rec.Code)
	}
}

func TestDigestPreviewAndSend(t *testing.T) {
	f := newFixture()

	rec, resp := f.do(t, http.MethodGet, "/api/digest/preview?topics=ai,papers&keywords=agent", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("preview: %d %s", rec.Code, resp.Msg)
	}
	if got := resp.Data.(map[string]any)["text"]; got != "preview:ai,papers" {
		t.Fatalf("unexpected preview %v", got)
	}
	if f.push.previewOpts.Keywords != "agent" {
		t.Fatalf("keywords не переданы: %+v", f.push.previewOpts)
	}

	token := f.token(t, domain.User{ID: 7})
	f.do(t, http.MethodGet, "/api/digest/preview", "", token)
	if f.push.previewOpts.UserID != 7 || len(f.push.previewOpts.Topics) != 2 {
		t.Fatalf("ожидали сохранённые темы пользователя 7, получили %+v", f.push.previewOpts)
	}

	rec, _ = f.do(t, http.MethodPost, "/api/digest/send", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("send: %d", rec.Code)
	}

	f.push.sendErr = domain.ErrNoActiveChannels
	rec, resp = f.do(t, http.MethodPost, "/api/digest/send", "", token)
	if rec.Code != http.StatusBadRequest || resp.Msg != domain.ErrNoActiveChannels.Error() {
		t.Fatalf("без каналов: ожидали 400, получили %d %s", rec.Code, resp.Msg)
	}
}

func TestDataEndpoints(t *testing.T) {
	f := newFixture()
	_, resp := f.do(t, http.MethodGet, "/api/ai?category=research&q=agent", "", "")
	items := resp.Data.(map[string]any)["list"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["title"] != "paper" {
		t.Fatalf("ожидали только paper, получили %v", items)
	}
	if f.data.ai.Search != "agent" || f.data.ai.Limit != 40 {
		t.Fatalf("unexpected ai query %+v", f.data.ai)
	}

	_, resp = f.do(t, http.MethodGet, "/api/ai?category=unknown", "", "")
	if got := resp.Data.(map[string]any)["list"].([]any); len(got) != 2 {
		t.Fatalf("неизвестная категория не должна фильтровать, получили %v", got)
	}

	rec, resp := f.do(t, http.MethodGet, "/api/trending?limit=5&period=monthly&language=Go&q=agent", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("trending: %d", rec.Code)
	}
	want := domain.TrendingQuery{Period: domain.TrendingPeriodMonthly, Language: "Go", Search: "agent", Limit: 5}
	if f.data.trending != want {
		t.Fatalf("trending query %+v, want %+v", f.data.trending, want)
	}
	if got := resp.Data.(map[string]any)["list"].([]any); len(got) != 1 {
		t.Fatalf("unexpected trending list %v", got)
	}

	f.do(t, http.MethodGet, "/api/trending?period=yearly", "", "")
	if f.data.trending.Period != domain.TrendingPeriodWeekly || f.data.trending.Limit != 20 {
		t.Fatalf("ожидали weekly и лимит 20 по умолчанию, получили %+v", f.data.trending)
	}

	f.do(t, http.MethodGet, "/api/weekly?limit=500", "", "")
	if f.data.trending.Period != domain.TrendingPeriodWeekly || f.data.trending.Limit != 50 {
		t.Fatalf("weekly: ожидали лимит 50, получили %+v", f.data.trending)
	}
}

func TestPublicAiListUsesDefaultFeedsOnly(t *testing.T) {
	f := newFixture()
	rec, _ := f.do(t, http.MethodGet, "/api/ai", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ai: %d", rec.Code)
	}
	defaults := domain.DefaultFeedURLs()
	got := f.data.ai.SourceURLs
	if len(got) == 0 || len(got) != len(defaults) {
		t.Fatalf("публичный список должен фильтровать по лентам по умолчанию, получили %v", got)
	}
	for i := range defaults {
		if got[i] != defaults[i] {
			t.Fatalf("sourceURLs[%d] = %q, want %q", i, got[i], defaults[i])
		}
	}
}

func TestSkillsResponseMetadata(t *testing.T) {
	f := newFixture()
	_, resp := f.do(t, http.MethodGet, "/api/skills?list=hot&q=pdf", "", "")
	data := resp.Data.(map[string]any)
	if data["list_type"] != "hot" || data["snapshot_date"] != "2031-01-15" || data["source"] != "skills.sh" {
		t.Fatalf("unexpected skills metadata %v", data)
	}
	if total := data["total"].(float64); total != 12 {
		t.Fatalf("ожидали total 12, получили %v", total)
	}
	if f.data.skills.Search != "pdf" || f.data.skills.Limit != 20 {
		t.Fatalf("unexpected skills query %+v", f.data.skills)
	}
	list := data["list"].([]any)
	first := list[0].(map[string]any)
	if first["name"] != "hot" || first["skill_url"] != "https://skills.sh/acme/skills/pdf" || first["repo_url"] != "https://github.com/acme/skills" {
		t.Fatalf("unexpected first skill %v", first)
	}
	orphan := list[1].(map[string]any)
	if orphan["skill_url"] != nil || orphan["repo_url"] != nil {
		t.Fatalf("без источника ссылки должны быть null, получили %v", orphan)
	}
}

func TestAdminRoutes(t *testing.T) {
	f := newFixture()

	rec, _ := f.do(t, http.MethodPost, "/api/admin/refresh", "", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("без прав: ожидали 403, получили %d", rec.Code)
	}
	rec, _ = f.do(t, http.MethodPost, "/api/admin/refresh", "", f.token(t, domain.User{ID: 2, Role: domain.UserRoleUser}))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("обычный пользователь: ожидали 403, получили %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/refresh", nil)
	req.Header.Set("X-Admin-Token", "admin-token")
	out := httptest.NewRecorder()
	f.router.ServeHTTP(out, req)
	if out.Code != http.StatusOK || f.jobs.refreshReason != "manual" {
		t.Fatalf("admin token: %d reason=%q", out.Code, f.jobs.refreshReason)
	}

	admin := f.token(t, domain.User{ID: 1, Role: domain.UserRoleAdmin})
	for _, path := range []string{"/api/admin/jobs", "/api/admin/users"} {
		rec, _ := f.do(t, http.MethodGet, path, "", admin)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: %d", path, rec.Code)
		}
	}
	rec, _ = f.do(t, http.MethodPost, "/api/admin/cleanup", "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("cleanup: %d", rec.Code)
	}
	rec, _ = f.do(t, http.MethodPut, "/api/admin/users/1", `{"role":"user"}`, admin)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("смена своей роли: ожидали 400, получили %d", rec.Code)
	}
	rec, _ = f.do(t, http.MethodDelete, "/api/admin/users/5", "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete user: %d", rec.Code)
	}
}

func TestAdminStatsAndLogs(t *testing.T) {
	f := newFixture()
	admin := f.token(t, domain.User{ID: 1, Role: domain.UserRoleAdmin})

	rec, resp := f.do(t, http.MethodGet, "/api/admin/stats", "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: %d %s", rec.Code, resp.Msg)
	}
	stats := resp.Data.(map[string]any)
	if stats["userCount"].(float64) != 3 || stats["channelCount"].(float64) != 2 || stats["successRate"].(float64) != 75 {
		t.Fatalf("unexpected stats %v", stats)
	}
	if runs := stats["dataJobs"].([]any); len(runs) != 1 {
		t.Fatalf("ожидали одну задачу в dataJobs, получили %v", runs)
	}

	rec, resp = f.do(t, http.MethodGet, "/api/admin/logs?status=failed&page=3&limit=500", "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("logs: %d %s", rec.Code, resp.Msg)
	}
	want := domain.PushLogQuery{Status: domain.PushStatusFailed, Page: 3, Limit: 100}
	if f.admin.logsQuery != want {
		t.Fatalf("logs query %+v, want %+v", f.admin.logsQuery, want)
	}
	page := resp.Data.(map[string]any)
	if page["total"].(float64) != 41 || page["page"].(float64) != 3 || page["limit"].(float64) != 100 {
		t.Fatalf("unexpected page meta %v", page)
	}
	entry := page["logs"].([]any)[0].(map[string]any)
	if entry["user_email"] != "a@b.io" || entry["channel_type"] != "wecom" || entry["status"] != "failed" {
		t.Fatalf("unexpected log entry %v", entry)
	}

	rec, _ = f.do(t, http.MethodGet, "/api/admin/stats", "", f.token(t, domain.User{ID: 2, Role: domain.UserRoleUser}))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("обычный пользователь: ожидали 403, получили %d", rec.Code)
	}
}

func TestAdminRefreshKeepsPartialResults(t *testing.T) {
	f := newFixture()
	f.jobs.refreshErr = errors.New("github_trending: github down")
	admin := f.token(t, domain.User{ID: 1, Role: domain.UserRoleAdmin})

	rec, resp := f.do(t, http.MethodPost, "/api/admin/refresh", "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("частичный сбой: ожидали 200, получили %d (%s)", rec.Code, resp.Msg)
	}
	data := resp.Data.(map[string]any)
	if data["error"] != "github_trending: github down" {
		t.Fatalf("ожидали текст ошибки в ответе, получили %v", data["error"])
	}
	if skills := data["skills"].(map[string]any); skills["count"].(float64) != 2 {
		t.Fatalf("итоги успешных задач потеряны: %v", data)
	}
}

func TestSendSurvivesClientCancel(t *testing.T) {
	f := newFixture()
	token := f.token(t, domain.User{ID: 7})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/digest/send", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("send: %d", rec.Code)
	}
	if f.push.sendCtxErr != nil {
		t.Fatalf("рассылка не должна видеть отмену запроса, получили %v", f.push.sendCtxErr)
	}
}
