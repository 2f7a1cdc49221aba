// Package httpapi реализует REST API сервиса.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

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

// UserService управляет учётными записями.
type UserService interface {
	Register(ctx context.Context, email, password, name string) (domain.User, error)
	Login(ctx context.Context, email, password string) (domain.User, error)
	Get(ctx context.Context, id int64) (domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	SetRole(ctx context.Context, actorID, id int64, role domain.UserRole) error
	Delete(ctx context.Context, actorID, id int64) error
}

// SettingsService управляет расписанием пользователя.
type SettingsService interface {
	GetOrCreate(ctx context.Context, userID int64) (domain.PushSchedule, error)
	Update(ctx context.Context, userID int64, in schedule.UpdateInput) (domain.PushSchedule, error)
}

// ChannelService управляет каналами и источниками пользователя.
type ChannelService interface {
	ListChannels(ctx context.Context, userID int64) ([]domain.PushChannel, error)
	UpsertChannel(ctx context.Context, userID int64, rawType string, in channels.ChannelInput) (domain.PushChannel, error)
	ListSources(ctx context.Context, userID int64) ([]domain.AiSource, error)
	AddSource(ctx context.Context, userID int64, name, rawURL string) (domain.AiSource, error)
	SetSourceActive(ctx context.Context, userID, id int64, active bool) error
	DeleteSource(ctx context.Context, userID, id int64) error
}

// PushService отправляет дайджест вручную и строит предпросмотр.
type PushService interface {
	SendNow(ctx context.Context, userID int64) (push.SendNowResult, error)
	TestChannel(ctx context.Context, userID int64, channelType domain.ChannelType) error
	Preview(ctx context.Context, opts digest.Options) (string, error)
}

// JobService обновляет и чистит данные.
type JobService interface {
	RefreshAll(ctx context.Context, reason string) (jobs.RefreshAllResult, error)
	Cleanup(ctx context.Context) (jobs.Result, error)
	Status(ctx context.Context) ([]domain.JobRun, error)
}

// DataReader ищет по снимкам для публичных списков.
type DataReader interface {
	SearchTrending(ctx context.Context, q domain.TrendingQuery) ([]domain.TrendingSnapshot, error)
	SearchAiItems(ctx context.Context, q domain.AiItemQuery) ([]domain.AiItem, error)
	SearchSkills(ctx context.Context, q domain.SkillsQuery) (domain.SkillsPage, error)
}

// LogReader читает журнал доставки.
type LogReader interface {
	ListPushLogs(ctx context.Context, userID int64, limit int) ([]domain.PushLog, error)
}

// AdminReader читает сводку и общий журнал для администратора.
type AdminReader interface {
	AdminStats(ctx context.Context) (domain.AdminStats, error)
	ListPushLogsPage(ctx context.Context, q domain.PushLogQuery) (domain.PushLogPage, error)
}

// Deps собирает зависимости API.
type Deps struct {
	Users      UserService
	Settings   SettingsService
	Channels   ChannelService
	Push       PushService
	Jobs       JobService
	Data       DataReader
	Logs       LogReader
	Admin      AdminReader
	Tokens     *httpinfra.TokenIssuer
	AdminToken string
	Logger     zerolog.Logger
}

// API собирает обработчики.
type API struct {
	deps Deps
	log  zerolog.Logger
}

// New создаёт API.
func New(deps Deps) *API {
	return &API{deps: deps, log: deps.Logger.With().Str("component", "api").Logger()}
}

// Register подключает маршруты к роутеру.
// Обычные запросы ограничены RequestTimeout; рассылка, предпросмотр с обновлением
// источников и задачи администратора работают в контексте, отвязанном от клиента.
func (a *API) Register(r chi.Router) {
	long := httpinfra.Detached(httpinfra.LongRequestTimeout)
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(httpinfra.Timeout())
			r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
				httpinfra.WriteJSON(w, map[string]string{"status": "ok"})
			})
			r.Post("/auth/register", a.register)
			r.Post("/auth/login", a.login)

			r.Get("/trending", a.listTrending)
			r.Get("/weekly", a.listWeekly)
			r.Get("/ai", a.listAiItems)
			r.Get("/skills", a.listSkills)
		})
		r.With(long, httpinfra.OptionalAuth(a.deps.Tokens)).Get("/digest/preview", a.previewDigest)

		r.Group(func(r chi.Router) {
			r.Use(httpinfra.RequireAuth(a.deps.Tokens))
			r.Group(func(r chi.Router) {
				r.Use(httpinfra.Timeout())
				r.Get("/auth/me", a.me)
				r.Get("/settings", a.getSettings)
				r.Put("/settings", a.updateSettings)
				r.Post("/channels/{type}", a.upsertChannel)
				r.Get("/sources", a.listSources)
				r.Post("/sources", a.addSource)
				r.Patch("/sources/{id}", a.toggleSource)
				r.Delete("/sources/{id}", a.deleteSource)
				r.Get("/logs", a.listLogs)
			})
			r.With(long).Post("/channels/{type}/test", a.testChannel)
			r.With(long).Post("/digest/send", a.sendDigest)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(httpinfra.OptionalAuth(a.deps.Tokens))
			r.Use(httpinfra.RequireAdmin(a.deps.AdminToken))
			r.Group(func(r chi.Router) {
				r.Use(httpinfra.Timeout())
				r.Get("/stats", a.stats)
				r.Get("/logs", a.listAllLogs)
				r.Get("/jobs", a.listJobs)
				r.Get("/users", a.listUsers)
				r.Put("/users/{id}", a.updateUserRole)
				r.Delete("/users/{id}", a.deleteUser)
			})
			r.With(long).Post("/refresh", a.refreshAll)
			r.With(long).Post("/cleanup", a.cleanup)
		})
	})
}

// currentUserID возвращает пользователя из токена; 0 для запросов по X-Admin-Token.
func currentUserID(r *http.Request) int64 {
	claims, ok := httpinfra.ClaimsFromContext(r.Context())
	if !ok {
		return 0
	}
	return claims.UserID
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errInvalidBody
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

func queryInt(r *http.Request, key string, fallback, maxValue int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return min(v, maxValue)
}

var (
	errInvalidBody = errors.New("请求体格式错误")
	errInvalidID   = errors.New("无效的 ID")
	errNotFound    = errors.New("资源不存在")
	errInternal    = errors.New("服务器内部错误")
)

// writeServiceError переводит ошибки сценариев в HTTP-статусы.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		configErr    *domain.ConfigError
		transportErr *domain.TransportError
	)
	switch {
	case errors.Is(err, domain.ErrChannelNotFound):
		httpinfra.WriteError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrNotFound):
		httpinfra.WriteError(w, http.StatusNotFound, errNotFound)
	case errors.Is(err, domain.ErrEmailTaken):
		httpinfra.WriteError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrInvalidCredentials):
		httpinfra.WriteError(w, http.StatusUnauthorized, err)
	case errors.Is(err, domain.ErrNoActiveChannels),
		errors.Is(err, domain.ErrUnknownChannelType),
		errors.Is(err, schedule.ErrInvalidTime),
		errors.Is(err, schedule.ErrInvalidTimezone),
		errors.Is(err, schedule.ErrInvalidFrequency),
		errors.Is(err, channels.ErrSourceURLInvalid),
		errors.Is(err, users.ErrInvalidEmail),
		errors.Is(err, users.ErrWeakPassword),
		errors.Is(err, users.ErrSelfDelete),
		errors.Is(err, users.ErrSelfRoleChange),
		errors.Is(err, users.ErrInvalidRole),
		errors.As(err, &configErr),
		errors.As(err, &transportErr):
		httpinfra.WriteError(w, http.StatusBadRequest, err)
	default:
		a.log.Error().Err(err).Str("path", r.URL.Path).Str("request_id", httpinfra.RequestID(r)).Msg("api: внутренняя ошибка")
		httpinfra.WriteError(w, http.StatusInternalServerError, errInternal)
	}
}
