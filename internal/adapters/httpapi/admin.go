package httpapi

import (
	"math"
	"net/http"
	"strings"

	"agent-radar/internal/domain"
	httpinfra "agent-radar/internal/infra/http"
	"agent-radar/internal/usecase/jobs"
)

const refreshReasonManual = "manual"

func (a *API) listJobs(w http.ResponseWriter, r *http.Request) {
	runs, err := a.deps.Jobs.Status(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if runs == nil {
		runs = []domain.JobRun{}
	}
	httpinfra.WriteJSON(w, runs)
}

type refreshResponse struct {
	jobs.RefreshAllResult
	Error string `json:"error,omitempty"`
}

// refreshAll отдаёт итоги всех задач, даже если часть из них упала; ошибки склеиваются в поле error.
func (a *API) refreshAll(w http.ResponseWriter, r *http.Request) {
	res, err := a.deps.Jobs.RefreshAll(r.Context(), refreshReasonManual)
	resp := refreshResponse{RefreshAllResult: res}
	if err != nil {
		a.log.Warn().Err(err).Msg("api: ручное обновление завершилось с ошибками")
		resp.Error = err.Error()
	}
	httpinfra.WriteJSON(w, resp)
}

func (a *API) cleanup(w http.ResponseWriter, r *http.Request) {
	res, err := a.deps.Jobs.Cleanup(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, res)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := a.deps.Users.List(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.User{}
	}
	httpinfra.WriteJSON(w, list)
}

type roleInput struct {
	Role domain.UserRole `json:"role"`
}

func (a *API) updateUserRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	var in roleInput
	if err := decodeBody(r, &in); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.deps.Users.SetRole(r.Context(), currentUserID(r), id, in.Role); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, map[string]any{"id": id, "role": in.Role})
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.deps.Users.Delete(r.Context(), currentUserID(r), id); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, map[string]int64{"deleted": id})
}

type statsResponse struct {
	UserCount    int             `json:"userCount"`
	ChannelCount int             `json:"channelCount"`
	LogCount     int             `json:"logCount"`
	SuccessRate  int             `json:"successRate"`
	DataJobs     []domain.JobRun `json:"dataJobs"`
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.deps.Admin.AdminStats(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	runs, err := a.deps.Jobs.Status(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if runs == nil {
		runs = []domain.JobRun{}
	}
	httpinfra.WriteJSON(w, statsResponse{
		UserCount:    stats.UserCount,
		ChannelCount: stats.ChannelCount,
		LogCount:     stats.LogCount,
		SuccessRate:  stats.SuccessRate(),
		DataJobs:     runs,
	})
}

type logsPageResponse struct {
	Logs  []domain.PushLogView `json:"logs"`
	Total int                  `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}

// listAllLogs отдаёт журнал доставки всех пользователей постранично, с фильтром status.
func (a *API) listAllLogs(w http.ResponseWriter, r *http.Request) {
	query := domain.PushLogQuery{
		Status: domain.PushStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
		Page:   queryInt(r, "page", 1, math.MaxInt32),
		Limit:  queryInt(r, "limit", 20, 100),
	}
	page, err := a.deps.Admin.ListPushLogsPage(r.Context(), query)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if page.Logs == nil {
		page.Logs = []domain.PushLogView{}
	}
	httpinfra.WriteJSON(w, logsPageResponse{Logs: page.Logs, Total: page.Total, Page: query.Page, Limit: query.Limit})
}
