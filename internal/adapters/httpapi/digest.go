package httpapi

import (
	"net/http"
	"strings"

	"agent-radar/internal/domain"
	httpinfra "agent-radar/internal/infra/http"
	"agent-radar/internal/usecase/digest"
)

type previewResponse struct {
	Text string `json:"text"`
}

// previewDigest собирает текст по параметрам запроса.
// Без явных topics авторизованный пользователь получает свои сохранённые настройки.
func (a *API) previewDigest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	content := domain.ContentConfig{}
	userID := currentUserID(r)
	if userID != 0 && q.Get("topics") == "" {
		sched, err := a.deps.Settings.GetOrCreate(r.Context(), userID)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		content = sched.Content
	}
	if topics := splitList(q.Get("topics")); len(topics) > 0 {
		content.Topics = topics
	}
	if kw := q.Get("keywords"); kw != "" {
		content.Keywords = kw
	}
	if st := q.Get("skillsType"); st != "" {
		content.SkillsType = st
	}
	text, err := a.deps.Push.Preview(r.Context(), digest.OptionsFromContent(userID, content))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, previewResponse{Text: text})
}

func (a *API) sendDigest(w http.ResponseWriter, r *http.Request) {
	res, err := a.deps.Push.SendNow(r.Context(), currentUserID(r))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, res)
}

func (a *API) listLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := a.deps.Logs.ListPushLogs(r.Context(), currentUserID(r), queryInt(r, "limit", 50, 200))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if logs == nil {
		logs = []domain.PushLog{}
	}
	httpinfra.WriteJSON(w, logs)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
