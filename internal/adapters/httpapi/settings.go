package httpapi

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"agent-radar/internal/domain"
	httpinfra "agent-radar/internal/infra/http"
	"agent-radar/internal/usecase/channels"
	"agent-radar/internal/usecase/schedule"
)

type settingsResponse struct {
	Schedule domain.PushSchedule  `json:"schedule"`
	Channels []domain.PushChannel `json:"channels"`
}

func (a *API) getSettings(w http.ResponseWriter, r *http.Request) {
	a.writeSettings(w, r, nil)
}

func (a *API) updateSettings(w http.ResponseWriter, r *http.Request) {
	var in schedule.UpdateInput
	if err := decodeBody(r, &in); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	updated, err := a.deps.Settings.Update(r.Context(), currentUserID(r), in)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.writeSettings(w, r, &updated)
}

func (a *API) writeSettings(w http.ResponseWriter, r *http.Request, sched *domain.PushSchedule) {
	userID := currentUserID(r)
	if sched == nil {
		current, err := a.deps.Settings.GetOrCreate(r.Context(), userID)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		sched = &current
	}
	list, err := a.deps.Channels.ListChannels(r.Context(), userID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.PushChannel{}
	}
	httpinfra.WriteJSON(w, settingsResponse{Schedule: *sched, Channels: list})
}

func (a *API) upsertChannel(w http.ResponseWriter, r *http.Request) {
	var in channels.ChannelInput
	if err := decodeBody(r, &in); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	ch, err := a.deps.Channels.UpsertChannel(r.Context(), currentUserID(r), chi.URLParam(r, "type"), in)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, ch)
}

func (a *API) testChannel(w http.ResponseWriter, r *http.Request) {
	channelType, err := domain.ParseChannelType(chi.URLParam(r, "type"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if err := a.deps.Push.TestChannel(r.Context(), currentUserID(r), channelType); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, map[string]string{"status": "sent"})
}

type sourceInput struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Active *bool  `json:"active"`
}

func (a *API) listSources(w http.ResponseWriter, r *http.Request) {
	list, err := a.deps.Channels.ListSources(r.Context(), currentUserID(r))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.AiSource{}
	}
	httpinfra.WriteJSON(w, list)
}

func (a *API) addSource(w http.ResponseWriter, r *http.Request) {
	var in sourceInput
	if err := decodeBody(r, &in); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	src, err := a.deps.Channels.AddSource(r.Context(), currentUserID(r), in.Name, in.URL)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, src)
}

func (a *API) toggleSource(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	var in sourceInput
	if err := decodeBody(r, &in); err != nil || in.Active == nil {
		httpinfra.WriteError(w, http.StatusBadRequest, errInvalidBody)
		return
	}
	if err := a.deps.Channels.SetSourceActive(r.Context(), currentUserID(r), id, *in.Active); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, map[string]bool{"active": *in.Active})
}

func (a *API) deleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.deps.Channels.DeleteSource(r.Context(), currentUserID(r), id); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, map[string]int64{"deleted": id})
}
