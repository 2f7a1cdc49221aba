package httpapi

import (
	"net/http"

	"agent-radar/internal/domain"
	httpinfra "agent-radar/internal/infra/http"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeBody(r, &in); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	user, err := a.deps.Users.Register(r.Context(), in.Email, in.Password, in.Name)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.writeToken(w, r, user)
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeBody(r, &in); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return
	}
	user, err := a.deps.Users.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.writeToken(w, r, user)
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	user, err := a.deps.Users.Get(r.Context(), currentUserID(r))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, user)
}

func (a *API) writeToken(w http.ResponseWriter, r *http.Request, user domain.User) {
	token, err := a.deps.Tokens.Issue(user)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	httpinfra.WriteJSON(w, authResponse{Token: token, User: user})
}
