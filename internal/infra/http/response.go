package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// Response задаёт общий конверт ответов API.
type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

// RequestID возвращает request ID из контекста chi.
func RequestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

// WriteJSON отправляет успешный ответ.
func WriteJSON(w http.ResponseWriter, data any) {
	writeEnvelope(w, http.StatusOK, Response{Code: http.StatusOK, Msg: "success", Data: data})
}

// WriteError отправляет JSON с ошибкой.
func WriteError(w http.ResponseWriter, status int, err error) {
	writeEnvelope(w, status, Response{Code: status, Msg: err.Error()})
}

func writeEnvelope(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
