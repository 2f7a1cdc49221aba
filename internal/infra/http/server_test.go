package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDetachedIgnoresClientCancel(t *testing.T) {
	var (
		ctxErr      error
		hasDeadline bool
	)
	h := Detached(time.Minute)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ctxErr = r.Context().Err()
		_, hasDeadline = r.Context().Deadline()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/digest/send", nil).WithContext(ctx)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if ctxErr != nil {
		t.Fatalf("ожидали живой контекст после отмены клиентом, получили %v", ctxErr)
	}
	if !hasDeadline {
		t.Fatal("отвязанный контекст должен иметь собственный дедлайн")
	}
}

func TestTimeoutSetsRequestDeadline(t *testing.T) {
	var deadline time.Time
	h := Timeout()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		deadline, _ = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/trending", nil))

	if left := time.Until(deadline); left <= 0 || left > RequestTimeout {
		t.Fatalf("unexpected deadline, %v left", left)
	}
}
