package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"agent-radar/internal/domain"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	token, err := issuer.Issue(domain.User{ID: 42, Role: domain.UserRoleAdmin})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID != 42 || claims.Role != domain.UserRoleAdmin {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestTokenIssuerRejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	base := time.Now()
	issuer.now = func() time.Time { return base.Add(-2 * time.Hour) }
	token, err := issuer.Issue(domain.User{ID: 1})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	issuer.now = time.Now
	if _, err := issuer.Parse(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestRequireAdmin(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	handler := RequireAdmin("admin-token")(ok)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/refresh", nil)
	req.Header.Set("X-Admin-Token", "admin-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("admin token must pass, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/admin/refresh", nil)
	req = req.WithContext(WithClaims(req.Context(), &Claims{UserID: 3, Role: domain.UserRoleUser}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("regular user must be rejected, got %d", rec.Code)
	}

	token, _ := issuer.Issue(domain.User{ID: 5, Role: domain.UserRoleAdmin})
	req = httptest.NewRequest(http.MethodPost, "/api/admin/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	RequireAuth(issuer)(handler).ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("admin role must pass, got %d", rec.Code)
	}
}

func TestOptionalAuth(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	var got *Claims
	handler := OptionalAuth(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/digest/preview", nil)
	req.Header.Set("Authorization", "Bearer broken")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || got != nil {
		t.Fatalf("invalid token must pass without claims, got %d %+v", rec.Code, got)
	}

	token, _ := issuer.Issue(domain.User{ID: 9})
	req = httptest.NewRequest(http.MethodGet, "/api/digest/preview", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got == nil || got.UserID != 9 {
		t.Fatalf("expected claims for user 9, got %+v", got)
	}
}
