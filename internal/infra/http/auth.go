package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"agent-radar/internal/domain"
)

var (
	errMissingToken = errors.New("未登录")
	errInvalidToken = errors.New("token 无效或已过期")
	errForbidden    = errors.New("无权限")
)

// Claims описывает полезную нагрузку токена API.
type Claims struct {
	UserID int64           `json:"user_id"`
	Role   domain.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer выпускает и проверяет HS256 токены.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer создаёт эмитент токенов.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue подписывает токен для пользователя.
func (t *TokenIssuer) Issue(user domain.User) (string, error) {
	now := t.now()
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "agent-radar",
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("подпись токена: %w", err)
	}
	return signed, nil
}

// Parse проверяет подпись и срок действия токена.
func (t *TokenIssuer) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный метод подписи: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, fmt.Errorf("разбор токена: %w", err)
	}
	if !token.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}

type claimsKey struct{}

// ClaimsFromContext возвращает данные токена, положенные RequireAuth.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok
}

// WithClaims кладёт данные токена в контекст.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// RequireAuth проверяет заголовок Authorization: Bearer <token>.
func RequireAuth(issuer *TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				WriteError(w, http.StatusUnauthorized, errMissingToken)
				return
			}
			claims, err := issuer.Parse(strings.TrimSpace(raw))
			if err != nil {
				WriteError(w, http.StatusUnauthorized, errInvalidToken)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireAdmin пропускает администраторов: по роли в токене либо по заголовку X-Admin-Token.
func RequireAdmin(adminToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminToken != "" {
				provided := r.Header.Get("X-Admin-Token")
				if provided != "" && subtle.ConstantTimeCompare([]byte(provided), []byte(adminToken)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}
			if claims, ok := ClaimsFromContext(r.Context()); ok && claims.Role == domain.UserRoleAdmin {
				next.ServeHTTP(w, r)
				return
			}
			WriteError(w, http.StatusForbidden, errForbidden)
		})
	}
}

// OptionalAuth кладёт данные токена в контекст, если заголовок Authorization валиден.
// Запрос без токена или с неверным токеном проходит дальше без данных.
func OptionalAuth(issuer *TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if ok && strings.TrimSpace(raw) != "" {
				if claims, err := issuer.Parse(strings.TrimSpace(raw)); err == nil {
					r = r.WithContext(WithClaims(r.Context(), claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
