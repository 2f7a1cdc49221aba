// Package fetcher загружает GitHub Trending, RSS-ленты и рейтинг skills.sh.
package fetcher

import (
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	userAgent      = "AgentRadar/1.0"
	acceptLanguage = "zh-CN,zh;q=0.9,en;q=0.8"
	defaultTimeout = 15 * time.Second
)

func newRestyClient(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept-Language", acceptLanguage)
}

// dedupeBy оставляет первый элемент для каждого ключа, сохраняя порядок.
func dedupeBy[T any](items []T, key func(T) string) []T {
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}
