// Package translator переводит заголовки и описания на китайский.
package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"agent-radar/internal/domain"
	"agent-radar/internal/infra/metrics"
)

const defaultLibreEndpoint = "https://libretranslate.com/translate"

// Libre вызывает LibreTranslate-совместимый API.
type Libre struct {
	http     *resty.Client
	endpoint string
	apiKey   string
}

var _ domain.TextTranslator = (*Libre)(nil)

// NewLibre создаёт клиента LibreTranslate.
func NewLibre(endpoint, apiKey string, timeout time.Duration) *Libre {
	if endpoint == "" {
		endpoint = defaultLibreEndpoint
	}
	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	return &Libre{
		http:     resty.New().SetTimeout(timeout).SetHeader("Content-Type", "application/json"),
		endpoint: endpoint,
		apiKey:   apiKey,
	}
}

type libreRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type libreResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error"`
}

// Translate переводит текст на китайский.
func (l *Libre) Translate(ctx context.Context, text string) (string, error) {
	var out libreResponse
	start := time.Now()
	resp, err := l.http.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetBody(libreRequest{Q: text, Source: "auto", Target: "zh", Format: "text", APIKey: l.apiKey}).
		SetResult(&out).
		SetError(&out).
		Post(l.endpoint)
	if err != nil {
		metrics.ObserveNetworkRequest("translator", "libre", "libretranslate", start, err)
		return "", fmt.Errorf("libre: do request: %w", err)
	}
	switch {
	case resp.IsError() && out.Error != "":
		err = fmt.Errorf("libre: %s", out.Error)
	case resp.IsError():
		err = fmt.Errorf("libre: unexpected status %d", resp.StatusCode())
	case strings.TrimSpace(out.TranslatedText) == "":
		err = errors.New("libre: пустой перевод")
	}
	metrics.ObserveNetworkRequest("translator", "libre", "libretranslate", start, err)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.TranslatedText), nil
}
