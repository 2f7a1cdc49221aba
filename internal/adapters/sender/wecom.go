package sender

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"agent-radar/internal/domain"
	"agent-radar/internal/infra/metrics"
)

// WeCom ограничивает markdown.content 4096 байтами, берём с запасом.
const wecomMaxBytes = 3800

func wecomMarker(i, n int) string {
	return fmt.Sprintf("**[%d/%d]**\n\n", i, n)
}

type wecomMessage struct {
	MsgType  string `json:"msgtype"`
	Markdown struct {
		Content string `json:"content"`
	} `json:"markdown"`
}

type wecomResponse struct {
	ErrCode *int   `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// WeCom отправляет markdown-сообщения в вебхук группового бота WeCom.
type WeCom struct {
	http  *resty.Client
	delay time.Duration
	log   zerolog.Logger
}

// NewWeCom создаёт транспорт WeCom.
func NewWeCom(opts Options, logger zerolog.Logger) *WeCom {
	return &WeCom{
		http:  newRestyClient(opts.timeout()),
		delay: opts.chunkDelay(),
		log:   logger.With().Str("component", "sender.wecom").Logger(),
	}
}

// Send делит текст на куски и отправляет их по очереди.
// Ошибка любого куска прерывает отправку, уже доставленные куски не отзываются.
func (w *WeCom) Send(ctx context.Context, webhook, text string) error {
	if webhook == "" {
		return &domain.ConfigError{Channel: domain.ChannelWeCom, Reason: domain.ReasonWebhookMissing}
	}
	chunks := paginate(text, wecomMaxBytes, wecomMarker)
	for i, chunk := range chunks {
		if i > 0 {
			if err := pause(ctx, w.delay); err != nil {
				return err
			}
		}
		var msg wecomMessage
		msg.MsgType = "markdown"
		msg.Markdown.Content = chunk
		if err := w.post(ctx, webhook, msg); err != nil {
			return err
		}
		w.log.Debug().Int("chunk", i+1).Int("total", len(chunks)).Msg("wecom: кусок отправлен")
	}
	return nil
}

func (w *WeCom) post(ctx context.Context, webhook string, msg wecomMessage) error {
	var out wecomResponse
	start := time.Now()
	resp, err := w.http.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetBody(msg).
		SetResult(&out).
		SetError(&out).
		Post(webhook)
	if err != nil {
		metrics.ObserveNetworkRequest("sender", "wecom_send", "wecom", start, err)
		return fmt.Errorf("wecom: do request: %w", err)
	}
	if out.ErrCode != nil && *out.ErrCode != 0 {
		err = &domain.TransportError{Channel: domain.ChannelWeCom, Code: *out.ErrCode, Message: out.ErrMsg}
	} else if resp.IsError() {
		err = fmt.Errorf("wecom: unexpected status %d", resp.StatusCode())
	}
	metrics.ObserveNetworkRequest("sender", "wecom_send", "wecom", start, err)
	return err
}
