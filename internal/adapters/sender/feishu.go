package sender

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"agent-radar/internal/domain"
	"agent-radar/internal/infra/metrics"
)

// Ограничение текстового сообщения Feishu с запасом.
const feishuMaxBytes = 9000

func feishuMarker(i, n int) string {
	return fmt.Sprintf("[%d/%d]\n", i, n)
}

type feishuMessage struct {
	MsgType string `json:"msg_type"`
	Content struct {
		Text string `json:"text"`
	} `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
	Sign      string `json:"sign,omitempty"`
}

type feishuResponse struct {
	Code          *int   `json:"code"`
	Msg           string `json:"msg"`
	StatusCode    *int   `json:"StatusCode"`
	StatusMessage string `json:"StatusMessage"`
}

func (r feishuResponse) transportError() error {
	if r.Code != nil && *r.Code != 0 {
		return &domain.TransportError{Channel: domain.ChannelFeishu, Code: *r.Code, Message: r.Msg}
	}
	if r.StatusCode != nil && *r.StatusCode != 0 {
		return &domain.TransportError{Channel: domain.ChannelFeishu, Code: *r.StatusCode, Message: r.StatusMessage}
	}
	return nil
}

// FeishuSign считает подпись вебхука: HMAC-SHA256 с ключом "{timestamp}\n{secret}"
// над пустым сообщением, в base64.
func FeishuSign(secret string, timestamp int64) string {
	mac := hmac.New(sha256.New, []byte(strconv.FormatInt(timestamp, 10)+"\n"+secret))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Feishu отправляет текстовые сообщения в вебхук бота Feishu.
type Feishu struct {
	http  *resty.Client
	delay time.Duration
	now   func() time.Time
	log   zerolog.Logger
}

// NewFeishu создаёт транспорт Feishu.
func NewFeishu(opts Options, logger zerolog.Logger) *Feishu {
	return &Feishu{
		http:  newRestyClient(opts.timeout()),
		delay: opts.chunkDelay(),
		now:   time.Now,
		log:   logger.With().Str("component", "sender.feishu").Logger(),
	}
}

// Send делит текст на куски и отправляет их по очереди. При заданном secret
// каждый запрос подписывается заново.
func (f *Feishu) Send(ctx context.Context, webhook, secret, text string) error {
	if webhook == "" {
		return &domain.ConfigError{Channel: domain.ChannelFeishu, Reason: domain.ReasonWebhookMissing}
	}
	chunks := paginate(text, feishuMaxBytes, feishuMarker)
	for i, chunk := range chunks {
		if i > 0 {
			if err := pause(ctx, f.delay); err != nil {
				return err
			}
		}
		var msg feishuMessage
		msg.MsgType = "text"
		msg.Content.Text = chunk
		if secret != "" {
			ts := f.now().Unix()
			msg.Timestamp = strconv.FormatInt(ts, 10)
			msg.Sign = FeishuSign(secret, ts)
		}
		if err := f.post(ctx, webhook, msg); err != nil {
			return err
		}
		f.log.Debug().Int("chunk", i+1).Int("total", len(chunks)).Msg("feishu: кусок отправлен")
	}
	return nil
}

func (f *Feishu) post(ctx context.Context, webhook string, msg feishuMessage) error {
	var out feishuResponse
	start := time.Now()
	resp, err := f.http.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetBody(msg).
		SetResult(&out).
		SetError(&out).
		Post(webhook)
	if err != nil {
		metrics.ObserveNetworkRequest("sender", "feishu_send", "feishu", start, err)
		return fmt.Errorf("feishu: do request: %w", err)
	}
	err = out.transportError()
	if err == nil && resp.IsError() {
		err = fmt.Errorf("feishu: unexpected status %d", resp.StatusCode())
	}
	metrics.ObserveNetworkRequest("sender", "feishu_send", "feishu", start, err)
	return err
}
