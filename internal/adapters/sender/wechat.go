package sender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"agent-radar/internal/domain"
	"agent-radar/internal/infra/cache"
	"agent-radar/internal/infra/metrics"
)

const (
	wechatBaseURL          = "https://api.weixin.qq.com"
	wechatDefaultExpiresIn = 7200
	wechatTokenSlack       = 60 * time.Second
)

// TemplateKind различает источник данных шаблонного сообщения.
type TemplateKind int

const (
	// TemplateDefault — поля строятся из сводки дайджеста.
	TemplateDefault TemplateKind = iota
	// TemplateOverride — пользователь задал данные шаблона целиком.
	TemplateOverride
)

// TemplatePayload содержит данные шаблонного сообщения: стандартные либо пользовательские.
type TemplatePayload struct {
	Kind     TemplateKind
	Override map[string]any
}

// ParseTemplatePayload разбирает пользовательский JSON шаблона.
// Пустая строка даёт TemplateDefault без ошибки; невалидный JSON даёт
// TemplateDefault вместе с ошибкой разбора.
func ParseTemplatePayload(raw string) (TemplatePayload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TemplatePayload{Kind: TemplateDefault}, nil
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return TemplatePayload{Kind: TemplateDefault}, fmt.Errorf("template json: %w", err)
	}
	if data == nil {
		return TemplatePayload{Kind: TemplateDefault}, errors.New("template json: null")
	}
	return TemplatePayload{Kind: TemplateOverride, Override: data}, nil
}

// TemplateValue задаёт значение поля шаблона.
type TemplateValue struct {
	Value string `json:"value"`
}

// Data возвращает поле data запроса template/send.
func (p TemplatePayload) Data(summary domain.DigestSummary) any {
	if p.Kind == TemplateOverride {
		return p.Override
	}
	return DefaultTemplateData(summary)
}

// DefaultTemplateData заполняет стандартные поля шаблона из сводки.
func DefaultTemplateData(summary domain.DigestSummary) map[string]TemplateValue {
	names := make([]string, 0, len(summary.Trending))
	for _, r := range summary.Trending {
		names = append(names, r.Name)
	}
	items := summary.AiItems
	if len(items) == 0 {
		items = summary.Papers
	}
	titles := make([]string, 0, len(items))
	for _, item := range items {
		titles = append(titles, item.Title)
	}

	keyword1 := strings.Join(names, " / ")
	if keyword1 == "" {
		keyword1 = "本期无热度项目"
	}
	keyword2 := strings.Join(titles, " / ")
	if keyword2 == "" {
		keyword2 = "本期无 AI 更新"
	}
	return map[string]TemplateValue{
		"title":    {Value: "AI 机器人周报"},
		"keyword1": {Value: keyword1},
		"keyword2": {Value: keyword2},
		"remark":   {Value: "点击查看完整周报"},
	}
}

type wechatTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
}

type wechatSendRequest struct {
	ToUser     string `json:"touser"`
	TemplateID string `json:"template_id"`
	Data       any    `json:"data"`
}

type wechatSendResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
	MsgID   int64  `json:"msgid"`
}

// WeChat отправляет шаблонные сообщения официального аккаунта.
type WeChat struct {
	http   *resty.Client
	tokens domain.TokenCache
	log    zerolog.Logger
}

// NewWeChat создаёт транспорт. Без внешнего кэша токены хранятся в памяти процесса.
func NewWeChat(tokens domain.TokenCache, opts Options, logger zerolog.Logger) *WeChat {
	return NewWeChatWithBaseURL(wechatBaseURL, tokens, opts, logger)
}

// NewWeChatWithBaseURL создаёт транспорт с другим адресом API.
func NewWeChatWithBaseURL(baseURL string, tokens domain.TokenCache, opts Options, logger zerolog.Logger) *WeChat {
	if tokens == nil {
		tokens = cache.NewMemory()
	}
	return &WeChat{
		http:   newRestyClient(opts.timeout()).SetBaseURL(strings.TrimRight(baseURL, "/")),
		tokens: tokens,
		log:    logger.With().Str("component", "sender.wechat").Logger(),
	}
}

// Send отправляет шаблонное сообщение каждому получателю канала.
func (w *WeChat) Send(ctx context.Context, channel domain.PushChannel, summary domain.DigestSummary) error {
	if channel.TemplateID == "" {
		return &domain.ConfigError{Channel: domain.ChannelWeChat, Reason: domain.ReasonTemplateMissing}
	}
	openIDs := channel.OpenIDList()
	if len(openIDs) == 0 {
		return &domain.ConfigError{Channel: domain.ChannelWeChat, Reason: domain.ReasonOpenIDMissing}
	}
	if channel.AppID == "" || channel.AppSecret == "" {
		return &domain.ConfigError{Channel: domain.ChannelWeChat, Reason: domain.ReasonAppCredsMissing}
	}

	token, err := w.Token(ctx, channel.AppID, channel.AppSecret)
	if err != nil {
		return err
	}

	payload, err := ParseTemplatePayload(channel.TemplateJSON)
	if err != nil {
		w.log.Warn().Err(err).Int64("channel_id", channel.ID).Msg("wechat: шаблон не разобран, используются стандартные поля")
	}
	data := payload.Data(summary)

	// Сбой одного получателя не мешает остальным.
	var errs []error
	for _, openID := range openIDs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		req := wechatSendRequest{ToUser: openID, TemplateID: channel.TemplateID, Data: data}
		if err := w.send(ctx, token, req); err != nil {
			w.log.Warn().Err(err).Int64("channel_id", channel.ID).Str("openid", openID).Msg("wechat: ошибка отправки получателю")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *WeChat) send(ctx context.Context, token string, req wechatSendRequest) error {
	var out wechatSendResponse
	start := time.Now()
	resp, err := w.http.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetQueryParam("access_token", token).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post("/cgi-bin/message/template/send")
	if err != nil {
		metrics.ObserveNetworkRequest("sender", "wechat_send", "wechat", start, err)
		return fmt.Errorf("wechat: do request: %w", err)
	}
	if out.ErrCode != 0 {
		err = &domain.TransportError{Channel: domain.ChannelWeChat, Code: out.ErrCode, Message: out.ErrMsg}
	} else if resp.IsError() {
		err = fmt.Errorf("wechat: unexpected status %d", resp.StatusCode())
	}
	metrics.ObserveNetworkRequest("sender", "wechat_send", "wechat", start, err)
	return err
}

// Token возвращает access_token приложения, используя кэш до истечения срока минус минута.
func (w *WeChat) Token(ctx context.Context, appID, appSecret string) (string, error) {
	if appID == "" || appSecret == "" {
		return "", &domain.ConfigError{Channel: domain.ChannelWeChat, Reason: domain.ReasonAppCredsMissing}
	}
	key := "wechat:" + appID
	if token, ok, err := w.tokens.GetToken(ctx, key); err != nil {
		w.log.Warn().Err(err).Str("app_id", appID).Msg("wechat: кэш токенов недоступен")
	} else if ok {
		return token, nil
	}

	var out wechatTokenResponse
	start := time.Now()
	resp, err := w.http.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetQueryParams(map[string]string{
			"grant_type": "client_credential",
			"appid":      appID,
			"secret":     appSecret,
		}).
		SetResult(&out).
		SetError(&out).
		Get("/cgi-bin/token")
	if err != nil {
		metrics.ObserveNetworkRequest("sender", "wechat_token", "wechat", start, err)
		return "", fmt.Errorf("wechat: token request: %w", err)
	}
	switch {
	case out.ErrCode != 0:
		err = &domain.TransportError{Channel: domain.ChannelWeChat, Code: out.ErrCode, Message: out.ErrMsg}
	case out.AccessToken == "":
		err = fmt.Errorf("获取公众号 token 失败: status %d", resp.StatusCode())
	}
	metrics.ObserveNetworkRequest("sender", "wechat_token", "wechat", start, err)
	if err != nil {
		return "", err
	}

	expiresIn := out.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = wechatDefaultExpiresIn
	}
	ttl := time.Duration(expiresIn)*time.Second - wechatTokenSlack
	if err := w.tokens.SetToken(ctx, key, out.AccessToken, ttl); err != nil {
		w.log.Warn().Err(err).Str("app_id", appID).Msg("wechat: токен не сохранён в кэш")
	}
	return out.AccessToken, nil
}
