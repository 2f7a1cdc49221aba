// Package push собирает дайджест и доставляет его в каналы пользователя.
package push

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"agent-radar/internal/domain"
	"agent-radar/internal/infra/metrics"
	"agent-radar/internal/usecase/digest"
	"agent-radar/internal/usecase/jobs"
)

const manualDetail = "手动触发"

// DigestBuilder строит текст и структурную сводку дайджеста.
type DigestBuilder interface {
	BuildDigestText(ctx context.Context, opts digest.Options) (string, error)
	BuildDigestSummary(ctx context.Context, opts digest.Options) (digest.Summary, error)
}

// Refresher обновляет источники перед ручной отправкой.
type Refresher interface {
	RefreshTrendingIfStale(ctx context.Context, minMinutes int) (jobs.Result, error)
	RefreshAiFeedsIfStale(ctx context.Context, minMinutes int) (jobs.Result, error)
	RefreshSkillsIfStale(ctx context.Context, minMinutes int) (jobs.Result, error)
}

// WebhookSender отправляет текст в вебхук WeCom.
type WebhookSender interface {
	Send(ctx context.Context, webhook, text string) error
}

// SignedWebhookSender отправляет текст в вебхук Feishu с подписью.
type SignedWebhookSender interface {
	Send(ctx context.Context, webhook, secret, text string) error
}

// TemplateSender отправляет шаблонные сообщения WeChat.
type TemplateSender interface {
	Send(ctx context.Context, channel domain.PushChannel, summary domain.DigestSummary) error
}

// Transports группирует транспорты по типам каналов.
type Transports struct {
	WeCom  WebhookSender
	Feishu SignedWebhookSender
	WeChat TemplateSender
}

// Service отправляет дайджест по расписанию, вручную и в тестовом режиме.
type Service struct {
	builder    DigestBuilder
	refresher  Refresher
	channels   domain.ChannelRepo
	schedules  domain.ScheduleRepo
	logs       domain.PushLogRepo
	transports Transports
	log        zerolog.Logger
}

// NewService создаёт сервис доставки.
func NewService(builder DigestBuilder, refresher Refresher, channels domain.ChannelRepo, schedules domain.ScheduleRepo, logs domain.PushLogRepo, transports Transports, logger zerolog.Logger) *Service {
	return &Service{
		builder:    builder,
		refresher:  refresher,
		channels:   channels,
		schedules:  schedules,
		logs:       logs,
		transports: transports,
		log:        logger.With().Str("component", "push").Logger(),
	}
}

// SendDigest собирает дайджест под настройки пользователя и отправляет его в канал.
// WeCom и Feishu получают текст, WeChat получает структурную сводку.
func (s *Service) SendDigest(ctx context.Context, userID int64, channel domain.PushChannel, content domain.ContentConfig) error {
	if userID == 0 {
		userID = channel.UserID
	}
	return s.deliver(ctx, channel, s.newPayload(digest.OptionsFromContent(userID, content)))
}

func (s *Service) deliver(ctx context.Context, channel domain.PushChannel, p *payload) (err error) {
	defer func() { metrics.ObservePush(string(channel.Type), err) }()

	switch channel.Type {
	case domain.ChannelWeCom, domain.ChannelFeishu:
		if channel.Webhook == "" {
			return &domain.ConfigError{Channel: channel.Type, Reason: domain.ReasonWebhookMissing}
		}
		text, err := p.Text(ctx)
		if err != nil {
			return err
		}
		if channel.Type == domain.ChannelWeCom {
			return s.transports.WeCom.Send(ctx, channel.Webhook, text)
		}
		return s.transports.Feishu.Send(ctx, channel.Webhook, channel.Secret, text)
	case domain.ChannelWeChat:
		summary, err := p.Summary(ctx)
		if err != nil {
			return err
		}
		return s.transports.WeChat.Send(ctx, channel, summary.DigestSummary)
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnknownChannelType, channel.Type)
	}
}

// payload собирает текст и сводку дайджеста не больше одного раза на операцию.
type payload struct {
	builder DigestBuilder
	opts    digest.Options

	text    *string
	summary *digest.Summary
}

func (s *Service) newPayload(opts digest.Options) *payload {
	return &payload{builder: s.builder, opts: opts}
}

func (p *payload) Text(ctx context.Context) (string, error) {
	if p.text != nil {
		return *p.text, nil
	}
	text, err := p.builder.BuildDigestText(ctx, p.opts)
	if err != nil {
		return "", fmt.Errorf("сборка дайджеста: %w", err)
	}
	p.text = &text
	return text, nil
}

func (p *payload) Summary(ctx context.Context) (digest.Summary, error) {
	if p.summary != nil {
		return *p.summary, nil
	}
	summary, err := p.builder.BuildDigestSummary(ctx, p.opts)
	if err != nil {
		return digest.Summary{}, fmt.Errorf("сборка сводки: %w", err)
	}
	p.summary = &summary
	return summary, nil
}

// ChannelResult описывает итог отправки в один канал.
type ChannelResult struct {
	ChannelID int64              `json:"channel_id"`
	Channel   domain.ChannelType `json:"channel"`
	Status    domain.PushStatus  `json:"status"`
	Error     string             `json:"error,omitempty"`
}

// SendNowResult описывает итог ручной отправки.
type SendNowResult struct {
	Text    string          `json:"text"`
	Results []ChannelResult `json:"results"`
}

// SendNow отправляет дайджест во все активные каналы пользователя вне расписания.
// Каждая попытка записывается в журнал со статусом manual или failed без sentKey.
func (s *Service) SendNow(ctx context.Context, userID int64) (SendNowResult, error) {
	channels, err := s.channels.ListActiveChannels(ctx, userID)
	if err != nil {
		return SendNowResult{}, fmt.Errorf("получение каналов: %w", err)
	}
	if len(channels) == 0 {
		return SendNowResult{}, domain.ErrNoActiveChannels
	}
	content, err := s.contentFor(ctx, userID)
	if err != nil {
		return SendNowResult{}, err
	}

	s.refreshIfStale(ctx)

	p := s.newPayload(digest.OptionsFromContent(userID, content))
	text, err := p.Text(ctx)
	if err != nil {
		return SendNowResult{}, err
	}

	out := SendNowResult{Text: text, Results: make([]ChannelResult, 0, len(channels))}
	for _, ch := range channels {
		res := ChannelResult{ChannelID: ch.ID, Channel: ch.Type, Status: domain.PushStatusManual}
		entry := domain.PushLog{UserID: userID, ChannelID: ch.ID, Status: domain.PushStatusManual, Detail: manualDetail}
		if err := s.deliver(ctx, ch, p); err != nil {
			res.Status = domain.PushStatusFailed
			res.Error = err.Error()
			entry.Status = domain.PushStatusFailed
			entry.Detail = err.Error()
			s.log.Error().Err(err).Int64("user", userID).Int64("channel", ch.ID).Msg("push: ошибка ручной отправки")
		}
		if _, err := s.logs.InsertPushLog(ctx, entry); err != nil {
			s.log.Error().Err(err).Int64("user", userID).Int64("channel", ch.ID).Msg("push: ошибка записи журнала")
		}
		out.Results = append(out.Results, res)
	}
	return out, nil
}

// TestChannel отправляет дайджест в канал указанного типа без записи в журнал.
func (s *Service) TestChannel(ctx context.Context, userID int64, channelType domain.ChannelType) error {
	ch, err := s.channels.GetChannelByType(ctx, userID, channelType)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrChannelNotFound
	}
	if err != nil {
		return fmt.Errorf("получение канала: %w", err)
	}
	content, err := s.contentFor(ctx, userID)
	if err != nil {
		return err
	}
	return s.SendDigest(ctx, userID, ch, content)
}

// Preview обновляет устаревшие источники и возвращает текст дайджеста без отправки.
func (s *Service) Preview(ctx context.Context, opts digest.Options) (string, error) {
	s.refreshIfStale(ctx)
	return s.builder.BuildDigestText(ctx, opts)
}

func (s *Service) contentFor(ctx context.Context, userID int64) (domain.ContentConfig, error) {
	schedule, err := s.schedules.GetSchedule(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ContentConfig{}, nil
	}
	if err != nil {
		return domain.ContentConfig{}, fmt.Errorf("получение расписания: %w", err)
	}
	return schedule.Content, nil
}

// refreshIfStale обновляет источники перед ручными операциями. Ошибки только логируются.
func (s *Service) refreshIfStale(ctx context.Context) {
	if s.refresher == nil {
		return
	}
	if _, err := s.refresher.RefreshTrendingIfStale(ctx, jobs.DefaultTrendingStaleMinutes); err != nil {
		s.log.Warn().Err(err).Msg("push: ошибка обновления trending")
	}
	if _, err := s.refresher.RefreshAiFeedsIfStale(ctx, jobs.DefaultAiStaleMinutes); err != nil {
		s.log.Warn().Err(err).Msg("push: ошибка обновления лент")
	}
	if _, err := s.refresher.RefreshSkillsIfStale(ctx, jobs.DefaultSkillsStaleMinutes); err != nil {
		s.log.Warn().Err(err).Msg("push: ошибка обновления skills")
	}
}
