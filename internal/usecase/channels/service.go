// Package channels управляет каналами доставки и RSS-источниками пользователя.
package channels

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"agent-radar/internal/domain"
)

var (
	// ErrSourceURLInvalid: адрес ленты не является http(s) ссылкой.
	ErrSourceURLInvalid = errors.New("RSS 地址无效")
)

// ChannelInput содержит настройки канала из запроса. Поля, не относящиеся к типу, игнорируются.
type ChannelInput struct {
	Name         string `json:"name"`
	Webhook      string `json:"webhook"`
	Secret       string `json:"secret"`
	AppID        string `json:"appId"`
	AppSecret    string `json:"appSecret"`
	TemplateID   string `json:"templateId"`
	OpenIDs      string `json:"openids"`
	TemplateJSON string `json:"templateJson"`
	Active       *bool  `json:"active"`
}

// Service управляет каналами и источниками пользователя.
type Service struct {
	channels domain.ChannelRepo
	sources  domain.SourceRepo
}

// NewService создаёт сервис каналов.
func NewService(channels domain.ChannelRepo, sources domain.SourceRepo) *Service {
	return &Service{channels: channels, sources: sources}
}

// ListChannels возвращает каналы пользователя.
func (s *Service) ListChannels(ctx context.Context, userID int64) ([]domain.PushChannel, error) {
	return s.channels.ListChannels(ctx, userID)
}

// UpsertChannel обновляет канал указанного типа или создаёт его, если канала ещё нет.
// На пользователя приходится не больше одного канала каждого типа.
func (s *Service) UpsertChannel(ctx context.Context, userID int64, rawType string, in ChannelInput) (domain.PushChannel, error) {
	channelType, err := domain.ParseChannelType(rawType)
	if err != nil {
		return domain.PushChannel{}, err
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}

	ch := domain.PushChannel{UserID: userID, Type: channelType, Name: strings.TrimSpace(in.Name), Active: active}
	switch channelType {
	case domain.ChannelWeCom:
		ch.Webhook = strings.TrimSpace(in.Webhook)
	case domain.ChannelFeishu:
		ch.Webhook = strings.TrimSpace(in.Webhook)
		ch.Secret = strings.TrimSpace(in.Secret)
	case domain.ChannelWeChat:
		ch.AppID = strings.TrimSpace(in.AppID)
		ch.AppSecret = strings.TrimSpace(in.AppSecret)
		ch.TemplateID = strings.TrimSpace(in.TemplateID)
		ch.OpenIDs = NormalizeOpenIDs(in.OpenIDs)
		ch.TemplateJSON = strings.TrimSpace(in.TemplateJSON)
	}

	existing, err := s.channels.GetChannelByType(ctx, userID, channelType)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		created, err := s.channels.CreateChannel(ctx, ch)
		if err != nil {
			return domain.PushChannel{}, fmt.Errorf("создание канала: %w", err)
		}
		return created, nil
	case err != nil:
		return domain.PushChannel{}, fmt.Errorf("получение канала: %w", err)
	}

	ch.ID = existing.ID
	ch.CreatedAt = existing.CreatedAt
	if err := s.channels.UpdateChannel(ctx, ch); err != nil {
		return domain.PushChannel{}, fmt.Errorf("обновление канала: %w", err)
	}
	return ch, nil
}

// NormalizeOpenIDs удаляет пустые и повторяющиеся получателей, сохраняя порядок.
func NormalizeOpenIDs(raw string) string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '，' || r == '\n' || r == ' '
	})
	seen := make(map[string]struct{}, len(parts))
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		cleaned = append(cleaned, id)
	}
	return strings.Join(cleaned, ",")
}

// ListSources возвращает RSS-источники пользователя.
func (s *Service) ListSources(ctx context.Context, userID int64) ([]domain.AiSource, error) {
	return s.sources.ListSources(ctx, userID)
}

// AddSource добавляет RSS-ленту. Повторное добавление того же адреса обновляет имя и включает ленту.
func (s *Service) AddSource(ctx context.Context, userID int64, name, rawURL string) (domain.AiSource, error) {
	feedURL, err := ParseFeedURL(rawURL)
	if err != nil {
		return domain.AiSource{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = feedURL
	}
	src, err := s.sources.CreateSource(ctx, domain.AiSource{
		UserID: userID,
		Type:   domain.SourceTypeRSS,
		Name:   name,
		URL:    feedURL,
		Active: true,
	})
	if err != nil {
		return domain.AiSource{}, fmt.Errorf("сохранение источника: %w", err)
	}
	return src, nil
}

// SetSourceActive включает или выключает источник пользователя.
func (s *Service) SetSourceActive(ctx context.Context, userID, id int64, active bool) error {
	return s.sources.SetSourceActive(ctx, userID, id, active)
}

// DeleteSource удаляет источник пользователя.
func (s *Service) DeleteSource(ctx context.Context, userID, id int64) error {
	return s.sources.DeleteSource(ctx, userID, id)
}

// ParseFeedURL проверяет, что адрес ленты является абсолютной http(s) ссылкой.
func ParseFeedURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", ErrSourceURLInvalid
	}
	return trimmed, nil
}
