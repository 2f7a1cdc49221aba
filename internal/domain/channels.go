package domain

import (
	"fmt"
	"strings"
	"time"
)

// ChannelType определяет транспорт доставки дайджеста.
type ChannelType string

const (
	// ChannelWeCom — групповой вебхук WeCom с markdown.
	ChannelWeCom ChannelType = "wecom"
	// ChannelFeishu — вебхук Feishu с текстом и HMAC-подписью.
	ChannelFeishu ChannelType = "feishu"
	// ChannelWeChat — шаблонное сообщение официального аккаунта WeChat.
	ChannelWeChat ChannelType = "wechat"
)

// ChannelTypes перечисляет поддерживаемые транспорты.
var ChannelTypes = []ChannelType{ChannelWeCom, ChannelFeishu, ChannelWeChat}

// ParseChannelType разбирает тип канала.
func ParseChannelType(value string) (ChannelType, error) {
	ct := ChannelType(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range ChannelTypes {
		if ct == known {
			return ct, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChannelType, value)
}

// PushChannel хранит настройки канала доставки пользователя.
// На пару (UserID, Type) приходится не больше одной записи.
type PushChannel struct {
	ID           int64       `json:"id"`
	UserID       int64       `json:"user_id"`
	Type         ChannelType `json:"type"`
	Name         string      `json:"name"`
	Webhook      string      `json:"webhook,omitempty"`
	Secret       string      `json:"secret,omitempty"`
	AppID        string      `json:"app_id,omitempty"`
	AppSecret    string      `json:"app_secret,omitempty"`
	TemplateID   string      `json:"template_id,omitempty"`
	OpenIDs      string      `json:"openids,omitempty"`
	TemplateJSON string      `json:"template_json,omitempty"`
	Active       bool        `json:"active"`
	CreatedAt    time.Time   `json:"created_at"`
}

// OpenIDList возвращает получателей шаблонного сообщения.
func (c PushChannel) OpenIDList() []string {
	var out []string
	for _, part := range strings.Split(c.OpenIDs, ",") {
		if id := strings.TrimSpace(part); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// AiSource описывает пользовательскую RSS-ленту.
type AiSource struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// SourceTypeRSS пока единственный поддерживаемый тип источника.
const SourceTypeRSS = "rss"

// FeedSource описывает ленту для сборщика.
type FeedSource struct {
	Name string
	URL  string
}

// DefaultFeeds используются, когда у пользователя нет своих источников.
var DefaultFeeds = []FeedSource{
	{Name: "OpenAI Blog", URL: "https://openai.com/blog/rss"},
	{Name: "Hugging Face", URL: "https://huggingface.co/blog/feed.xml"},
	{Name: "arXiv CS.AI", URL: "http://export.arxiv.org/rss/cs.AI"},
	{Name: "Anthropic News", URL: "https://www.anthropic.com/news/rss.xml"},
}

// DefaultFeedURLs возвращает адреса глобальных лент.
func DefaultFeedURLs() []string {
	urls := make([]string, 0, len(DefaultFeeds))
	for _, f := range DefaultFeeds {
		urls = append(urls, f.URL)
	}
	return urls
}
