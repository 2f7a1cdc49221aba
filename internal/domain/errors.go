package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound возвращается хранилищем при отсутствии записи.
	ErrNotFound = errors.New("не найдено")
	// ErrChannelNotFound означает, что у пользователя нет канала указанного типа.
	ErrChannelNotFound = errors.New("通道不存在")
	// ErrNoActiveChannels означает, что у пользователя нет активных каналов.
	ErrNoActiveChannels = errors.New("请先绑定推送通道")
	// ErrUnknownChannelType возвращается для неподдерживаемого транспорта.
	ErrUnknownChannelType = errors.New("未知推送通道")
	// ErrEmailTaken возвращается при повторной регистрации.
	ErrEmailTaken = errors.New("邮箱已注册")
	// ErrInvalidCredentials возвращается при неверном логине или пароле.
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
)

// FetchError означает, что источник недоступен или ответ не удалось разобрать.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// TransportError возвращается, когда канал отклонил отправку. Содержит код и сообщение апстрима.
type TransportError struct {
	Channel ChannelType
	Code    int
	Message string
}

func (e *TransportError) Error() string {
	label := string(e.Channel)
	switch e.Channel {
	case ChannelWeCom:
		label = "企微"
	case ChannelFeishu:
		label = "飞书"
	case ChannelWeChat:
		label = "公众号"
	}
	if e.Message == "" {
		return fmt.Sprintf("%s返回错误: %d", label, e.Code)
	}
	return fmt.Sprintf("%s返回错误: %d %s", label, e.Code, e.Message)
}

// ConfigError означает, что у канала не хватает настроек и отправка не начиналась.
type ConfigError struct {
	Channel ChannelType
	Reason  string
}

func (e *ConfigError) Error() string {
	return e.Reason
}

// Причины ConfigError.
const (
	ReasonWebhookMissing  = "Webhook 未配置"
	ReasonTemplateMissing = "模板消息 ID 未配置"
	ReasonOpenIDMissing   = "OpenID 未配置"
	ReasonAppCredsMissing = "AppID 或 AppSecret 未配置"
)
