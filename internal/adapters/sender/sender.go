// Package sender доставляет дайджест в WeCom, Feishu и шаблонные сообщения WeChat.
package sender

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultChunkDelay = 500 * time.Millisecond
)

// Options задаёт общие настройки транспортов.
type Options struct {
	Timeout time.Duration
	// ChunkDelay задаёт паузу между кусками одного сообщения. Отрицательное значение отключает паузу.
	ChunkDelay time.Duration
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return defaultTimeout
	}
	return o.Timeout
}

func (o Options) chunkDelay() time.Duration {
	switch {
	case o.ChunkDelay < 0:
		return 0
	case o.ChunkDelay == 0:
		return defaultChunkDelay
	default:
		return o.ChunkDelay
	}
}

func newRestyClient(timeout time.Duration) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
}

// pause ждёт d или отмены контекста.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
