package schedule

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Schedule вычисляет следующий момент запуска. Совместим с cron.Schedule.
type Schedule interface {
	Next(time.Time) time.Time
}

// ParseSchedule разбирает расписание: стандартное cron-выражение из пяти полей,
// дескриптор вроде "@daily"/"@every 30m" или просто длительность "30m".
func ParseSchedule(expr string) (Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("пустое расписание")
	}
	if d, err := time.ParseDuration(expr); err == nil {
		if d <= 0 {
			return nil, fmt.Errorf("некорректный интервал %q", expr)
		}
		return cron.Every(d), nil
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("разбор расписания %q: %w", expr, err)
	}
	return sched, nil
}

// Periodic запускает фоновую задачу по расписанию до отмены контекста.
// Запуск, пришедшийся на ещё не завершённый предыдущий, отбрасывается.
type Periodic struct {
	Name     string
	Schedule Schedule
	Run      func(ctx context.Context) error
	Log      zerolog.Logger

	running atomic.Bool
	wg      sync.WaitGroup
}

// Start блокируется до отмены ctx и дожидается завершения текущего запуска.
func (p *Periodic) Start(ctx context.Context) {
	logger := p.Log.With().Str("trigger", p.Name).Logger()
	logger.Info().Msg("periodic: запущен")
	defer p.wg.Wait()

	for {
		now := time.Now()
		next := p.Schedule.Next(now)
		if next.IsZero() {
			logger.Warn().Msg("periodic: расписание не содержит следующего запуска")
			return
		}
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info().Msg("periodic: остановлен")
			return
		case <-timer.C:
			p.fire(ctx, logger)
		}
	}
}

func (p *Periodic) fire(ctx context.Context, logger zerolog.Logger) {
	if !p.running.CompareAndSwap(false, true) {
		logger.Warn().Msg("periodic: предыдущий запуск не завершён, пропуск")
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.running.Store(false)
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Msg("periodic: паника в задаче")
			}
		}()
		if err := p.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("periodic: задача завершилась ошибкой")
		}
	}()
}
