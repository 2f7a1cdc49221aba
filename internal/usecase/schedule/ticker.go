package schedule

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"agent-radar/internal/domain"
	"agent-radar/internal/infra/metrics"
	"agent-radar/internal/usecase/jobs"
)

// Refresher обновляет данные источников, если они устарели.
type Refresher interface {
	RefreshTrendingIfStale(ctx context.Context, minMinutes int) (jobs.Result, error)
	RefreshAiFeedsIfStale(ctx context.Context, minMinutes int) (jobs.Result, error)
}

// Dispatcher собирает дайджест и отправляет его в канал.
type Dispatcher interface {
	SendDigest(ctx context.Context, userID int64, channel domain.PushChannel, content domain.ContentConfig) error
}

// TickReport содержит сводку одного такта.
// Sent учитывает только отправки с записанным слотом; LogFailed считает доставленные без записи в журнал.
type TickReport struct {
	Dropped   bool `json:"dropped"`
	Evaluated int  `json:"evaluated"`
	Due       int  `json:"due"`
	Sent      int  `json:"sent"`
	Failed    int  `json:"failed"`
	Skipped   int  `json:"skipped"`
	LogFailed int  `json:"log_failed"`
}

// Ticker выполняет поминутную проверку расписаний.
type Ticker struct {
	schedules  domain.ScheduleRepo
	channels   domain.ChannelRepo
	logs       domain.PushLogRepo
	refresher  Refresher
	dispatcher Dispatcher
	log        zerolog.Logger

	running atomic.Bool
}

// NewTicker создаёт планировщик рассылок.
func NewTicker(schedules domain.ScheduleRepo, channels domain.ChannelRepo, logs domain.PushLogRepo, refresher Refresher, dispatcher Dispatcher, logger zerolog.Logger) *Ticker {
	return &Ticker{
		schedules:  schedules,
		channels:   channels,
		logs:       logs,
		refresher:  refresher,
		dispatcher: dispatcher,
		log:        logger.With().Str("component", "scheduler").Logger(),
	}
}

// Tick проверяет все расписания на момент now и рассылает дайджесты по наступившим слотам.
// Если предыдущий такт ещё идёт, такт отбрасывается.
func (t *Ticker) Tick(ctx context.Context, now time.Time) TickReport {
	if !t.running.CompareAndSwap(false, true) {
		metrics.TicksSkipped.Inc()
		t.log.Warn().Msg("scheduler: предыдущий такт не завершён, пропуск")
		return TickReport{Dropped: true}
	}
	defer t.running.Store(false)

	start := time.Now()
	defer func() { metrics.TickDuration.Observe(time.Since(start).Seconds()) }()

	t.refreshIfStale(ctx)

	var report TickReport
	schedules, err := t.schedules.ListSchedules(ctx)
	if err != nil {
		t.log.Error().Err(err).Msg("scheduler: ошибка выборки расписаний")
		return report
	}
	for _, s := range schedules {
		report.Evaluated++
		loc, fellBack := LoadLocation(s.Timezone)
		if fellBack {
			t.log.Warn().Int64("user", s.UserID).Str("timezone", s.Timezone).Msg("scheduler: неизвестный часовой пояс, используется пояс по умолчанию")
		}
		parts := PartsAt(now, loc)
		if !ShouldSend(s, parts) {
			continue
		}
		report.Due++
		t.deliver(ctx, s, SentKey(s, parts), &report)
	}
	if report.Due > 0 {
		t.log.Info().
			Int("due", report.Due).
			Int("sent", report.Sent).
			Int("failed", report.Failed).
			Int("skipped", report.Skipped).
			Int("log_failed", report.LogFailed).
			Msg("scheduler: такт обработан")
	}
	return report
}

func (t *Ticker) refreshIfStale(ctx context.Context) {
	if t.refresher == nil {
		return
	}
	if _, err := t.refresher.RefreshTrendingIfStale(ctx, jobs.DefaultTrendingStaleMinutes); err != nil {
		t.log.Error().Err(err).Msg("scheduler: ошибка обновления trending")
	}
	if _, err := t.refresher.RefreshAiFeedsIfStale(ctx, jobs.DefaultAiStaleMinutes); err != nil {
		t.log.Error().Err(err).Msg("scheduler: ошибка обновления лент")
	}
}

// deliver отправляет дайджест во все активные каналы пользователя, по одному разу на слот.
func (t *Ticker) deliver(ctx context.Context, s domain.PushSchedule, sentKey string, report *TickReport) {
	logger := t.log.With().Int64("user", s.UserID).Str("sent_key", sentKey).Logger()
	channels, err := t.channels.ListActiveChannels(ctx, s.UserID)
	if err != nil {
		logger.Error().Err(err).Msg("scheduler: ошибка выборки каналов")
		return
	}
	for _, ch := range channels {
		exists, err := t.logs.PushLogExists(ctx, s.UserID, ch.ID, sentKey)
		if err != nil {
			logger.Error().Err(err).Int64("channel", ch.ID).Msg("scheduler: ошибка проверки журнала")
			continue
		}
		if exists {
			report.Skipped++
			continue
		}

		entry := domain.PushLog{UserID: s.UserID, ChannelID: ch.ID, Status: domain.PushStatusSuccess, SentKey: sentKey}
		if err := t.dispatcher.SendDigest(ctx, s.UserID, ch, s.Content); err != nil {
			entry.Status = domain.PushStatusFailed
			entry.Detail = err.Error()
			report.Failed++
			logger.Error().Err(err).Int64("channel", ch.ID).Str("type", string(ch.Type)).Msg("scheduler: ошибка отправки")
		}

		inserted, err := t.logs.InsertPushLog(ctx, entry)
		if err != nil {
			if entry.Status == domain.PushStatusSuccess {
				report.LogFailed++
			}
			logger.Error().Err(err).Int64("channel", ch.ID).Msg("scheduler: ошибка записи журнала")
			continue
		}
		if !inserted {
			logger.Warn().Int64("channel", ch.ID).Msg("scheduler: слот уже записан параллельной попыткой")
		}
		// Отправка засчитывается только после записи слота в журнал.
		if entry.Status == domain.PushStatusSuccess {
			report.Sent++
		}
	}
}
