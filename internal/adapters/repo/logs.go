package repo

import (
	"context"
	"errors"
	"time"

	"agent-radar/internal/domain"
	"agent-radar/internal/infra/metrics"
)

// InsertPushLog записывает попытку доставки.
// Повтор (user, channel, sent_key) отбрасывается уникальным индексом, тогда возвращается false.
func (p *Postgres) InsertPushLog(ctx context.Context, entry domain.PushLog) (bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var channelID *int64
	if entry.ChannelID > 0 {
		channelID = &entry.ChannelID
	}

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
INSERT INTO push_logs (user_id, channel_id, status, detail, sent_key)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (user_id, channel_id, sent_key) WHERE sent_key IS NOT NULL DO NOTHING
`, entry.UserID, channelID, string(entry.Status), entry.Detail, nullString(entry.SentKey))
	metrics.ObserveNetworkRequest("postgres", "push_logs_insert", "push_logs", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// PushLogExists проверяет, была ли попытка доставки для слота.
func (p *Postgres) PushLogExists(ctx context.Context, userID, channelID int64, sentKey string) (bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var exists bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM push_logs WHERE user_id = $1 AND channel_id = $2 AND sent_key = $3)
`, userID, channelID, sentKey).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "push_logs_exists", "push_logs", start, err)
	return exists, err
}

// ListPushLogs возвращает последние попытки доставки; при userID = 0 по всем пользователям.
func (p *Postgres) ListPushLogs(ctx context.Context, userID int64, limit int) ([]domain.PushLog, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, user_id, COALESCE(channel_id, 0), status, detail, COALESCE(sent_key, ''), sent_at
FROM push_logs
WHERE $1::bigint = 0 OR user_id = $1::bigint
ORDER BY sent_at DESC, id DESC
LIMIT $2
`, userID, limit)
	metrics.ObserveNetworkRequest("postgres", "push_logs_list", "push_logs", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PushLog
	for rows.Next() {
		var (
			l      domain.PushLog
			status string
		)
		if err := rows.Scan(&l.ID, &l.UserID, &l.ChannelID, &status, &l.Detail, &l.SentKey, &l.SentAt); err != nil {
			return nil, err
		}
		l.Status = domain.PushStatus(status)
		out = append(out, l)
	}
	return out, rows.Err()
}

// AdminStats считает пользователей, активные каналы и попытки доставки.
func (p *Postgres) AdminStats(ctx context.Context) (domain.AdminStats, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var stats domain.AdminStats
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT (SELECT count(*) FROM users),
       (SELECT count(*) FROM push_channels WHERE active),
       (SELECT count(*) FROM push_logs),
       (SELECT count(*) FROM push_logs WHERE status = $1)
`, string(domain.PushStatusSuccess)).Scan(&stats.UserCount, &stats.ChannelCount, &stats.LogCount, &stats.SuccessCount)
	metrics.ObserveNetworkRequest("postgres", "admin_stats", "push_logs", start, err)
	return stats, err
}

// ListPushLogsPage возвращает страницу журнала по убыванию id вместе с данными пользователя и канала.
func (p *Postgres) ListPushLogsPage(ctx context.Context, q domain.PushLogQuery) (domain.PushLogPage, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	q.Limit = clampLimit(q.Limit, 20, 100)
	q.Page = max(q.Page, 1)

	var page domain.PushLogPage
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT count(*) FROM push_logs WHERE $1::text = '' OR status = $1::text
`, string(q.Status)).Scan(&page.Total)
	metrics.ObserveNetworkRequest("postgres", "push_logs_count", "push_logs", start, err)
	if err != nil {
		return page, err
	}

	start = time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT l.id, l.user_id, COALESCE(l.channel_id, 0), l.status, l.detail, COALESCE(l.sent_key, ''), l.sent_at,
       COALESCE(u.email, ''), COALESCE(u.name, ''), COALESCE(c.type, ''), COALESCE(c.name, '')
FROM push_logs l
LEFT JOIN users u ON u.id = l.user_id
LEFT JOIN push_channels c ON c.id = l.channel_id
WHERE $1::text = '' OR l.status = $1::text
ORDER BY l.id DESC
LIMIT $2 OFFSET $3
`, string(q.Status), q.Limit, q.Offset())
	metrics.ObserveNetworkRequest("postgres", "push_logs_page", "push_logs", start, err)
	if err != nil {
		return page, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			v      domain.PushLogView
			status string
		)
		if err := rows.Scan(&v.ID, &v.UserID, &v.ChannelID, &status, &v.Detail, &v.SentKey, &v.SentAt,
			&v.UserEmail, &v.UserName, &v.ChannelType, &v.ChannelName); err != nil {
			return page, err
		}
		v.Status = domain.PushStatus(status)
		page.Logs = append(page.Logs, v)
	}
	return page, rows.Err()
}

// GetJobRun возвращает метаданные последнего запуска задачи.
func (p *Postgres) GetJobRun(ctx context.Context, name string) (domain.JobRun, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var run domain.JobRun
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT name, last_run_at, last_status, last_message, last_count FROM data_jobs WHERE name = $1
`, name).Scan(&run.Name, &run.LastRunAt, &run.LastStatus, &run.LastMessage, &run.LastCount)
	metrics.ObserveNetworkRequest("postgres", "data_jobs_get", "data_jobs", start, err)
	return run, notFound(err)
}

// UpsertJobRun сохраняет итог запуска задачи.
func (p *Postgres) UpsertJobRun(ctx context.Context, run domain.JobRun) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO data_jobs (name, last_run_at, last_status, last_message, last_count)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (name) DO UPDATE SET
    last_run_at = EXCLUDED.last_run_at,
    last_status = EXCLUDED.last_status,
    last_message = EXCLUDED.last_message,
    last_count = EXCLUDED.last_count
`, run.Name, run.LastRunAt, run.LastStatus, run.LastMessage, run.LastCount)
	metrics.ObserveNetworkRequest("postgres", "data_jobs_upsert", "data_jobs", start, err)
	return err
}

// ListJobRuns возвращает состояние всех задач.
func (p *Postgres) ListJobRuns(ctx context.Context) ([]domain.JobRun, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT name, last_run_at, last_status, last_message, last_count FROM data_jobs ORDER BY name`)
	metrics.ObserveNetworkRequest("postgres", "data_jobs_list", "data_jobs", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.JobRun
	for rows.Next() {
		var run domain.JobRun
		if err := rows.Scan(&run.Name, &run.LastRunAt, &run.LastStatus, &run.LastMessage, &run.LastCount); err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (p *Postgres) deleteBefore(ctx context.Context, operation, table, query string, cutoff any) (int64, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, query, cutoff)
	metrics.ObserveNetworkRequest("postgres", operation, table, start, err)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteAiItemsBefore удаляет записи лент, сохранённые раньше cutoff.
func (p *Postgres) DeleteAiItemsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return p.deleteBefore(ctx, "ai_items_cleanup", "ai_items", `DELETE FROM ai_items WHERE created_at < $1`, cutoff)
}

// DeleteTrendingBefore удаляет снимки старше даты.
func (p *Postgres) DeleteTrendingBefore(ctx context.Context, cutoffDate string) (int64, error) {
	return p.deleteBefore(ctx, "trending_cleanup", "trending_snapshots", `DELETE FROM trending_snapshots WHERE snapshot_date < $1::date`, cutoffDate)
}

// DeleteSkillsBefore удаляет рейтинги старше даты.
func (p *Postgres) DeleteSkillsBefore(ctx context.Context, cutoffDate string) (int64, error) {
	return p.deleteBefore(ctx, "skills_cleanup", "skills_snapshots", `DELETE FROM skills_snapshots WHERE snapshot_date < $1::date`, cutoffDate)
}

// DeletePushLogsBefore удаляет старые попытки доставки.
func (p *Postgres) DeletePushLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return p.deleteBefore(ctx, "push_logs_cleanup", "push_logs", `DELETE FROM push_logs WHERE sent_at < $1`, cutoff)
}

// GetTranslation ищет перевод по хэшу исходного текста.
func (p *Postgres) GetTranslation(ctx context.Context, hash string) (string, bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var target string
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT target_text FROM translations WHERE hash = $1`, hash).Scan(&target)
	metrics.ObserveNetworkRequest("postgres", "translations_get", "translations", start, err)
	if err = notFound(err); errors.Is(err, domain.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return target, true, nil
}

// SaveTranslation добавляет перевод в кэш; существующие записи не перезаписываются.
func (p *Postgres) SaveTranslation(ctx context.Context, entry domain.TranslationEntry) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO translations (hash, source_text, target_text) VALUES ($1,$2,$3)
ON CONFLICT (hash) DO NOTHING
`, entry.Hash, entry.SourceText, entry.TargetText)
	metrics.ObserveNetworkRequest("postgres", "translations_insert", "translations", start, err)
	return err
}
