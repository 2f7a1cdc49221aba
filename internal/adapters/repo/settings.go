package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"agent-radar/internal/domain"
	"agent-radar/internal/infra/metrics"
)

const channelColumns = `id, user_id, type, name, webhook, secret, app_id, app_secret, template_id, openids, template_json, active, created_at`

func scanChannel(row rowScanner) (domain.PushChannel, error) {
	var (
		c  domain.PushChannel
		ct string
	)
	err := row.Scan(&c.ID, &c.UserID, &ct, &c.Name, &c.Webhook, &c.Secret, &c.AppID, &c.AppSecret, &c.TemplateID, &c.OpenIDs, &c.TemplateJSON, &c.Active, &c.CreatedAt)
	c.Type = domain.ChannelType(ct)
	return c, err
}

func (p *Postgres) queryChannels(ctx context.Context, operation, query string, args ...any) ([]domain.PushChannel, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", operation, "push_channels", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PushChannel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListChannels возвращает все каналы пользователя.
func (p *Postgres) ListChannels(ctx context.Context, userID int64) ([]domain.PushChannel, error) {
	return p.queryChannels(ctx, "channels_list", `SELECT `+channelColumns+` FROM push_channels WHERE user_id = $1 ORDER BY id`, userID)
}

// ListActiveChannels возвращает активные каналы пользователя.
func (p *Postgres) ListActiveChannels(ctx context.Context, userID int64) ([]domain.PushChannel, error) {
	return p.queryChannels(ctx, "channels_list_active", `SELECT `+channelColumns+` FROM push_channels WHERE user_id = $1 AND active ORDER BY id`, userID)
}

// GetChannelByType возвращает первый канал пользователя указанного типа.
func (p *Postgres) GetChannelByType(ctx context.Context, userID int64, channelType domain.ChannelType) (domain.PushChannel, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	c, err := scanChannel(p.pool.QueryRow(ctx, `SELECT `+channelColumns+` FROM push_channels WHERE user_id = $1 AND type = $2 ORDER BY id LIMIT 1`, userID, string(channelType)))
	metrics.ObserveNetworkRequest("postgres", "channels_get_by_type", "push_channels", start, err)
	return c, notFound(err)
}

// CreateChannel добавляет канал.
func (p *Postgres) CreateChannel(ctx context.Context, c domain.PushChannel) (domain.PushChannel, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	created, err := scanChannel(p.pool.QueryRow(ctx, `
INSERT INTO push_channels (user_id, type, name, webhook, secret, app_id, app_secret, template_id, openids, template_json, active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
RETURNING `+channelColumns,
		c.UserID, string(c.Type), c.Name, c.Webhook, c.Secret, c.AppID, c.AppSecret, c.TemplateID, c.OpenIDs, c.TemplateJSON, c.Active))
	metrics.ObserveNetworkRequest("postgres", "channels_insert", "push_channels", start, err)
	return created, err
}

// UpdateChannel обновляет настройки канала.
func (p *Postgres) UpdateChannel(ctx context.Context, c domain.PushChannel) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE push_channels SET name=$3, webhook=$4, secret=$5, app_id=$6, app_secret=$7, template_id=$8,
    openids=$9, template_json=$10, active=$11
WHERE id=$1 AND user_id=$2
`, c.ID, c.UserID, c.Name, c.Webhook, c.Secret, c.AppID, c.AppSecret, c.TemplateID, c.OpenIDs, c.TemplateJSON, c.Active)
	metrics.ObserveNetworkRequest("postgres", "channels_update", "push_channels", start, err)
	return err
}

const scheduleColumns = `id, user_id, time, timezone, frequency, content_json::text, updated_at`

func scanSchedule(row rowScanner) (domain.PushSchedule, error) {
	var (
		s         domain.PushSchedule
		frequency string
		content   string
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.Time, &s.Timezone, &frequency, &content, &s.UpdatedAt); err != nil {
		return domain.PushSchedule{}, err
	}
	s.Frequency = domain.Frequency(frequency)
	s.Content = domain.ParseContentConfig([]byte(content))
	return s, nil
}

// GetSchedule возвращает расписание пользователя.
func (p *Postgres) GetSchedule(ctx context.Context, userID int64) (domain.PushSchedule, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	s, err := scanSchedule(p.pool.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM push_schedules WHERE user_id = $1`, userID))
	metrics.ObserveNetworkRequest("postgres", "schedules_get", "push_schedules", start, err)
	return s, notFound(err)
}

// CreateSchedule создаёт расписание или возвращает уже существующее.
func (p *Postgres) CreateSchedule(ctx context.Context, s domain.PushSchedule) (domain.PushSchedule, error) {
	content, err := json.Marshal(s.Content)
	if err != nil {
		return domain.PushSchedule{}, fmt.Errorf("marshal content: %w", err)
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	created, err := scanSchedule(p.pool.QueryRow(ctx, `
INSERT INTO push_schedules (user_id, time, timezone, frequency, content_json)
VALUES ($1,$2,$3,$4,$5::jsonb)
ON CONFLICT (user_id) DO NOTHING
RETURNING `+scheduleColumns,
		s.UserID, s.Time, s.Timezone, string(s.Frequency), string(content)))
	metrics.ObserveNetworkRequest("postgres", "schedules_insert", "push_schedules", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return p.GetSchedule(ctx, s.UserID)
	}
	return created, err
}

// UpdateSchedule сохраняет расписание пользователя.
func (p *Postgres) UpdateSchedule(ctx context.Context, s domain.PushSchedule) error {
	content, err := json.Marshal(s.Content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err = p.pool.Exec(ctx, `
INSERT INTO push_schedules (user_id, time, timezone, frequency, content_json)
VALUES ($1,$2,$3,$4,$5::jsonb)
ON CONFLICT (user_id) DO UPDATE SET time=EXCLUDED.time, timezone=EXCLUDED.timezone,
    frequency=EXCLUDED.frequency, content_json=EXCLUDED.content_json, updated_at=now()
`, s.UserID, s.Time, s.Timezone, string(s.Frequency), string(content))
	metrics.ObserveNetworkRequest("postgres", "schedules_update", "push_schedules", start, err)
	return err
}

// ListSchedules возвращает расписания всех пользователей.
func (p *Postgres) ListSchedules(ctx context.Context) ([]domain.PushSchedule, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT `+scheduleColumns+` FROM push_schedules ORDER BY user_id`)
	metrics.ObserveNetworkRequest("postgres", "schedules_list", "push_schedules", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PushSchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const sourceColumns = `id, user_id, type, name, url, active, created_at`

func (p *Postgres) querySources(ctx context.Context, operation, query string, args ...any) ([]domain.AiSource, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", operation, "ai_sources", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AiSource
	for rows.Next() {
		var s domain.AiSource
		if err := rows.Scan(&s.ID, &s.UserID, &s.Type, &s.Name, &s.URL, &s.Active, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListSources возвращает RSS-источники пользователя.
func (p *Postgres) ListSources(ctx context.Context, userID int64) ([]domain.AiSource, error) {
	return p.querySources(ctx, "sources_list", `SELECT `+sourceColumns+` FROM ai_sources WHERE user_id = $1 ORDER BY id`, userID)
}

// ListActiveSources возвращает активные источники всех пользователей.
func (p *Postgres) ListActiveSources(ctx context.Context) ([]domain.AiSource, error) {
	return p.querySources(ctx, "sources_list_active", `SELECT `+sourceColumns+` FROM ai_sources WHERE active ORDER BY id`)
}

// CreateSource добавляет источник; повтор URL обновляет имя и включает источник.
func (p *Postgres) CreateSource(ctx context.Context, s domain.AiSource) (domain.AiSource, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	if s.Type == "" {
		s.Type = domain.SourceTypeRSS
	}

	var created domain.AiSource
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO ai_sources (user_id, type, name, url, active)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (user_id, url) DO UPDATE SET name = EXCLUDED.name, active = EXCLUDED.active
RETURNING `+sourceColumns,
		s.UserID, s.Type, s.Name, s.URL, s.Active).
		Scan(&created.ID, &created.UserID, &created.Type, &created.Name, &created.URL, &created.Active, &created.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "sources_insert", "ai_sources", start, err)
	return created, err
}

// SetSourceActive включает или выключает источник пользователя.
func (p *Postgres) SetSourceActive(ctx context.Context, userID, id int64, active bool) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `UPDATE ai_sources SET active = $3 WHERE id = $1 AND user_id = $2`, id, userID, active)
	metrics.ObserveNetworkRequest("postgres", "sources_set_active", "ai_sources", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteSource удаляет источник пользователя.
func (p *Postgres) DeleteSource(ctx context.Context, userID, id int64) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM ai_sources WHERE id = $1 AND user_id = $2`, id, userID)
	metrics.ObserveNetworkRequest("postgres", "sources_delete", "ai_sources", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
