package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"agent-radar/internal/domain"
	"agent-radar/internal/infra/metrics"
)

// ReplaceTrendingSnapshot заменяет снимок GitHub Trending за дату целиком.
func (p *Postgres) ReplaceTrendingSnapshot(ctx context.Context, date string, repos []domain.TrendingSnapshot) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	return p.inTx(ctx, "trending_snapshots", func(tx pgx.Tx) error {
		start := time.Now()
		_, err := tx.Exec(ctx, `DELETE FROM trending_snapshots WHERE snapshot_date = $1::date`, date)
		metrics.ObserveNetworkRequest("postgres", "trending_delete_date", "trending_snapshots", start, err)
		if err != nil {
			return err
		}
		if len(repos) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for _, r := range repos {
			batch.Queue(`
INSERT INTO trending_snapshots (owner, name, url, description, language, stars, forks, stars_delta, snapshot_date)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::date)
`, r.Owner, r.Name, r.URL, r.Description, r.Language, r.Stars, r.Forks, r.StarsDelta, date)
		}
		start = time.Now()
		err = tx.SendBatch(ctx, batch).Close()
		metrics.ObserveNetworkRequest("postgres", "trending_insert_batch", "trending_snapshots", start, err)
		return err
	})
}

// LatestTrending возвращает последний снимок.
func (p *Postgres) LatestTrending(ctx context.Context, limit int) ([]domain.TrendingSnapshot, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	if limit <= 0 {
		limit = 20
	}

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, owner, name, url, description, language, stars, forks, stars_delta,
       to_char(snapshot_date, 'YYYY-MM-DD'), created_at
FROM trending_snapshots
WHERE snapshot_date = (SELECT max(snapshot_date) FROM trending_snapshots)
ORDER BY stars_delta DESC, stars DESC, id ASC
LIMIT $1
`, limit)
	metrics.ObserveNetworkRequest("postgres", "trending_latest", "trending_snapshots", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TrendingSnapshot
	for rows.Next() {
		var r domain.TrendingSnapshot
		if err := rows.Scan(&r.ID, &r.Owner, &r.Name, &r.URL, &r.Description, &r.Language, &r.Stars, &r.Forks, &r.StarsDelta, &r.SnapshotDate, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertAiItems вставляет записи лент, обновляя существующие по URL.
func (p *Postgres) UpsertAiItems(ctx context.Context, items []domain.AiItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`
INSERT INTO ai_items (source, source_url, title, url, summary, published_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (url) DO UPDATE SET
    source = EXCLUDED.source,
    source_url = EXCLUDED.source_url,
    title = EXCLUDED.title,
    summary = EXCLUDED.summary,
    published_at = COALESCE(EXCLUDED.published_at, ai_items.published_at)
`, item.Source, item.SourceURL, item.Title, item.URL, item.Summary, item.PublishedAt)
	}
	start := time.Now()
	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()
	saved := 0
	for range items {
		tag, err := br.Exec()
		if err != nil {
			metrics.ObserveNetworkRequest("postgres", "ai_items_upsert", "ai_items", start, err)
			return saved, err
		}
		saved += int(tag.RowsAffected())
	}
	metrics.ObserveNetworkRequest("postgres", "ai_items_upsert", "ai_items", start, nil)
	return saved, nil
}

// LatestAiItems возвращает свежие записи выбранных лент.
func (p *Postgres) LatestAiItems(ctx context.Context, sourceURLs []string, limit int) ([]domain.AiItem, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	if limit <= 0 {
		limit = 20
	}
	if sourceURLs == nil {
		sourceURLs = []string{}
	}

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, source, source_url, title, url, summary, published_at, created_at
FROM ai_items
WHERE cardinality($1::text[]) = 0 OR source_url = ANY($1::text[])
ORDER BY published_at DESC NULLS LAST, id DESC
LIMIT $2
`, sourceURLs, limit)
	metrics.ObserveNetworkRequest("postgres", "ai_items_latest", "ai_items", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AiItem
	for rows.Next() {
		var item domain.AiItem
		if err := rows.Scan(&item.ID, &item.Source, &item.SourceURL, &item.Title, &item.URL, &item.Summary, &item.PublishedAt, &item.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// ReplaceSkillsSnapshot заменяет рейтинг за дату; ранги переназначаются с 1 подряд.
func (p *Postgres) ReplaceSkillsSnapshot(ctx context.Context, date string, listType domain.SkillsListType, items []domain.SkillItem) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	return p.inTx(ctx, "skills_snapshots", func(tx pgx.Tx) error {
		start := time.Now()
		_, err := tx.Exec(ctx, `DELETE FROM skills_snapshots WHERE snapshot_date = $1::date AND list_type = $2`, date, string(listType))
		metrics.ObserveNetworkRequest("postgres", "skills_delete_partition", "skills_snapshots", start, err)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for i, item := range items {
			batch.Queue(`
INSERT INTO skills_snapshots (list_type, rank, source, skill_id, name, installs, installs_yesterday, change, snapshot_date)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::date)
`, string(listType), i+1, item.Source, item.SkillID, item.Name, item.Installs, item.InstallsYesterday, item.Change, date)
		}
		start = time.Now()
		err = tx.SendBatch(ctx, batch).Close()
		metrics.ObserveNetworkRequest("postgres", "skills_insert_batch", "skills_snapshots", start, err)
		return err
	})
}

// LatestSkills возвращает последний рейтинг выбранного типа.
func (p *Postgres) LatestSkills(ctx context.Context, listType domain.SkillsListType, limit int) ([]domain.SkillItem, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, list_type, rank, source, skill_id, name, installs, installs_yesterday, change,
       to_char(snapshot_date, 'YYYY-MM-DD')
FROM skills_snapshots
WHERE list_type = $1
  AND snapshot_date = (SELECT max(snapshot_date) FROM skills_snapshots WHERE list_type = $1)
ORDER BY rank ASC
LIMIT $2
`, string(listType), limit)
	metrics.ObserveNetworkRequest("postgres", "skills_latest", "skills_snapshots", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SkillItem
	for rows.Next() {
		var (
			item     domain.SkillItem
			listName string
		)
		if err := rows.Scan(&item.ID, &listName, &item.Rank, &item.Source, &item.SkillID, &item.Name, &item.Installs, &item.InstallsYesterday, &item.Change, &item.SnapshotDate); err != nil {
			return nil, err
		}
		item.ListType = domain.SkillsListType(listName)
		out = append(out, item)
	}
	return out, rows.Err()
}
