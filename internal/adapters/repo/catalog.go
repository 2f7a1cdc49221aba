package repo

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"agent-radar/internal/domain"
	"agent-radar/internal/infra/metrics"
)

const monthlyTrendingDays = 30

// SearchTrending возвращает репозитории выбранного периода с фильтрами языка и поиска.
func (p *Postgres) SearchTrending(ctx context.Context, q domain.TrendingQuery) ([]domain.TrendingSnapshot, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	limit := clampLimit(q.Limit, 20, 100)
	language := strings.TrimSpace(q.Language)
	pattern := likePattern(q.Search)

	var (
		rows pgx.Rows
		err  error
		op   string
	)
	start := time.Now()
	switch domain.NormalizeTrendingPeriod(string(q.Period)) {
	case domain.TrendingPeriodMonthly:
		op = "trending_search_monthly"
		rows, err = p.pool.Query(ctx, `
SELECT 0, owner, name, url, description, language,
       max(stars), max(forks), sum(stars_delta)::int,
       to_char(max(snapshot_date), 'YYYY-MM-DD'), max(created_at)
FROM trending_snapshots
WHERE snapshot_date >= current_date - $1::int
  AND ($2::text = '' OR language = $2::text)
  AND ($3::text = '' OR owner ILIKE $3::text OR name ILIKE $3::text OR description ILIKE $3::text)
GROUP BY owner, name, url, description, language
ORDER BY sum(stars_delta) DESC, max(stars) DESC
LIMIT $4
`, monthlyTrendingDays, language, pattern, limit)
	default:
		offset := 0
		if q.Period == domain.TrendingPeriodLastWeek {
			offset = 1
		}
		op = "trending_search_snapshot"
		// Если предыдущего снимка нет, берётся последний.
		rows, err = p.pool.Query(ctx, `
WITH dates AS (
    SELECT DISTINCT snapshot_date FROM trending_snapshots ORDER BY snapshot_date DESC LIMIT 2
), picked AS (
    SELECT COALESCE(
        (SELECT snapshot_date FROM dates ORDER BY snapshot_date DESC OFFSET $1 LIMIT 1),
        (SELECT max(snapshot_date) FROM dates)
    ) AS d
)
SELECT id, owner, name, url, description, language, stars, forks, stars_delta,
       to_char(snapshot_date, 'YYYY-MM-DD'), created_at
FROM trending_snapshots
WHERE snapshot_date = (SELECT d FROM picked)
  AND ($2::text = '' OR language = $2::text)
  AND ($3::text = '' OR owner ILIKE $3::text OR name ILIKE $3::text OR description ILIKE $3::text)
ORDER BY stars_delta DESC, stars DESC, id ASC
LIMIT $4
`, offset, language, pattern, limit)
	}
	metrics.ObserveNetworkRequest("postgres", op, "trending_snapshots", start, err)
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

// SearchAiItems возвращает записи лент с поиском по заголовку, описанию и источнику.
func (p *Postgres) SearchAiItems(ctx context.Context, q domain.AiItemQuery) ([]domain.AiItem, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	limit := clampLimit(q.Limit, 20, 500)
	sourceURLs := q.SourceURLs
	if sourceURLs == nil {
		sourceURLs = []string{}
	}

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, source, source_url, title, url, summary, published_at, created_at
FROM ai_items
WHERE (cardinality($1::text[]) = 0 OR source_url = ANY($1::text[]))
  AND ($2::text = '' OR title ILIKE $2::text OR summary ILIKE $2::text OR source ILIKE $2::text)
ORDER BY published_at DESC NULLS LAST, id DESC
LIMIT $3
`, sourceURLs, likePattern(q.Search), limit)
	metrics.ObserveNetworkRequest("postgres", "ai_items_search", "ai_items", start, err)
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

// SearchSkills возвращает страницу последнего рейтинга и число совпадений в нём.
func (p *Postgres) SearchSkills(ctx context.Context, q domain.SkillsQuery) (domain.SkillsPage, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	listType := q.ListType
	if listType == "" {
		listType = domain.SkillsTrending
	}
	page := domain.SkillsPage{ListType: listType}
	limit := clampLimit(q.Limit, 20, 100)
	pattern := likePattern(q.Search)

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT COALESCE(to_char(max(snapshot_date), 'YYYY-MM-DD'), '')
FROM skills_snapshots
WHERE list_type = $1
`, string(listType)).Scan(&page.SnapshotDate)
	metrics.ObserveNetworkRequest("postgres", "skills_snapshot_date", "skills_snapshots", start, err)
	if err != nil || page.SnapshotDate == "" {
		return page, err
	}

	const where = `
WHERE list_type = $1 AND snapshot_date = $2::date
  AND ($3::text = '' OR name ILIKE $3::text OR source ILIKE $3::text OR skill_id ILIKE $3::text)`

	start = time.Now()
	err = p.pool.QueryRow(ctx, `SELECT count(*) FROM skills_snapshots`+where, string(listType), page.SnapshotDate, pattern).Scan(&page.Total)
	metrics.ObserveNetworkRequest("postgres", "skills_count", "skills_snapshots", start, err)
	if err != nil {
		return page, err
	}

	start = time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, rank, source, skill_id, name, installs, installs_yesterday, change,
       to_char(snapshot_date, 'YYYY-MM-DD')
FROM skills_snapshots`+where+`
ORDER BY rank ASC
LIMIT $4
`, string(listType), page.SnapshotDate, pattern, limit)
	metrics.ObserveNetworkRequest("postgres", "skills_search", "skills_snapshots", start, err)
	if err != nil {
		return page, err
	}
	defer rows.Close()

	for rows.Next() {
		item := domain.SkillItem{ListType: listType}
		if err := rows.Scan(&item.ID, &item.Rank, &item.Source, &item.SkillID, &item.Name, &item.Installs, &item.InstallsYesterday, &item.Change, &item.SnapshotDate); err != nil {
			return page, err
		}
		page.Items = append(page.Items, item)
	}
	return page, rows.Err()
}

// likePattern строит шаблон ILIKE для поиска подстроки; пустой запрос отключает фильтр.
func likePattern(search string) string {
	search = strings.TrimSpace(search)
	if search == "" {
		return ""
	}
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(search)
	return "%" + escaped + "%"
}

func clampLimit(limit, fallback, maxValue int) int {
	if limit <= 0 {
		return fallback
	}
	return min(limit, maxValue)
}
