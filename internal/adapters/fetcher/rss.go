package fetcher

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"agent-radar/internal/domain"
	"agent-radar/internal/infra/metrics"
)

const (
	defaultItemsPerFeed = 10
	maxSummaryRunes     = 500
	feedsSource         = "ai_feeds"
)

// RSS читает RSS/Atom ленты через gofeed.
type RSS struct {
	parser  *gofeed.Parser
	perFeed int
	log     zerolog.Logger
}

var _ domain.FeedFetcher = (*RSS)(nil)

// NewRSS создаёт загрузчик лент. perFeed ограничивает число записей из одной ленты.
func NewRSS(timeout time.Duration, perFeed int, logger zerolog.Logger) *RSS {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if perFeed <= 0 {
		perFeed = defaultItemsPerFeed
	}
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	parser.Client = &http.Client{Timeout: timeout}
	return &RSS{
		parser:  parser,
		perFeed: perFeed,
		log:     logger.With().Str("component", "fetcher.rss").Logger(),
	}
}

// FetchFeeds читает ленты по очереди. Ошибка отдельной ленты логируется и пропускается;
// FetchError возвращается, только если не удалось прочитать ни одну ленту.
func (f *RSS) FetchFeeds(ctx context.Context, feeds []domain.FeedSource) ([]domain.AiItem, error) {
	var (
		items  []domain.AiItem
		failed int
		errs   []error
	)
	for _, feed := range feeds {
		if err := ctx.Err(); err != nil {
			return nil, &domain.FetchError{Source: feedsSource, Err: err}
		}
		start := time.Now()
		parsed, err := f.parser.ParseURLWithContext(feed.URL, ctx)
		metrics.ObserveNetworkRequest("fetcher", "rss", feed.Name, start, err)
		if err != nil {
			failed++
			errs = append(errs, err)
			f.log.Warn().Err(err).Str("feed", feed.Name).Str("url", feed.URL).Msg("rss: лента недоступна")
			continue
		}
		items = append(items, ItemsFromFeed(feed, parsed, f.perFeed)...)
	}
	if len(feeds) > 0 && failed == len(feeds) {
		return nil, &domain.FetchError{Source: feedsSource, Err: errors.Join(errs...)}
	}
	items = DeduplicateByURL(items)
	f.log.Debug().Int("feeds", len(feeds)).Int("failed", failed).Int("items", len(items)).Msg("rss: ленты прочитаны")
	return items, nil
}

// ItemsFromFeed превращает первые limit записей ленты в AiItem. Записи без ссылки отбрасываются.
func ItemsFromFeed(source domain.FeedSource, feed *gofeed.Feed, limit int) []domain.AiItem {
	if feed == nil {
		return nil
	}
	entries := feed.Items
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	name := source.Name
	if name == "" {
		name = strings.TrimSpace(feed.Title)
	}
	out := make([]domain.AiItem, 0, len(entries))
	for _, entry := range entries {
		link := strings.TrimSpace(entry.Link)
		if link == "" {
			link = strings.TrimSpace(entry.GUID)
		}
		if link == "" {
			continue
		}
		summary := entry.Description
		if summary == "" {
			summary = entry.Content
		}
		out = append(out, domain.AiItem{
			Source:      name,
			SourceURL:   source.URL,
			Title:       strings.TrimSpace(entry.Title),
			URL:         link,
			Summary:     truncate(plainText(summary), maxSummaryRunes),
			PublishedAt: publishedAt(entry),
		})
	}
	return out
}

// DeduplicateByURL оставляет первую запись для каждой ссылки.
func DeduplicateByURL(items []domain.AiItem) []domain.AiItem {
	return dedupeBy(items, func(item domain.AiItem) string { return item.URL })
}

func publishedAt(entry *gofeed.Item) *time.Time {
	switch {
	case entry.PublishedParsed != nil:
		t := entry.PublishedParsed.UTC()
		return &t
	case entry.UpdatedParsed != nil:
		t := entry.UpdatedParsed.UTC()
		return &t
	default:
		return nil
	}
}

// plainText убирает HTML-разметку из описания записи.
func plainText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.Contains(s, "<") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
