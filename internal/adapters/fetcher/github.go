package fetcher

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"agent-radar/internal/domain"
	"agent-radar/internal/infra/metrics"
)

const (
	githubTrendingURL = "https://github.com/trending?since=weekly"
	githubBaseURL     = "https://github.com"
	trendingSource    = "github_trending"
)

// GitHub разбирает страницу GitHub Trending за неделю.
type GitHub struct {
	http *resty.Client
	url  string
	log  zerolog.Logger
}

var _ domain.TrendingFetcher = (*GitHub)(nil)

// NewGitHub создаёт загрузчик GitHub Trending.
func NewGitHub(timeout time.Duration, logger zerolog.Logger) *GitHub {
	return NewGitHubWithURL(githubTrendingURL, timeout, logger)
}

// NewGitHubWithURL создаёт загрузчик с другим адресом страницы.
func NewGitHubWithURL(url string, timeout time.Duration, logger zerolog.Logger) *GitHub {
	return &GitHub{
		http: newRestyClient(timeout),
		url:  url,
		log:  logger.With().Str("component", "fetcher.github").Logger(),
	}
}

// FetchTrending загружает и разбирает страницу.
func (g *GitHub) FetchTrending(ctx context.Context) ([]domain.TrendingSnapshot, error) {
	start := time.Now()
	resp, err := g.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(g.url)
	if err != nil {
		metrics.ObserveNetworkRequest("fetcher", "github_trending", "github", start, err)
		return nil, &domain.FetchError{Source: trendingSource, Err: err}
	}
	body := resp.RawBody()
	defer body.Close()
	if resp.IsError() {
		err = fmt.Errorf("unexpected status %d", resp.StatusCode())
		metrics.ObserveNetworkRequest("fetcher", "github_trending", "github", start, err)
		return nil, &domain.FetchError{Source: trendingSource, Err: err}
	}

	repos, err := ParseTrending(body)
	metrics.ObserveNetworkRequest("fetcher", "github_trending", "github", start, err)
	if err != nil {
		return nil, &domain.FetchError{Source: trendingSource, Err: err}
	}
	g.log.Debug().Int("repos", len(repos)).Msg("github: trending разобран")
	return repos, nil
}

// ParseTrending извлекает репозитории из HTML страницы trending.
func ParseTrending(r io.Reader) ([]domain.TrendingSnapshot, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var repos []domain.TrendingSnapshot
	doc.Find("article.Box-row").Each(func(_ int, row *goquery.Selection) {
		href, ok := row.Find("h2 a").Attr("href")
		if !ok {
			return
		}
		path := strings.TrimSpace(href)
		owner, name, ok := strings.Cut(strings.TrimPrefix(path, "/"), "/")
		if !ok || owner == "" || name == "" {
			return
		}
		delta := row.Find("span.d-inline-block.float-sm-right").Text()
		delta = strings.Replace(delta, "stars this week", "", 1)

		repos = append(repos, domain.TrendingSnapshot{
			Owner:       owner,
			Name:        name,
			URL:         githubBaseURL + path,
			Description: strings.TrimSpace(row.Find("p").First().Text()),
			Language:    strings.TrimSpace(row.Find("span[itemprop='programmingLanguage']").Text()),
			Stars:       ParseNumber(row.Find("a[href$='/stargazers']").First().Text()),
			Forks:       ParseNumber(row.Find("a[href$='/forks']").First().Text()),
			StarsDelta:  ParseNumber(delta),
		})
	})
	return DeduplicateRepos(repos), nil
}

// DeduplicateRepos оставляет первое вхождение каждого репозитория; пути GitHub не различают регистр.
func DeduplicateRepos(repos []domain.TrendingSnapshot) []domain.TrendingSnapshot {
	return dedupeBy(repos, func(r domain.TrendingSnapshot) string { return strings.ToLower(r.URL) })
}

// ParseNumber разбирает счётчики вида "1,234", "1.2k", "3m". Неразборчивое значение даёт 0.
func ParseNumber(text string) int {
	s := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(text, ",", "")))
	if s == "" {
		return 0
	}
	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		multiplier = 1_000
		s = strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		multiplier = 1_000_000
		s = strings.TrimSuffix(s, "m")
	}
	if multiplier == 1 {
		// Хвостовой текст вроде "123 stars" отбрасывается.
		if i := strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
			s = s[:i]
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0
		}
		return n
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return int(math.Round(f * multiplier))
}
