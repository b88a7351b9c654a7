package encyclopedia

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/Secantwave/Health-Advisor/pkg/fn"
)

// Config configures a Scraper.
type Config struct {
	// BaseURL is the encyclopedia site root.
	BaseURL string
	// IndexPath is the main encyclopedia page path.
	IndexPath string
	// RequestsPerSecond throttles page fetches.
	RequestsPerSecond float64
	// Retry controls per-page fetch retries.
	Retry fn.RetryOpts
}

// DefaultConfig targets MedlinePlus with one request per second.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://medlineplus.gov",
		IndexPath:         "/encyclopedia.html",
		RequestsPerSecond: 1,
		Retry: fn.RetryOpts{
			MaxAttempts: 3,
			InitialWait: 2 * time.Second,
			MaxWait:     20 * time.Second,
			Jitter:      true,
		},
	}
}

// Scraper fetches encyclopedia pages with rate limiting and retry.
type Scraper struct {
	cfg     Config
	base    *url.URL
	client  *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewScraper creates a Scraper for the configured site.
func NewScraper(cfg Config, log *slog.Logger) (*Scraper, error) {
	if log == nil {
		log = slog.Default()
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("encyclopedia: parse base url %q: %w", cfg.BaseURL, err)
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &Scraper{
		cfg:  cfg,
		base: base,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		log:     log,
	}, nil
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) fn.Result[string] {
	if err := s.limiter.Wait(ctx); err != nil {
		return fn.Err[string](err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return fn.Err[string](err)
	}
	req.Header.Set("User-Agent", "health-advisor/1.0 (medical knowledge base ingestion)")

	resp, err := s.client.Do(req)
	if err != nil {
		return fn.Err[string](err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fn.Err[string](fmt.Errorf("http %d from %s", resp.StatusCode, pageURL))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fn.Err[string](fmt.Errorf("read body: %w", err))
	}
	return fn.Ok(string(body))
}

func (s *Scraper) fetchRetry(ctx context.Context, pageURL string) (string, error) {
	result := fn.Retry(ctx, s.cfg.Retry, func(ctx context.Context) fn.Result[string] {
		return s.fetch(ctx, pageURL)
	})
	return result.Unwrap()
}

// FetchIndexLinks returns the A-Z index page URLs from the main encyclopedia
// page.
func (s *Scraper) FetchIndexLinks(ctx context.Context) ([]string, error) {
	indexURL := s.base.JoinPath(s.cfg.IndexPath).String()
	page, err := s.fetchRetry(ctx, indexURL)
	if err != nil {
		return nil, fmt.Errorf("encyclopedia: fetch index %s: %w", indexURL, err)
	}
	links := IndexLinks(page, s.base)
	s.log.Info("found index pages", "count", len(links))
	return links, nil
}

// FetchArticleLinks returns the article links listed on one index page.
func (s *Scraper) FetchArticleLinks(ctx context.Context, indexURL string) ([]Link, error) {
	page, err := s.fetchRetry(ctx, indexURL)
	if err != nil {
		return nil, fmt.Errorf("encyclopedia: fetch %s: %w", indexURL, err)
	}
	u, err := url.Parse(indexURL)
	if err != nil {
		return nil, err
	}
	return ArticleLinks(page, u), nil
}

// ScrapeArticle fetches and extracts one article. ok=false means the page was
// fetched but yielded no usable document.
func (s *Scraper) ScrapeArticle(ctx context.Context, link Link) (Article, bool, error) {
	page, err := s.fetchRetry(ctx, link.URL)
	if err != nil {
		return Article{}, false, err
	}
	a, ok := ExtractArticle(page, link.AnchorTitle, link.URL)
	return a, ok, nil
}

// ScrapeAll crawls the full index and scrapes up to maxArticles articles.
// Per-page failures are logged and skipped; the crawl keeps going.
func (s *Scraper) ScrapeAll(ctx context.Context, maxArticles int) ([]Article, error) {
	indexLinks, err := s.FetchIndexLinks(ctx)
	if err != nil {
		return nil, err
	}

	var links []Link
	for _, idx := range indexLinks {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		found, err := s.FetchArticleLinks(ctx, idx)
		if err != nil {
			s.log.Warn("index page failed, skipping", "url", idx, "error", err)
			continue
		}
		links = append(links, found...)
	}
	s.log.Info("total articles found", "count", len(links))

	if maxArticles > 0 && len(links) > maxArticles {
		links = links[:maxArticles]
	}

	var articles []Article
	for i, link := range links {
		if ctx.Err() != nil {
			return articles, ctx.Err()
		}
		s.log.Info("scraping", "article", i+1, "of", len(links), "title", link.AnchorTitle)
		a, ok, err := s.ScrapeArticle(ctx, link)
		if err != nil {
			s.log.Warn("article failed, skipping", "url", link.URL, "error", err)
			continue
		}
		if !ok {
			s.log.Debug("article below threshold, skipping", "url", link.URL)
			continue
		}
		articles = append(articles, a)
	}
	s.log.Info("scrape complete", "articles", len(articles))
	return articles, nil
}
