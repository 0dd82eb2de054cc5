// Package news aggregates recent headlines from Yahoo Finance and
// Google News RSS feeds. Each feed runs inside its own failure
// boundary; when both come back empty the caller gets manual search
// links instead.
package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/analyst/internal/common"
	"github.com/ternarybob/analyst/internal/models"
	"github.com/ternarybob/arbor"
)

const (
	defaultYahooFeedURL  = "https://feeds.finance.yahoo.com"
	defaultGoogleFeedURL = "https://news.google.com"

	itemsPerFeed = 6
	maxItems     = 8
	// Below this count the Google feed is consulted as well.
	minPrimaryItems = 3
)

var tagRe = regexp.MustCompile(`<[^>]+>`)

// Service fetches and merges news feeds for one stock.
type Service struct {
	httpClient   *http.Client
	yahooFeedURL string
	googleURL    string
	userAgent    string
	logger       arbor.ILogger
}

// Option configures a Service.
type Option func(*Service)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(s *Service) {
		s.httpClient = httpClient
	}
}

// WithYahooFeedURL overrides the Yahoo feed base URL.
func WithYahooFeedURL(baseURL string) Option {
	return func(s *Service) {
		s.yahooFeedURL = strings.TrimRight(baseURL, "/")
	}
}

// WithGoogleFeedURL overrides the Google News base URL.
func WithGoogleFeedURL(baseURL string) Option {
	return func(s *Service) {
		s.googleURL = strings.TrimRight(baseURL, "/")
	}
}

// NewService creates a news service.
func NewService(config *common.ScraperConfig, logger arbor.ILogger, opts ...Option) *Service {
	s := &Service{
		httpClient:   &http.Client{Timeout: config.RequestTimeout},
		yahooFeedURL: defaultYahooFeedURL,
		googleURL:    defaultGoogleFeedURL,
		userAgent:    config.UserAgent,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch returns up to eight de-duplicated headlines. Zero headlines is
// not an error: the result then carries fallback search links.
func (s *Service) Fetch(ctx context.Context, ticker, name, market string) (*models.NewsResult, error) {
	if strings.TrimSpace(ticker) == "" {
		return nil, fmt.Errorf("ticker is required")
	}

	query := url.QueryEscape(strings.TrimSpace(ticker + " " + name + " stock"))
	var items []models.NewsItem

	yahooEndpoint := fmt.Sprintf("%s/rss/2.0/headline?s=%s&region=US&lang=en-US", s.yahooFeedURL, url.QueryEscape(ticker))
	yahooItems, err := s.fetchFeed(ctx, yahooEndpoint, "Yahoo Finance")
	if err != nil {
		s.logger.Debug().Str("ticker", ticker).Err(err).Msg("Yahoo feed fetch failed")
	}
	items = appendUnique(items, yahooItems)

	if len(items) < minPrimaryItems {
		googleEndpoint := fmt.Sprintf("%s/rss/search?q=%s&hl=en-US&gl=US&ceid=US:en", s.googleURL, query)
		googleItems, err := s.fetchFeed(ctx, googleEndpoint, "Google News")
		if err != nil {
			s.logger.Debug().Str("ticker", ticker).Err(err).Msg("Google feed fetch failed")
		}
		items = appendUnique(items, googleItems)
	}

	if len(items) == 0 {
		return &models.NewsResult{
			News: []models.NewsItem{},
			FallbackLinks: []models.FallbackLink{
				{Label: "Yahoo Finance news", URL: fmt.Sprintf("https://finance.yahoo.com/quote/%s/news", url.PathEscape(ticker))},
				{Label: "Google News search", URL: fmt.Sprintf("https://news.google.com/search?q=%s", query)},
				{Label: "Seeking Alpha", URL: fmt.Sprintf("https://seekingalpha.com/symbol/%s/news", url.PathEscape(ticker))},
			},
		}, nil
	}

	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return &models.NewsResult{News: items}, nil
}

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
	Source  string `xml:"source"`
}

func (s *Service) fetchFeed(ctx context.Context, endpoint, defaultSource string) ([]models.NewsItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var feed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}

	var items []models.NewsItem
	for _, item := range feed.Channel.Items {
		if len(items) >= itemsPerFeed {
			break
		}
		title := strings.TrimSpace(tagRe.ReplaceAllString(item.Title, ""))
		if title == "" {
			continue
		}
		source := strings.TrimSpace(item.Source)
		if source == "" {
			source = defaultSource
		}
		items = append(items, models.NewsItem{
			Title:  title,
			Link:   strings.TrimSpace(item.Link),
			Date:   formatPubDate(item.PubDate),
			Source: source,
		})
	}
	return items, nil
}

// appendUnique merges items, dropping duplicate titles.
func appendUnique(existing, extra []models.NewsItem) []models.NewsItem {
	seen := make(map[string]bool, len(existing))
	for _, item := range existing {
		seen[item.Title] = true
	}
	for _, item := range extra {
		if !seen[item.Title] {
			existing = append(existing, item)
			seen[item.Title] = true
		}
	}
	return existing
}

func formatPubDate(pubDate string) string {
	pubDate = strings.TrimSpace(pubDate)
	if pubDate == "" {
		return ""
	}
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822} {
		if ts, err := time.Parse(layout, pubDate); err == nil {
			return ts.Format("2006-01-02")
		}
	}
	return pubDate
}
