// Package quotes resolves current market prices with a primary/fallback
// provider chain: Alpha Vantage when an API key is available, Yahoo
// Finance chart data otherwise, EODHD as a last resort when its token
// is configured.
package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ternarybob/analyst/internal/common"
	"github.com/ternarybob/analyst/internal/models"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	defaultAlphaVantageURL = "https://www.alphavantage.co"
	defaultYahooURL        = "https://query2.finance.yahoo.com"
)

// NotFoundError reports that no provider returned a usable price.
type NotFoundError struct {
	Symbol string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no price available for symbol %s", e.Symbol)
}

// Client fetches quotes from the provider chain. Safe for concurrent
// use.
type Client struct {
	httpClient      *http.Client
	alphaVantageURL string
	yahooURL        string
	apiKey          string
	userAgent       string
	limiter         *rate.Limiter
	eodhd           *EODHDClient
	logger          arbor.ILogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithAlphaVantageURL overrides the Alpha Vantage base URL.
func WithAlphaVantageURL(baseURL string) Option {
	return func(c *Client) {
		c.alphaVantageURL = strings.TrimRight(baseURL, "/")
	}
}

// WithYahooURL overrides the Yahoo Finance base URL.
func WithYahooURL(baseURL string) Option {
	return func(c *Client) {
		c.yahooURL = strings.TrimRight(baseURL, "/")
	}
}

// WithEODHD sets the EODHD client used as the final fallback.
func WithEODHD(eodhd *EODHDClient) Option {
	return func(c *Client) {
		c.eodhd = eodhd
	}
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(rps int) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}

// NewClient creates a quote client from configuration.
func NewClient(config *common.QuotesConfig, scrapers *common.ScraperConfig, logger arbor.ILogger, opts ...Option) *Client {
	c := &Client{
		httpClient:      &http.Client{Timeout: config.RequestTimeout},
		alphaVantageURL: defaultAlphaVantageURL,
		yahooURL:        defaultYahooURL,
		apiKey:          config.AlphaVantageKey,
		userAgent:       scrapers.UserAgent,
		logger:          logger,
	}
	if config.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), config.RateLimit)
	}
	if config.EODHDKey != "" {
		c.eodhd = NewEODHDClient(config.EODHDKey, logger)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Quote resolves the current price for a ticker. A per-request API key
// takes precedence over the configured one; without any key the Alpha
// Vantage hop is skipped entirely.
func (c *Client) Quote(ctx context.Context, ticker, market, apiKey string) (*models.Quote, error) {
	if strings.TrimSpace(ticker) == "" {
		return nil, fmt.Errorf("ticker is required")
	}

	symbol := common.BuildQuoteSymbol(ticker, market)

	key := apiKey
	if key == "" {
		key = c.apiKey
	}

	if key != "" {
		if quote, err := c.fetchAlphaVantage(ctx, symbol, key); err == nil {
			return quote, nil
		} else {
			c.logger.Debug().Str("symbol", symbol).Err(err).Msg("Alpha Vantage lookup missed, falling back to Yahoo")
		}
	}

	if quote, err := c.fetchYahoo(ctx, symbol); err == nil {
		return quote, nil
	} else {
		c.logger.Debug().Str("symbol", symbol).Err(err).Msg("Yahoo lookup missed")
	}

	if c.eodhd != nil {
		if price, err := c.eodhd.RealTimeQuote(ctx, symbol); err == nil {
			return &models.Quote{Price: price, Source: "eodhd", Symbol: symbol}, nil
		} else {
			c.logger.Debug().Str("symbol", symbol).Err(err).Msg("EODHD lookup missed")
		}
	}

	return nil, &NotFoundError{Symbol: symbol}
}

type alphaVantageResponse struct {
	GlobalQuote struct {
		Price string `json:"05. price"`
	} `json:"Global Quote"`
	Note        string `json:"Note"`
	Information string `json:"Information"`
}

func (c *Client) fetchAlphaVantage(ctx context.Context, symbol, apiKey string) (*models.Quote, error) {
	endpoint := fmt.Sprintf("%s/query?function=GLOBAL_QUOTE&symbol=%s&apikey=%s",
		c.alphaVantageURL, url.QueryEscape(symbol), url.QueryEscape(apiKey))

	var payload alphaVantageResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}

	// Note/Information payloads signal throttling, not data
	if payload.Note != "" || payload.Information != "" {
		return nil, fmt.Errorf("alpha vantage throttled request for %s", symbol)
	}

	price, err := strconv.ParseFloat(payload.GlobalQuote.Price, 64)
	if err != nil || price <= 0 {
		return nil, fmt.Errorf("alpha vantage returned no price for %s", symbol)
	}

	return &models.Quote{Price: price, Source: "alphavantage", Symbol: symbol}, nil
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
	} `json:"chart"`
}

func (c *Client) fetchYahoo(ctx context.Context, symbol string) (*models.Quote, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1d",
		c.yahooURL, url.PathEscape(symbol))

	var payload yahooChartResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}

	if len(payload.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo returned no chart data for %s", symbol)
	}

	price := payload.Chart.Result[0].Meta.RegularMarketPrice
	if price <= 0 {
		return nil, fmt.Errorf("yahoo returned no price for %s", symbol)
	}

	return &models.Quote{Price: price, Source: "yahoo", Symbol: symbol}, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
