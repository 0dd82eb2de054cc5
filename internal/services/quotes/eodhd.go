package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	// eodhdBaseURL is the base URL for the EODHD API.
	eodhdBaseURL = "https://eodhd.com/api"

	eodhdTimeout   = 30 * time.Second
	eodhdRateLimit = 10
)

// EODHDClient is a minimal EODHD API client covering the real-time
// quote endpoint. Only active when an API token is configured.
type EODHDClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// EODHDOption configures the EODHDClient.
type EODHDOption func(*EODHDClient)

// WithEODHDBaseURL sets a custom base URL.
func WithEODHDBaseURL(baseURL string) EODHDOption {
	return func(c *EODHDClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithEODHDHTTPClient sets a custom HTTP client.
func WithEODHDHTTPClient(httpClient *http.Client) EODHDOption {
	return func(c *EODHDClient) {
		c.httpClient = httpClient
	}
}

// NewEODHDClient creates a new EODHD API client.
func NewEODHDClient(apiKey string, logger arbor.ILogger, opts ...EODHDOption) *EODHDClient {
	c := &EODHDClient{
		baseURL: eodhdBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: eodhdTimeout,
		},
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(eodhdRateLimit), eodhdRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// eodhdQuote is the real-time endpoint payload. Close carries the last
// traded price.
type eodhdQuote struct {
	Code      string  `json:"code"`
	Close     float64 `json:"close"`
	Timestamp int64   `json:"timestamp"`
}

// RealTimeQuote retrieves the current price for a symbol.
func (c *EODHDClient) RealTimeQuote(ctx context.Context, symbol string) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	params := url.Values{}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s/real-time/%s?%s", c.baseURL, url.PathEscape(symbol), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	if c.logger != nil {
		c.logger.Debug().Str("symbol", symbol).Msg("EODHD API request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("eodhd returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload eodhdQuote
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	if payload.Close <= 0 {
		return 0, fmt.Errorf("eodhd returned no price for %s", symbol)
	}
	return payload.Close, nil
}
