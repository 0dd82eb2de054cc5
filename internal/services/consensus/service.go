// Package consensus scrapes broker consensus data from Naver Finance.
// Every sub-source runs inside its own failure boundary: a missing or
// malformed page leaves its fields empty instead of failing the call.
package consensus

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/analyst/internal/common"
	"github.com/ternarybob/analyst/internal/models"
	"github.com/ternarybob/arbor"
)

const (
	defaultBaseURL = "https://finance.naver.com"
	maxReports     = 10
	returnReports  = 8
)

var (
	targetPriceRe  = regexp.MustCompile(`목표주가[^<]*<[^>]+>[^<]*<[^>]+>([0-9,]+)`)
	nowValRe       = regexp.MustCompile(`id="_nowVal"[^>]*>([0-9,]+)`)
	avgTargetRe    = regexp.MustCompile(`평균\s*목표주가[^0-9]*([0-9,]+)`)
	analystCountRe = regexp.MustCompile(`([0-9]+)\s*개\s*증권사`)

	reportTargetRe  = regexp.MustCompile(`([0-9]{1,3}(?:,[0-9]{3})+|[0-9]{4,7})\s*</td>`)
	reportOpinionRe = regexp.MustCompile(`(매수|중립|매도|Outperform|Buy|Hold|Sell)`)
	reportDateRe    = regexp.MustCompile(`\d{4}\.\d{2}\.\d{2}`)
)

var buyOpinions = map[string]bool{"매수": true, "Buy": true, "Outperform": true, "Strong Buy": true}
var holdOpinions = map[string]bool{"중립": true, "Hold": true, "Neutral": true}
var sellOpinions = map[string]bool{"매도": true, "Sell": true, "Underperform": true, "Reduce": true}

// QuoteFallback supplies a current price when the main page yields
// none.
type QuoteFallback interface {
	Quote(ctx context.Context, ticker, market, apiKey string) (*models.Quote, error)
}

// Service scrapes consensus data for Korean listed stocks.
type Service struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	delay      time.Duration
	quotes     QuoteFallback
	logger     arbor.ILogger
}

// Option configures a Service.
type Option func(*Service)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(s *Service) {
		s.httpClient = httpClient
	}
}

// WithBaseURL overrides the scrape target base URL.
func WithBaseURL(baseURL string) Option {
	return func(s *Service) {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithQuoteFallback sets the secondary current-price source.
func WithQuoteFallback(quotes QuoteFallback) Option {
	return func(s *Service) {
		s.quotes = quotes
	}
}

// NewService creates a consensus scraper.
func NewService(config *common.ScraperConfig, logger arbor.ILogger, opts ...Option) *Service {
	s := &Service{
		httpClient: &http.Client{Timeout: config.RequestTimeout},
		baseURL:    defaultBaseURL,
		userAgent:  config.UserAgent,
		delay:      config.RequestDelay,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch scrapes and aggregates consensus data for one stock code.
// Partial results are the normal steady state; only a missing ticker is
// an error.
func (s *Service) Fetch(ctx context.Context, ticker string) (*models.Consensus, error) {
	if strings.TrimSpace(ticker) == "" {
		return nil, fmt.Errorf("ticker is required")
	}
	code := common.PadStockCode(strings.TrimSpace(ticker), 6)

	mainHTML, err := s.fetchPage(ctx, fmt.Sprintf("%s/item/main.naver?code=%s", s.baseURL, code))
	if err != nil {
		s.logger.Warn().Str("code", code).Err(err).Msg("Main page fetch failed, continuing with reports only")
	}

	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}

	reportHTML, err := s.fetchPage(ctx, fmt.Sprintf("%s/research/company_list.naver?code=%s&page=1", s.baseURL, code))
	if err != nil {
		s.logger.Warn().Str("code", code).Err(err).Msg("Research list fetch failed, continuing without reports")
	}

	reports := parseReports(reportHTML)

	result := &models.Consensus{
		Code:          code,
		RecentReports: reports,
		Source:        "Naver Finance",
		FetchedAt:     time.Now().Format(time.RFC3339),
	}

	// Page-level consensus figure wins; else mean of plausible report
	// targets.
	if target := matchNumber(avgTargetRe, mainHTML); target != nil {
		result.ConsensusTargetPrice = target
	} else if target := matchNumber(targetPriceRe, mainHTML); target != nil {
		result.ConsensusTargetPrice = target
	} else if avg := averageTargetPrice(reports); avg != nil {
		result.ConsensusTargetPrice = avg
	}

	if count := matchNumber(analystCountRe, mainHTML); count != nil {
		result.AnalystCount = int(*count)
	} else {
		result.AnalystCount = len(reports)
	}

	result.CurrentPrice = matchNumber(nowValRe, mainHTML)
	if result.CurrentPrice == nil && s.quotes != nil {
		if quote, err := s.quotes.Quote(ctx, code, common.MarketKR, ""); err == nil {
			result.CurrentPrice = &quote.Price
		} else {
			s.logger.Debug().Str("code", code).Err(err).Msg("Quote fallback missed")
		}
	}

	if result.ConsensusTargetPrice != nil && result.CurrentPrice != nil && *result.CurrentPrice > 0 {
		upside := math.Round((*result.ConsensusTargetPrice-*result.CurrentPrice)/(*result.CurrentPrice)*1000) / 10
		result.UpsideVsConsensus = &upside
	}

	result.Opinions = tallyOpinions(reports)

	if len(result.RecentReports) > returnReports {
		result.RecentReports = result.RecentReports[:returnReports]
	}

	return result, nil
}

func (s *Service) fetchPage(ctx context.Context, endpoint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return string(body), nil
}

// parseReports extracts broker report rows from the research list page.
// Row structure varies, so numeric fields come from pattern matches on
// the raw row markup.
func parseReports(html string) []models.BrokerReport {
	if html == "" {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var reports []models.BrokerReport
	doc.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		rowHTML, err := goquery.OuterHtml(row)
		if err != nil || !strings.Contains(rowHTML, "company_list") {
			return true
		}

		broker := strings.TrimSpace(row.Find(`a[target="_blank"]`).First().Text())
		date := reportDateRe.FindString(rowHTML)
		if broker == "" || date == "" {
			return true
		}

		report := models.BrokerReport{
			Broker: broker,
			Date:   date,
			Title:  strings.TrimSpace(row.Find(".coment").First().Text()),
		}
		if m := reportTargetRe.FindStringSubmatch(rowHTML); m != nil {
			if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil {
				report.TargetPrice = v
			}
		}
		if m := reportOpinionRe.FindStringSubmatch(rowHTML); m != nil {
			report.Opinion = m[1]
		}

		reports = append(reports, report)
		return len(reports) < maxReports
	})

	return reports
}

func averageTargetPrice(reports []models.BrokerReport) *float64 {
	var sum float64
	var n int
	for _, r := range reports {
		if r.TargetPrice > 1000 {
			sum += r.TargetPrice
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := math.Round(sum / float64(n))
	return &avg
}

func tallyOpinions(reports []models.BrokerReport) models.OpinionBreakdown {
	var breakdown models.OpinionBreakdown
	for _, r := range reports {
		switch {
		case buyOpinions[r.Opinion]:
			breakdown.Buy++
		case holdOpinions[r.Opinion]:
			breakdown.Hold++
		case sellOpinions[r.Opinion]:
			breakdown.Sell++
		}
	}
	breakdown.Total = breakdown.Buy + breakdown.Hold + breakdown.Sell
	if breakdown.Total > 0 {
		breakdown.BuyPct = math.Round(float64(breakdown.Buy) / float64(breakdown.Total) * 100)
		breakdown.HoldPct = math.Round(float64(breakdown.Hold) / float64(breakdown.Total) * 100)
		breakdown.SellPct = math.Round(float64(breakdown.Sell) / float64(breakdown.Total) * 100)
	}
	return breakdown
}

// matchNumber extracts the first capture group of re as a float,
// tolerating thousands separators.
func matchNumber(re *regexp.Regexp, html string) *float64 {
	if html == "" {
		return nil
	}
	m := re.FindStringSubmatch(html)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return nil
	}
	return &v
}
