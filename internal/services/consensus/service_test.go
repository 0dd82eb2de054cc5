package consensus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/analyst/internal/common"
	"github.com/ternarybob/analyst/internal/models"
)

const mainPageHTML = `<html><body>
<em id="_nowVal">68,400</em>
<table><tr><td>평균 목표주가</td><td><em>95,000</em></td></tr></table>
<span>12 개 증권사 의견</span>
</body></html>`

const researchPageHTML = `<html><body><table>
<tr>
  <td><a href="/research/company_list.naver?code=005930">005930</a></td>
  <td class="coment">Memory upcycle ahead</td>
  <td><a href="https://broker.example" target="_blank">Mirae Asset</a></td>
  <td>98,000</td>
  <td>매수</td>
  <td>2026.08.20</td>
</tr>
<tr>
  <td><a href="/research/company_list.naver?code=005930">005930</a></td>
  <td class="coment">HBM demand steady</td>
  <td><a href="https://broker.example" target="_blank">NH Investment</a></td>
  <td>92,000</td>
  <td>Hold</td>
  <td>2026.08.18</td>
</tr>
</table></body></html>`

func newTestService(t *testing.T, mainBody string, mainStatus int, researchBody string, quotes QuoteFallback) (*Service, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/item/main.naver"):
			if mainStatus != http.StatusOK {
				w.WriteHeader(mainStatus)
				return
			}
			w.Write([]byte(mainBody))
		case strings.HasPrefix(r.URL.Path, "/research/company_list.naver"):
			w.Write([]byte(researchBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	cfg := common.NewDefaultConfig()
	cfg.Scrapers.RequestDelay = 0
	opts := []Option{WithBaseURL(server.URL)}
	if quotes != nil {
		opts = append(opts, WithQuoteFallback(quotes))
	}
	return NewService(&cfg.Scrapers, common.GetLogger(), opts...), server
}

func TestFetchFullConsensus(t *testing.T) {
	svc, server := newTestService(t, mainPageHTML, http.StatusOK, researchPageHTML, nil)
	defer server.Close()

	result, err := svc.Fetch(context.Background(), "5930")

	require.NoError(t, err)
	assert.Equal(t, "005930", result.Code)
	require.NotNil(t, result.ConsensusTargetPrice)
	assert.Equal(t, float64(95000), *result.ConsensusTargetPrice)
	require.NotNil(t, result.CurrentPrice)
	assert.Equal(t, float64(68400), *result.CurrentPrice)
	assert.Equal(t, 12, result.AnalystCount)

	require.Len(t, result.RecentReports, 2)
	assert.Equal(t, "Mirae Asset", result.RecentReports[0].Broker)
	assert.Equal(t, float64(98000), result.RecentReports[0].TargetPrice)
	assert.Equal(t, "매수", result.RecentReports[0].Opinion)
	assert.Equal(t, "2026.08.20", result.RecentReports[0].Date)
	assert.Equal(t, "Memory upcycle ahead", result.RecentReports[0].Title)

	assert.Equal(t, 1, result.Opinions.Buy)
	assert.Equal(t, 1, result.Opinions.Hold)
	assert.Equal(t, 2, result.Opinions.Total)
	assert.Equal(t, float64(50), result.Opinions.BuyPct)

	require.NotNil(t, result.UpsideVsConsensus)
	assert.InDelta(t, 38.9, *result.UpsideVsConsensus, 0.1)
}

type fakeQuotes struct {
	quote *models.Quote
	calls int
}

func (f *fakeQuotes) Quote(_ context.Context, _, _, _ string) (*models.Quote, error) {
	f.calls++
	return f.quote, nil
}

func TestFetchPrimarySourceFailure(t *testing.T) {
	// Main page returns garbage: consensus target stays nil while the
	// current price is recovered from the fallback quote source and the
	// reports still parse.
	quotes := &fakeQuotes{quote: &models.Quote{Price: 68400, Source: "yahoo", Symbol: "005930.KS"}}
	svc, server := newTestService(t, "<html>not the page you wanted</html>", http.StatusOK, researchPageHTML, quotes)
	defer server.Close()

	result, err := svc.Fetch(context.Background(), "5930")

	require.NoError(t, err)
	require.NotNil(t, result.CurrentPrice)
	assert.Equal(t, float64(68400), *result.CurrentPrice)
	assert.Equal(t, 1, quotes.calls)
	// mean of plausible report targets
	require.NotNil(t, result.ConsensusTargetPrice)
	assert.Equal(t, float64(95000), *result.ConsensusTargetPrice)
	assert.Len(t, result.RecentReports, 2)
}

func TestFetchMainPageDownStillReturnsReports(t *testing.T) {
	svc, server := newTestService(t, "", http.StatusInternalServerError, researchPageHTML, nil)
	defer server.Close()

	result, err := svc.Fetch(context.Background(), "5930")

	require.NoError(t, err)
	assert.Nil(t, result.CurrentPrice)
	assert.Len(t, result.RecentReports, 2)
	assert.Equal(t, 2, result.AnalystCount)
}

func TestFetchEverythingDown(t *testing.T) {
	svc, server := newTestService(t, "", http.StatusInternalServerError, "", nil)
	defer server.Close()

	result, err := svc.Fetch(context.Background(), "5930")

	require.NoError(t, err, "total scrape failure still returns an empty result")
	assert.Nil(t, result.ConsensusTargetPrice)
	assert.Nil(t, result.CurrentPrice)
	assert.Empty(t, result.RecentReports)
	assert.Equal(t, 0, result.Opinions.Total)
}

func TestFetchRequiresTicker(t *testing.T) {
	cfg := common.NewDefaultConfig()
	svc := NewService(&cfg.Scrapers, common.GetLogger())

	_, err := svc.Fetch(context.Background(), "")
	require.Error(t, err)
}
