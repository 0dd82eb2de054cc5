package stocks

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/analyst/internal/common"
	"github.com/ternarybob/analyst/internal/models"
	"github.com/ternarybob/analyst/internal/storage/badger"
)

type fakeQuoteSource struct {
	prices map[string]float64
	calls  int
}

func (f *fakeQuoteSource) Quote(_ context.Context, ticker, _, _ string) (*models.Quote, error) {
	f.calls++
	price, ok := f.prices[ticker]
	if !ok {
		return nil, fmt.Errorf("no quote for %s", ticker)
	}
	return &models.Quote{Price: price, Source: "fake", Symbol: ticker}, nil
}

func newTestService(t *testing.T, quotes QuoteSource) *Service {
	t.Helper()
	db, err := badger.NewBadgerDB(common.GetLogger(), &common.BadgerConfig{
		Path: t.TempDir() + "/badger",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	storage := badger.NewStockStorage(db, common.GetLogger())
	return NewService(storage, quotes, 0, common.GetLogger())
}

func sampleAnalysis(fairValue float64) *models.AnalysisResult {
	return &models.AnalysisResult{
		Ticker:       "AAPL",
		Name:         "Apple Inc.",
		Market:       common.MarketUS,
		Currency:     "USD",
		CurrentPrice: 230,
		FairValue:    fairValue,
		Verdict:      "Buy",
		VerdictType:  "buy",
	}
}

func TestCreateAssignsID(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	stock, err := svc.Create(ctx, &models.Stock{
		Ticker: " AAPL ",
		Name:   "Apple Inc.",
		Market: common.MarketUS,
	})
	require.NoError(t, err)
	assert.Contains(t, stock.ID, "stk_")
	assert.Equal(t, "AAPL", stock.Ticker)

	loaded, err := svc.Get(ctx, stock.ID)
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", loaded.Name)
}

func TestCreateRejectsInvalid(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.Create(context.Background(), &models.Stock{Name: "No Ticker"})
	assert.Error(t, err)
}

func TestUpdateArchivesPreviousAnalysis(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	stock, err := svc.Create(ctx, &models.Stock{Ticker: "AAPL", Name: "Apple Inc.", Market: common.MarketUS})
	require.NoError(t, err)

	_, err = svc.AttachAnalysis(ctx, stock.ID, sampleAnalysis(250))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, stock.ID, &models.Stock{Analysis: sampleAnalysis(275)})
	require.NoError(t, err)

	assert.Equal(t, 275.0, updated.Analysis.FairValue)
	require.Len(t, updated.History, 1)
	assert.Equal(t, 250.0, updated.History[0].Analysis.FairValue)
}

func TestUpdateMissingStock(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.Update(context.Background(), "stk_missing", &models.Stock{Name: "Ghost"})
	assert.ErrorIs(t, err, badger.ErrStockNotFound)
}

func TestDelete(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	stock, err := svc.Create(ctx, &models.Stock{Ticker: "AAPL", Name: "Apple Inc.", Market: common.MarketUS})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, stock.ID))
	_, err = svc.Get(ctx, stock.ID)
	assert.ErrorIs(t, err, badger.ErrStockNotFound)
}

func TestRefreshQuotesSkipsFailures(t *testing.T) {
	quotes := &fakeQuoteSource{prices: map[string]float64{"AAPL": 241.5}}
	svc := newTestService(t, quotes)
	ctx := context.Background()

	apple, err := svc.Create(ctx, &models.Stock{Ticker: "AAPL", Name: "Apple Inc.", Market: common.MarketUS})
	require.NoError(t, err)
	_, err = svc.AttachAnalysis(ctx, apple.ID, sampleAnalysis(250))
	require.NoError(t, err)

	_, err = svc.Create(ctx, &models.Stock{Ticker: "ZZZZ", Name: "No Quote Corp", Market: common.MarketUS})
	require.NoError(t, err)

	refreshed, err := svc.RefreshQuotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed)
	assert.Equal(t, 2, quotes.calls)

	loaded, err := svc.Get(ctx, apple.ID)
	require.NoError(t, err)
	assert.Equal(t, 241.5, loaded.Analysis.CurrentPrice)
}

func TestRefreshQuotesHonorsContext(t *testing.T) {
	quotes := &fakeQuoteSource{prices: map[string]float64{"AAPL": 241.5}}
	svc := newTestService(t, quotes)
	svc.delay = 50 * time.Millisecond
	ctx := context.Background()

	for _, ticker := range []string{"AAPL", "MSFT"} {
		_, err := svc.Create(ctx, &models.Stock{Ticker: ticker, Name: ticker, Market: common.MarketUS})
		require.NoError(t, err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := svc.RefreshQuotes(cancelled)
	assert.Error(t, err)
}
