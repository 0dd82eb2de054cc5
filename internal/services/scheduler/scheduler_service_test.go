package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/analyst/internal/common"
	"github.com/ternarybob/analyst/internal/models"
	"github.com/ternarybob/analyst/internal/services/stocks"
	"github.com/ternarybob/analyst/internal/storage/badger"
)

type staticQuotes struct {
	price float64
	calls int
}

func (s *staticQuotes) Quote(_ context.Context, ticker, _, _ string) (*models.Quote, error) {
	s.calls++
	return &models.Quote{Price: s.price, Source: "fake", Symbol: ticker}, nil
}

func newTestScheduler(t *testing.T, enabled bool, quotes stocks.QuoteSource) (*Service, *stocks.Service) {
	t.Helper()
	db, err := badger.NewBadgerDB(common.GetLogger(), &common.BadgerConfig{
		Path: t.TempDir() + "/badger",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	stockService := stocks.NewService(badger.NewStockStorage(db, common.GetLogger()), quotes, 0, common.GetLogger())
	svc := NewService(stockService, &common.RefreshConfig{
		Enabled:  enabled,
		Schedule: "0 * * * *",
	}, common.GetLogger())
	return svc, stockService
}

func TestStartDisabledIsNoOp(t *testing.T) {
	svc, _ := newTestScheduler(t, false, nil)

	require.NoError(t, svc.Start())
	assert.False(t, svc.IsRunning())
}

func TestStartAndStop(t *testing.T) {
	svc, _ := newTestScheduler(t, true, &staticQuotes{price: 100})

	require.NoError(t, svc.Start())
	assert.True(t, svc.IsRunning())

	assert.Error(t, svc.Start())

	svc.Stop()
	assert.False(t, svc.IsRunning())
}

func TestLifecycleSafeUnderConcurrentReads(t *testing.T) {
	// IsRunning is exposed to handlers while Start/Stop run on the main
	// goroutine; the lifecycle flag must be safe to read concurrently.
	svc, _ := newTestScheduler(t, true, &staticQuotes{price: 100})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					svc.IsRunning()
				}
			}
		}()
	}

	require.NoError(t, svc.Start())
	assert.True(t, svc.IsRunning())
	svc.Stop()
	assert.False(t, svc.IsRunning())

	close(stop)
	wg.Wait()
}

func TestStartRejectsBadSchedule(t *testing.T) {
	svc, _ := newTestScheduler(t, true, nil)
	svc.config.Schedule = "not a cron expression"

	assert.Error(t, svc.Start())
}

func TestTriggerNowRefreshesStocks(t *testing.T) {
	quotes := &staticQuotes{price: 241.5}
	svc, stockService := newTestScheduler(t, true, quotes)
	ctx := context.Background()

	stock, err := stockService.Create(ctx, &models.Stock{
		Ticker: "AAPL",
		Name:   "Apple Inc.",
		Market: common.MarketUS,
	})
	require.NoError(t, err)
	_, err = stockService.AttachAnalysis(ctx, stock.ID, &models.AnalysisResult{
		Ticker:       "AAPL",
		Name:         "Apple Inc.",
		Market:       common.MarketUS,
		Currency:     "USD",
		CurrentPrice: 230,
		FairValue:    250,
		Verdict:      "Buy",
		VerdictType:  "buy",
	})
	require.NoError(t, err)

	refreshed, err := svc.TriggerNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed)
	assert.Equal(t, 1, quotes.calls)

	loaded, err := stockService.Get(ctx, stock.ID)
	require.NoError(t, err)
	assert.Equal(t, 241.5, loaded.Analysis.CurrentPrice)
}
