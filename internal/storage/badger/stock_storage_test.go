package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/analyst/internal/common"
	"github.com/ternarybob/analyst/internal/models"
)

func newTestStorage(t *testing.T) *StockStorage {
	t.Helper()
	db, err := NewBadgerDB(common.GetLogger(), &common.BadgerConfig{
		Path: t.TempDir() + "/badger",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStockStorage(db, common.GetLogger())
}

func sampleStock(id, ticker string) *models.Stock {
	return &models.Stock{
		ID:     id,
		Ticker: ticker,
		Name:   "Test Corp",
		Market: "US",
	}
}

func TestStockCRUD(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	stock := sampleStock("stk_1", "AAPL")
	require.NoError(t, storage.SaveStock(ctx, stock))
	assert.False(t, stock.CreatedAt.IsZero())

	loaded, err := storage.GetStock(ctx, "stk_1")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", loaded.Ticker)

	byTicker, err := storage.GetStockByTicker(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "stk_1", byTicker.ID)

	require.NoError(t, storage.DeleteStock(ctx, "stk_1"))
	_, err = storage.GetStock(ctx, "stk_1")
	assert.ErrorIs(t, err, ErrStockNotFound)
}

func TestStockNotFound(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	_, err := storage.GetStock(ctx, "stk_missing")
	assert.ErrorIs(t, err, ErrStockNotFound)

	_, err = storage.GetStockByTicker(ctx, "NOPE")
	assert.ErrorIs(t, err, ErrStockNotFound)

	assert.ErrorIs(t, storage.DeleteStock(ctx, "stk_missing"), ErrStockNotFound)
}

func TestSaveStockRequiresID(t *testing.T) {
	storage := newTestStorage(t)
	err := storage.SaveStock(context.Background(), &models.Stock{Ticker: "AAPL"})
	require.Error(t, err)
}

func TestListStocksFilterAndOrder(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	first := sampleStock("stk_1", "AAPL")
	require.NoError(t, storage.SaveStock(ctx, first))

	time.Sleep(5 * time.Millisecond)

	second := sampleStock("stk_2", "005930")
	second.Market = "KR"
	require.NoError(t, storage.SaveStock(ctx, second))

	all, err := storage.ListStocks(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "stk_2", all[0].ID, "newest first")

	kr, err := storage.ListStocks(ctx, &StockListOptions{Market: "KR"})
	require.NoError(t, err)
	require.Len(t, kr, 1)
	assert.Equal(t, "005930", kr[0].Ticker)
}

func TestSaveStockPreservesHistory(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	stock := sampleStock("stk_1", "AAPL")
	stock.Analysis = &models.AnalysisResult{Ticker: "AAPL", FairValue: 250}
	require.NoError(t, storage.SaveStock(ctx, stock))

	stock.ArchiveAnalysis(time.Now())
	stock.Analysis = &models.AnalysisResult{Ticker: "AAPL", FairValue: 275}
	require.NoError(t, storage.SaveStock(ctx, stock))

	loaded, err := storage.GetStock(ctx, "stk_1")
	require.NoError(t, err)
	require.Len(t, loaded.History, 1)
	assert.Equal(t, float64(250), loaded.History[0].Analysis.FairValue)
	assert.Equal(t, float64(275), loaded.Analysis.FairValue)
}
