package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/analyst/internal/models"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// ErrStockNotFound is returned when a stock id has no record.
var ErrStockNotFound = fmt.Errorf("stock not found")

// StockListOptions filters and pages stock listings.
type StockListOptions struct {
	Market string
	Limit  int
	Offset int
}

// StockStorage persists stock records in BadgerDB.
type StockStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewStockStorage creates a StockStorage instance.
func NewStockStorage(db *BadgerDB, logger arbor.ILogger) *StockStorage {
	return &StockStorage{
		db:     db,
		logger: logger,
	}
}

// SaveStock inserts or updates a stock record.
func (s *StockStorage) SaveStock(ctx context.Context, stock *models.Stock) error {
	if stock.ID == "" {
		return fmt.Errorf("stock ID is required")
	}

	now := time.Now()
	if stock.CreatedAt.IsZero() {
		stock.CreatedAt = now
	}
	stock.UpdatedAt = now

	if err := s.db.Store().Upsert(stock.ID, stock); err != nil {
		return fmt.Errorf("failed to save stock: %w", err)
	}
	return nil
}

// GetStock retrieves one stock by id.
func (s *StockStorage) GetStock(ctx context.Context, id string) (*models.Stock, error) {
	var stock models.Stock
	if err := s.db.Store().Get(id, &stock); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, ErrStockNotFound
		}
		return nil, fmt.Errorf("failed to get stock: %w", err)
	}
	return &stock, nil
}

// GetStockByTicker retrieves one stock by its ticker symbol.
func (s *StockStorage) GetStockByTicker(ctx context.Context, ticker string) (*models.Stock, error) {
	var stocks []models.Stock
	if err := s.db.Store().Find(&stocks, badgerhold.Where("Ticker").Eq(ticker).Limit(1)); err != nil {
		return nil, fmt.Errorf("failed to query stocks: %w", err)
	}
	if len(stocks) == 0 {
		return nil, ErrStockNotFound
	}
	return &stocks[0], nil
}

// ListStocks returns stock records, newest first.
func (s *StockStorage) ListStocks(ctx context.Context, opts *StockListOptions) ([]*models.Stock, error) {
	query := badgerhold.Where("ID").Ne("")

	if opts != nil {
		if opts.Market != "" {
			query = query.And("Market").Eq(opts.Market)
		}
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
	}
	query = query.SortBy("UpdatedAt").Reverse()

	var stocks []models.Stock
	if err := s.db.Store().Find(&stocks, query); err != nil {
		return nil, fmt.Errorf("failed to list stocks: %w", err)
	}

	result := make([]*models.Stock, len(stocks))
	for i := range stocks {
		result[i] = &stocks[i]
	}
	return result, nil
}

// DeleteStock removes a stock record.
func (s *StockStorage) DeleteStock(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Stock{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return ErrStockNotFound
		}
		return fmt.Errorf("failed to delete stock: %w", err)
	}
	return nil
}
