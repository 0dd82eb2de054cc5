// Package stocks manages the persisted watchlist: CRUD over stock
// records, bounded analysis history, and quote refresh.
package stocks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/analyst/internal/common"
	"github.com/ternarybob/analyst/internal/models"
	"github.com/ternarybob/analyst/internal/storage/badger"
	"github.com/ternarybob/arbor"
)

// QuoteSource supplies prices for the refresh pass.
type QuoteSource interface {
	Quote(ctx context.Context, ticker, market, apiKey string) (*models.Quote, error)
}

// Service owns stock record lifecycle.
type Service struct {
	storage *badger.StockStorage
	quotes  QuoteSource
	delay   time.Duration
	logger  arbor.ILogger
}

// NewService creates a stock service. quotes may be nil when refresh is
// not used.
func NewService(storage *badger.StockStorage, quotes QuoteSource, delay time.Duration, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		quotes:  quotes,
		delay:   delay,
		logger:  logger,
	}
}

// Create validates and stores a new stock record.
func (s *Service) Create(ctx context.Context, stock *models.Stock) (*models.Stock, error) {
	stock.Ticker = strings.TrimSpace(stock.Ticker)
	if err := stock.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stock: %w", err)
	}

	stock.ID = common.NewStockID()
	stock.History = nil
	if err := s.storage.SaveStock(ctx, stock); err != nil {
		return nil, err
	}

	s.logger.Info().Str("id", stock.ID).Str("ticker", stock.Ticker).Msg("Stock created")
	return stock, nil
}

// Get returns one stock by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Stock, error) {
	return s.storage.GetStock(ctx, id)
}

// List returns stored stocks.
func (s *Service) List(ctx context.Context, opts *badger.StockListOptions) ([]*models.Stock, error) {
	return s.storage.ListStocks(ctx, opts)
}

// Update replaces mutable fields of a stock. A new analysis pushes the
// previous one into the bounded history.
func (s *Service) Update(ctx context.Context, id string, updated *models.Stock) (*models.Stock, error) {
	existing, err := s.storage.GetStock(ctx, id)
	if err != nil {
		return nil, err
	}

	if updated.Ticker != "" {
		existing.Ticker = strings.TrimSpace(updated.Ticker)
	}
	if updated.Name != "" {
		existing.Name = updated.Name
	}
	if updated.Market != "" {
		existing.Market = updated.Market
	}
	if updated.Analysis != nil {
		existing.ArchiveAnalysis(time.Now())
		existing.Analysis = updated.Analysis
	}

	if err := existing.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stock: %w", err)
	}
	if err := s.storage.SaveStock(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// AttachAnalysis records a fresh analysis on a stock, archiving the
// previous one.
func (s *Service) AttachAnalysis(ctx context.Context, id string, analysis *models.AnalysisResult) (*models.Stock, error) {
	stock, err := s.storage.GetStock(ctx, id)
	if err != nil {
		return nil, err
	}

	stock.ArchiveAnalysis(time.Now())
	stock.Analysis = analysis
	if err := s.storage.SaveStock(ctx, stock); err != nil {
		return nil, err
	}
	return stock, nil
}

// Delete removes a stock record.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.storage.DeleteStock(ctx, id)
}

// RefreshQuotes re-quotes every stored stock sequentially, updating the
// current price on each stock's analysis. One failed lookup never
// aborts the pass.
func (s *Service) RefreshQuotes(ctx context.Context) (int, error) {
	if s.quotes == nil {
		return 0, fmt.Errorf("no quote source configured")
	}

	stocks, err := s.storage.ListStocks(ctx, nil)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for i, stock := range stocks {
		if i > 0 && s.delay > 0 {
			select {
			case <-ctx.Done():
				return refreshed, ctx.Err()
			case <-time.After(s.delay):
			}
		}

		quote, err := s.quotes.Quote(ctx, stock.Ticker, stock.Market, "")
		if err != nil {
			s.logger.Warn().Str("ticker", stock.Ticker).Err(err).Msg("Quote refresh missed")
			continue
		}

		if stock.Analysis != nil {
			stock.Analysis.CurrentPrice = quote.Price
		}
		if err := s.storage.SaveStock(ctx, stock); err != nil {
			s.logger.Warn().Str("ticker", stock.Ticker).Err(err).Msg("Failed to persist refreshed quote")
			continue
		}
		refreshed++
	}

	s.logger.Info().Int("refreshed", refreshed).Int("total", len(stocks)).Msg("Quote refresh pass complete")
	return refreshed, nil
}
