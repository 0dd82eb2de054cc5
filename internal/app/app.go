// Package app wires configuration, storage, services and HTTP handlers
// into one runnable application.
package app

import (
	"fmt"

	"github.com/ternarybob/analyst/internal/common"
	"github.com/ternarybob/analyst/internal/handlers"
	"github.com/ternarybob/analyst/internal/services/analyzer"
	"github.com/ternarybob/analyst/internal/services/consensus"
	"github.com/ternarybob/analyst/internal/services/news"
	"github.com/ternarybob/analyst/internal/services/parser"
	"github.com/ternarybob/analyst/internal/services/quotes"
	"github.com/ternarybob/analyst/internal/services/scheduler"
	"github.com/ternarybob/analyst/internal/services/stocks"
	"github.com/ternarybob/analyst/internal/storage/badger"
	"github.com/ternarybob/arbor"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	DB           *badger.BadgerDB
	StockStorage *badger.StockStorage

	// Services
	QuotesClient     *quotes.Client
	ConsensusService *consensus.Service
	NewsService      *news.Service
	AnalyzerService  *analyzer.Service
	ParserService    *parser.Service
	StockService     *stocks.Service
	SchedulerService *scheduler.Service

	// HTTP handlers
	APIHandler       *handlers.APIHandler
	AnalyzeHandler   *handlers.AnalyzeHandler
	PriceHandler     *handlers.PriceHandler
	ConsensusHandler *handlers.ConsensusHandler
	NewsHandler      *handlers.NewsHandler
	ParseHandler     *handlers.ParseHandler
	StockHandler     *handlers.StockHandler
	RefreshHandler   *handlers.RefreshHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	app.initServices()
	app.initHandlers()

	if err := app.SchedulerService.Start(); err != nil {
		logger.Warn().Err(err).Msg("Failed to start refresh scheduler")
	}

	logger.Info().
		Str("llm_provider", string(cfg.LLM.DefaultProvider)).
		Bool("refresh_enabled", cfg.Refresh.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage initializes the storage layer (Badger)
func (a *App) initStorage() error {
	db, err := badger.NewBadgerDB(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.DB = db
	a.StockStorage = badger.NewStockStorage(db, a.Logger)

	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")
	return nil
}

// initServices initializes business services in dependency order.
func (a *App) initServices() {
	a.QuotesClient = quotes.NewClient(&a.Config.Quotes, &a.Config.Scrapers, a.Logger)

	a.ConsensusService = consensus.NewService(
		&a.Config.Scrapers,
		a.Logger,
		consensus.WithQuoteFallback(a.QuotesClient),
	)

	a.NewsService = news.NewService(&a.Config.Scrapers, a.Logger)

	// Collaborator services double as client-side tools in the
	// analysis conversation loop.
	toolRunner := analyzer.NewServiceToolRunner(a.QuotesClient, a.ConsensusService, a.NewsService)
	a.AnalyzerService = analyzer.NewService(a.Config, toolRunner, a.Logger)

	a.ParserService = parser.NewService(a.Config, a.Logger)

	a.StockService = stocks.NewService(
		a.StockStorage,
		a.QuotesClient,
		a.Config.Scrapers.RequestDelay,
		a.Logger,
	)

	a.SchedulerService = scheduler.NewService(a.StockService, &a.Config.Refresh, a.Logger)

	a.Logger.Debug().Msg("Services initialized")
}

// initHandlers initializes all HTTP handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler()
	a.AnalyzeHandler = handlers.NewAnalyzeHandler(a.AnalyzerService, a.Logger)
	a.PriceHandler = handlers.NewPriceHandler(a.QuotesClient, a.Logger)
	a.ConsensusHandler = handlers.NewConsensusHandler(a.ConsensusService, a.Logger)
	a.NewsHandler = handlers.NewNewsHandler(a.NewsService, a.Logger)
	a.ParseHandler = handlers.NewParseHandler(a.ParserService, a.Logger)
	a.StockHandler = handlers.NewStockHandler(a.StockService, a.Logger)
	a.RefreshHandler = handlers.NewRefreshHandler(a.SchedulerService, a.Logger)
}

// Close closes all application resources
func (a *App) Close() error {
	if a.SchedulerService != nil {
		a.SchedulerService.Stop()
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
