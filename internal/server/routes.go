package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Analysis
	mux.HandleFunc("/api/analyze", s.app.AnalyzeHandler.AnalyzeHandler)
	mux.HandleFunc("/api/analyze/pipeline", s.app.AnalyzeHandler.PipelineHandler)

	// API routes - Market data collaborators
	mux.HandleFunc("/api/price", s.app.PriceHandler.PriceHandler)
	mux.HandleFunc("/api/consensus", s.app.ConsensusHandler.ConsensusHandler)
	mux.HandleFunc("/api/news", s.app.NewsHandler.NewsHandler)
	mux.HandleFunc("/api/parse", s.app.ParseHandler.ParseHandler)

	// API routes - Watchlist
	mux.HandleFunc("/api/stocks", s.app.StockHandler.StocksHandler)
	mux.HandleFunc("/api/stocks/", s.app.StockHandler.StockByIDHandler)
	mux.HandleFunc("/api/refresh", s.app.RefreshHandler.TriggerRefreshHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}
