package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/analyst/internal/models"
	"github.com/ternarybob/analyst/internal/services/stocks"
	"github.com/ternarybob/analyst/internal/storage/badger"
	"github.com/ternarybob/arbor"
)

// StockHandler handles watchlist CRUD requests.
type StockHandler struct {
	stocks *stocks.Service
	logger arbor.ILogger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(stockService *stocks.Service, logger arbor.ILogger) *StockHandler {
	return &StockHandler{
		stocks: stockService,
		logger: logger,
	}
}

// StocksHandler handles /api/stocks: GET lists, POST creates.
func (h *StockHandler) StocksHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listStocks(w, r)
	case http.MethodPost:
		h.createStock(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// StockByIDHandler handles /api/stocks/{id}: GET, PUT, DELETE.
func (h *StockHandler) StockByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/stocks/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, http.StatusNotFound, "stock not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getStock(w, r, id)
	case http.MethodPut:
		h.updateStock(w, r, id)
	case http.MethodDelete:
		h.deleteStock(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *StockHandler) listStocks(w http.ResponseWriter, r *http.Request) {
	opts := &badger.StockListOptions{
		Market: r.URL.Query().Get("market"),
		Limit:  QueryInt(r, "limit", 0),
		Offset: QueryInt(r, "offset", 0),
	}

	list, err := h.stocks.List(r.Context(), opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list stocks")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"stocks": list,
		"count":  len(list),
	})
}

func (h *StockHandler) createStock(w http.ResponseWriter, r *http.Request) {
	var stock models.Stock
	if err := json.NewDecoder(r.Body).Decode(&stock); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.stocks.Create(r.Context(), &stock)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusCreated, created)
}

func (h *StockHandler) getStock(w http.ResponseWriter, r *http.Request, id string) {
	stock, err := h.stocks.Get(r.Context(), id)
	if err != nil {
		h.writeStockError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stock)
}

func (h *StockHandler) updateStock(w http.ResponseWriter, r *http.Request, id string) {
	var updates models.Stock
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	stock, err := h.stocks.Update(r.Context(), id, &updates)
	if err != nil {
		h.writeStockError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stock)
}

func (h *StockHandler) deleteStock(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.stocks.Delete(r.Context(), id); err != nil {
		h.writeStockError(w, err)
		return
	}
	WriteSuccess(w, "stock deleted")
}

func (h *StockHandler) writeStockError(w http.ResponseWriter, err error) {
	if errors.Is(err, badger.ErrStockNotFound) {
		WriteError(w, http.StatusNotFound, "stock not found")
		return
	}
	h.logger.Error().Err(err).Msg("Stock operation failed")
	WriteError(w, http.StatusInternalServerError, err.Error())
}
