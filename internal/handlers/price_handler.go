package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ternarybob/analyst/internal/services/quotes"
	"github.com/ternarybob/arbor"
)

// PriceHandler handles quote lookup requests.
type PriceHandler struct {
	quotes *quotes.Client
	logger arbor.ILogger
}

// NewPriceHandler creates a new price handler
func NewPriceHandler(quotesClient *quotes.Client, logger arbor.ILogger) *PriceHandler {
	return &PriceHandler{
		quotes: quotesClient,
		logger: logger,
	}
}

type priceRequest struct {
	Ticker string `json:"ticker"`
	Market string `json:"market"`
	APIKey string `json:"apiKey"`
}

// PriceHandler handles POST /api/price requests
func (h *PriceHandler) PriceHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req priceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Ticker == "" {
		WriteError(w, http.StatusBadRequest, "ticker field is required")
		return
	}

	quote, err := h.quotes.Quote(r.Context(), req.Ticker, req.Market, req.APIKey)
	if err != nil {
		var notFound *quotes.NotFoundError
		if errors.As(err, &notFound) {
			WriteError(w, http.StatusNotFound, notFound.Error())
			return
		}
		h.logger.Error().Err(err).Str("ticker", req.Ticker).Msg("Quote lookup failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, quote)
}
