package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/analyst/internal/services/news"
	"github.com/ternarybob/arbor"
)

// NewsHandler handles headline feed requests.
type NewsHandler struct {
	news   *news.Service
	logger arbor.ILogger
}

// NewNewsHandler creates a new news handler
func NewNewsHandler(newsService *news.Service, logger arbor.ILogger) *NewsHandler {
	return &NewsHandler{
		news:   newsService,
		logger: logger,
	}
}

type newsRequest struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
	Market string `json:"market"`
}

// NewsHandler handles POST /api/news requests
func (h *NewsHandler) NewsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req newsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Ticker == "" {
		WriteError(w, http.StatusBadRequest, "ticker field is required")
		return
	}

	result, err := h.news.Fetch(r.Context(), req.Ticker, req.Name, req.Market)
	if err != nil {
		h.logger.Error().Err(err).Str("ticker", req.Ticker).Msg("News fetch failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
