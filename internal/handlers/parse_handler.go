package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/analyst/internal/services/parser"
	"github.com/ternarybob/arbor"
)

// ParseHandler handles free-text analysis extraction requests.
type ParseHandler struct {
	parser *parser.Service
	logger arbor.ILogger
}

// NewParseHandler creates a new parse handler
func NewParseHandler(parserService *parser.Service, logger arbor.ILogger) *ParseHandler {
	return &ParseHandler{
		parser: parserService,
		logger: logger,
	}
}

type parseRequest struct {
	Text         string `json:"text"`
	AnthropicKey string `json:"anthropicKey"`
}

// ParseHandler handles POST /api/parse requests
func (h *ParseHandler) ParseHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Text == "" {
		WriteError(w, http.StatusBadRequest, "text field is required")
		return
	}

	result, err := h.parser.Parse(r.Context(), req.Text, req.AnthropicKey)
	if err != nil {
		h.logger.Error().Err(err).Msg("Parse failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
