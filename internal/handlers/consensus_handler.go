package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/analyst/internal/services/consensus"
	"github.com/ternarybob/arbor"
)

// ConsensusHandler handles broker consensus requests.
type ConsensusHandler struct {
	consensus *consensus.Service
	logger    arbor.ILogger
}

// NewConsensusHandler creates a new consensus handler
func NewConsensusHandler(consensusService *consensus.Service, logger arbor.ILogger) *ConsensusHandler {
	return &ConsensusHandler{
		consensus: consensusService,
		logger:    logger,
	}
}

type consensusRequest struct {
	Ticker string `json:"ticker"`
}

// ConsensusHandler handles POST /api/consensus requests
func (h *ConsensusHandler) ConsensusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req consensusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Ticker == "" {
		WriteError(w, http.StatusBadRequest, "ticker field is required")
		return
	}

	result, err := h.consensus.Fetch(r.Context(), req.Ticker)
	if err != nil {
		h.logger.Error().Err(err).Str("ticker", req.Ticker).Msg("Consensus fetch failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
