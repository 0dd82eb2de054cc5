package handlers

import (
	"net/http"

	"github.com/ternarybob/analyst/internal/services/scheduler"
	"github.com/ternarybob/arbor"
)

// RefreshHandler exposes manual quote refresh triggering.
type RefreshHandler struct {
	scheduler *scheduler.Service
	logger    arbor.ILogger
}

// NewRefreshHandler creates a new refresh handler
func NewRefreshHandler(schedulerService *scheduler.Service, logger arbor.ILogger) *RefreshHandler {
	return &RefreshHandler{
		scheduler: schedulerService,
		logger:    logger,
	}
}

// TriggerRefreshHandler handles POST /api/refresh requests
func (h *RefreshHandler) TriggerRefreshHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	refreshed, err := h.scheduler.TriggerNow(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Manual quote refresh failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "success",
		"refreshed": refreshed,
	})
}
