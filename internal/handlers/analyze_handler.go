package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ternarybob/analyst/internal/models"
	"github.com/ternarybob/analyst/internal/services/analyzer"
	"github.com/ternarybob/arbor"
)

// AnalyzeHandler handles analysis generation requests.
type AnalyzeHandler struct {
	analyzerService *analyzer.Service
	logger          arbor.ILogger
}

// NewAnalyzeHandler creates a new analyze handler
func NewAnalyzeHandler(analyzerService *analyzer.Service, logger arbor.ILogger) *AnalyzeHandler {
	return &AnalyzeHandler{
		analyzerService: analyzerService,
		logger:          logger,
	}
}

type analyzeRequest struct {
	Subject      string `json:"subject"`
	CompanyName  string `json:"companyName"`
	Depth        string `json:"depth"`
	AnthropicKey string `json:"anthropicKey"`
}

func (req *analyzeRequest) subject() string {
	if req.Subject != "" {
		return req.Subject
	}
	return req.CompanyName
}

// AnalyzeHandler handles POST /api/analyze requests
func (h *AnalyzeHandler) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.subject() == "" {
		WriteError(w, http.StatusBadRequest, "subject or companyName field is required")
		return
	}

	h.logger.Info().
		Str("subject", req.subject()).
		Str("depth", req.Depth).
		Msg("Processing analysis request")

	result, warnings, err := h.analyzerService.Analyze(r.Context(), req.subject(), models.Depth(req.Depth), req.AnthropicKey)
	if err != nil {
		h.writeAnalysisError(w, err)
		return
	}

	response := map[string]interface{}{
		"result": result,
	}
	if len(warnings) > 0 {
		response["warnings"] = warnings
	}
	WriteJSON(w, http.StatusOK, response)
}

// PipelineHandler handles POST /api/analyze/pipeline requests
func (h *AnalyzeHandler) PipelineHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.subject() == "" {
		WriteError(w, http.StatusBadRequest, "subject or companyName field is required")
		return
	}

	h.logger.Info().
		Str("subject", req.subject()).
		Str("depth", req.Depth).
		Msg("Processing pipeline analysis request")

	report, err := h.analyzerService.AnalyzePipeline(r.Context(), req.subject(), models.Depth(req.Depth), req.AnthropicKey)
	if err != nil {
		h.writeAnalysisError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, report)
}

// writeAnalysisError maps analyzer failures onto HTTP statuses: missing
// inputs are the caller's fault, everything else is an upstream or
// parse failure.
func (h *AnalyzeHandler) writeAnalysisError(w http.ResponseWriter, err error) {
	var precondition *analyzer.PreconditionError
	if errors.As(err, &precondition) {
		WriteError(w, http.StatusBadRequest, precondition.Error())
		return
	}

	var malformed *analyzer.MalformedOutputError
	if errors.As(err, &malformed) {
		h.logger.Warn().Str("raw", malformed.RawText).Msg("Analysis output did not parse")
		WriteError(w, http.StatusInternalServerError, "analysis generation failed: "+malformed.Reason)
		return
	}

	h.logger.Error().Err(err).Msg("Analysis generation failed")
	WriteError(w, http.StatusInternalServerError, "analysis generation failed: "+err.Error())
}
