package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/analyst/internal/common"
	"github.com/ternarybob/analyst/internal/models"
)

// AnalyzePipeline runs the two-stage quant → IB composition. Stage 2
// never runs when stage 1 fails; the stage 1 error is returned
// unchanged.
func (s *Service) AnalyzePipeline(ctx context.Context, subject string, depth models.Depth, requestKey string) (*models.PipelineReport, error) {
	credential := s.resolveCredential(requestKey)
	orch := s.orchestratorFor(credential)

	quantRaw, err := orch.Run(ctx, QuantFlavor(), subject, depth)
	if err != nil {
		return nil, err
	}

	var quant map[string]any
	if err := json.Unmarshal(quantRaw, &quant); err != nil {
		return nil, NewMalformedOutputError(fmt.Sprintf("quant stage does not decode: %v", err), string(quantRaw))
	}

	quantPretty, err := json.MarshalIndent(quant, "", "  ")
	if err != nil {
		return nil, NewMalformedOutputError(fmt.Sprintf("quant stage does not re-serialize: %v", err), string(quantRaw))
	}

	currentPrice, _ := quant["currentPrice"].(float64)
	currency, _ := quant["currency"].(string)

	ibRaw, err := orch.Run(ctx, IBFlavor(string(quantPretty), currentPrice, currency), subject, depth)
	if err != nil {
		return nil, err
	}

	var ib map[string]any
	if err := json.Unmarshal(ibRaw, &ib); err != nil {
		return nil, NewMalformedOutputError(fmt.Sprintf("ib stage does not decode: %v", err), string(ibRaw))
	}

	report := mergeReport(quant, ib)
	report.ID = common.NewAnalysisID()
	if depth == "" {
		depth = models.DepthDeep
	}
	report.Depth = string(depth)
	report.AnalyzedAt = time.Now().Format(time.RFC3339)

	s.logger.Info().
		Str("subject", subject).
		Str("ticker", report.Ticker).
		Msg("Pipeline analysis complete")

	return report, nil
}

// mergeReport lifts identity fields from the quant stage and groups the
// remaining payloads under quant/ib.
func mergeReport(quant, ib map[string]any) *models.PipelineReport {
	str := func(m map[string]any, key string) string {
		s, _ := m[key].(string)
		return s
	}

	quantSection := map[string]any{
		"macro":         quant["macro"],
		"industry":      quant["industry"],
		"fundamental":   quant["fundamental"],
		"valuation":     quant["valuation"],
		"verdict":       quant["quantVerdict"],
		"sources":       quant["dataSources"],
		"uncertainties": quant["uncertainties"],
	}

	ibSection := map[string]any{
		"dealRadar":         ib["dealRadar"],
		"dcf":               ib["dcf"],
		"comps":             ib["comps"],
		"scenarios":         ib["scenarios"],
		"weightedFairValue": ib["weightedFairValue"],
		"upsideDownside":    ib["upsideDownside"],
		"keyPoints":         ib["keyPoints"],
		"priceEvents":       ib["priceEvents"],
		"verdict":           ib["verdict"],
		"verdictOneLiner":   ib["verdictOneLiner"],
		"confidence":        ib["confidence"],
		"reverseCheck":      ib["reverseCheck"],
		"reliability":       ib["reliability"],
	}

	currentPrice, _ := quant["currentPrice"].(float64)

	return &models.PipelineReport{
		Ticker:       str(quant, "ticker"),
		Name:         str(quant, "name"),
		Market:       str(quant, "market"),
		Exchange:     str(quant, "exchange"),
		Sector:       str(quant, "sector"),
		Currency:     str(quant, "currency"),
		CurrentPrice: currentPrice,
		Quant:        quantSection,
		IB:           ibSection,
	}
}
