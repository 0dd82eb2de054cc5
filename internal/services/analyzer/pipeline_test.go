package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/analyst/internal/common"
	"github.com/ternarybob/analyst/internal/models"
)

func newTestService(caller ModelCaller) *Service {
	cfg := common.NewDefaultConfig()
	cfg.Claude.APIKey = "test-key"
	svc := NewService(cfg, nil, common.GetLogger())
	return svc.WithCallerFactory(func(string) ModelCaller { return caller })
}

const quantJSON = `{
	"ticker": "AAPL", "name": "Apple Inc.", "market": "US",
	"exchange": "NASDAQ", "sector": "Technology", "currency": "USD",
	"currentPrice": 230.5,
	"macro": {"score": 70},
	"quantVerdict": {"recommendation": "Buy"},
	"dataSources": ["10-K"]
}`

const ibJSON = `{
	"dcf": {"fairValue": 260},
	"weightedFairValue": 255,
	"verdict": "BUY"
}`

func TestPipelineMergesStages(t *testing.T) {
	caller := &fakeCaller{responses: []*anthropic.Message{
		textResponse(anthropic.StopReasonEndTurn, quantJSON),
		textResponse(anthropic.StopReasonEndTurn, ibJSON),
	}}
	svc := newTestService(caller)

	report, err := svc.AnalyzePipeline(context.Background(), "Apple", models.DepthDeep, "")

	require.NoError(t, err)
	require.Len(t, caller.calls, 2)
	assert.Equal(t, "AAPL", report.Ticker)
	assert.Equal(t, "US", report.Market)
	assert.Equal(t, 230.5, report.CurrentPrice)
	assert.Equal(t, map[string]any{"recommendation": "Buy"}, report.Quant["verdict"])
	assert.Equal(t, "BUY", report.IB["verdict"])
	assert.Equal(t, "deep", report.Depth)
	assert.True(t, strings.HasPrefix(report.ID, "ana_"))

	// The IB stage prompt must interpolate the quant output and the
	// quant current price.
	ibPrompt := caller.calls[1].Messages[0].Content[0].OfText.Text
	assert.Contains(t, ibPrompt, `"recommendation": "Buy"`)
	assert.Contains(t, ibPrompt, "230.5 USD")
}

func TestPipelineShortCircuitsOnStageOneFailure(t *testing.T) {
	caller := &fakeCaller{errs: []error{errors.New("quant blew up")}}
	svc := newTestService(caller)

	_, err := svc.AnalyzePipeline(context.Background(), "Apple", models.DepthDeep, "")

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Len(t, caller.calls, 1, "stage 2 must never run when stage 1 fails")
}

func TestPipelineMalformedQuantShortCircuits(t *testing.T) {
	caller := &fakeCaller{responses: []*anthropic.Message{
		textResponse(anthropic.StopReasonEndTurn, "no json here"),
	}}
	svc := newTestService(caller)

	_, err := svc.AnalyzePipeline(context.Background(), "Apple", models.DepthDeep, "")

	var malformed *MalformedOutputError
	require.ErrorAs(t, err, &malformed)
	assert.Len(t, caller.calls, 1)
}

func TestAnalyzeSinglePass(t *testing.T) {
	result := `{
		"ticker": "AAPL", "name": "Apple Inc.", "market": "US",
		"currency": "USD", "currentPrice": 230.5, "fairValue": 260,
		"verdict": "Accumulate", "verdictType": "buy",
		"scenarios": [
			{"type":"Bull","prob":35,"price":300,"color":"#00d27a"},
			{"type":"Base","prob":45,"price":250,"color":"#f5a623"},
			{"type":"Bear","prob":20,"price":180,"color":"#e74c3c"}
		]
	}`
	caller := &fakeCaller{responses: []*anthropic.Message{
		textResponse(anthropic.StopReasonEndTurn, result),
	}}
	svc := newTestService(caller)

	analysis, warnings, err := svc.Analyze(context.Background(), "Apple", models.DepthDeep, "")

	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "AAPL", analysis.Ticker)
	assert.True(t, strings.HasPrefix(analysis.ID, "ana_"))
	assert.NotEmpty(t, analysis.UpdatedAt)
}

func TestAnalyzeFlagsSchemaViolations(t *testing.T) {
	// Probabilities sum to 101: the validation layer reports it, the
	// call still succeeds.
	result := `{
		"ticker": "AAPL", "name": "Apple Inc.", "market": "US",
		"currency": "USD", "verdict": "Hold", "verdictType": "hold",
		"scenarios": [
			{"type":"Bull","prob":35,"price":300},
			{"type":"Base","prob":45,"price":250},
			{"type":"Bear","prob":21,"price":180}
		]
	}`
	caller := &fakeCaller{responses: []*anthropic.Message{
		textResponse(anthropic.StopReasonEndTurn, result),
	}}
	svc := newTestService(caller)

	analysis, warnings, err := svc.Analyze(context.Background(), "Apple", models.DepthDeep, "")

	require.NoError(t, err)
	require.NotNil(t, analysis)
	require.NotEmpty(t, warnings)
	assert.Contains(t, strings.Join(warnings, "; "), "101")
}

func TestAnalyzeRequestKeyTakesPrecedence(t *testing.T) {
	var seenCredential string
	cfg := common.NewDefaultConfig()
	cfg.Claude.APIKey = "config-key"
	caller := &fakeCaller{responses: []*anthropic.Message{
		textResponse(anthropic.StopReasonEndTurn, `{"ticker":"AAPL","name":"Apple","market":"US","currency":"USD","verdict":"Hold","verdictType":"hold","scenarios":[{"type":"Bull","prob":30,"price":1},{"type":"Base","prob":40,"price":1},{"type":"Bear","prob":30,"price":1}]}`),
	}}
	svc := NewService(cfg, nil, common.GetLogger()).WithCallerFactory(func(credential string) ModelCaller {
		seenCredential = credential
		return caller
	})

	_, _, err := svc.Analyze(context.Background(), "Apple", models.DepthDeep, "request-key")

	require.NoError(t, err)
	assert.Equal(t, "request-key", seenCredential)
}
