// Package parser turns pasted free-text research notes into structured
// analysis objects: model-assisted extraction when a credential is
// available, labeled-pattern extraction otherwise.
package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/analyst/internal/common"
	"github.com/ternarybob/analyst/internal/models"
	"github.com/ternarybob/analyst/internal/services/analyzer"
	"github.com/ternarybob/analyst/internal/services/llm"
	"github.com/ternarybob/arbor"
)

const parsePromptTemplate = `Below is a stock analysis text. Read it and respond with JSON only, no other explanation.

Analysis text:
%s

Extract into this JSON structure. Use empty strings or empty arrays for missing information:
{
  "ticker": "ticker symbol",
  "name": "company name",
  "market": "US, KR, HK, TW, CN_SH or CN_SZ",
  "exchange": "NASDAQ/NYSE/KOSPI/KOSDAQ/HKEX/TWSE/SSE/SZSE etc",
  "sector": "sector",
  "currentPrice": number,
  "fairValue": number,
  "currency": "USD, KRW, HKD, TWD or CNY",
  "verdict": "investment opinion text",
  "verdictType": "one of buy/hold/sell/watch",
  "oneLiner": "one-line opinion",
  "narrative": "full narrative text",
  "keyPoints": [{"num":1,"label":"label","content":"content"}],
  "dealRadar": "deal radar content",
  "scenarios": [
    {"type":"Bull","prob":number,"price":number,"color":"#00d27a"},
    {"type":"Base","prob":number,"price":number,"color":"#f5a623"},
    {"type":"Bear","prob":number,"price":number,"color":"#e74c3c"}
  ],
  "weightedFV": number,
  "events": [{"event":"event name","impact":"+X%% or -X%%","direction":"up or down"}],
  "assumptions": [{"item":"item","value":"value","basis":"basis","sensitivity":"sensitivity"}],
  "sources": ["source1","source2"],
  "updatedAt": "YYYY-MM-DD"
}`

// ContentGenerator is the slice of the LLM provider the parser needs.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, request *llm.ContentRequest) (*llm.ContentResponse, error)
}

// GeneratorFactory builds a content generator honoring a per-request
// credential.
type GeneratorFactory func(credential string) ContentGenerator

// Service parses free-text analyses.
type Service struct {
	config           *common.Config
	generatorFactory GeneratorFactory
	logger           arbor.ILogger
}

// NewService creates a parser service.
func NewService(config *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		config: config,
		generatorFactory: func(credential string) ContentGenerator {
			claudeCfg := config.Claude
			if credential != "" {
				claudeCfg.APIKey = credential
			}
			return llm.NewProviderFactory(&claudeCfg, &config.Gemini, &config.LLM, logger)
		},
		logger: logger,
	}
}

// WithGeneratorFactory overrides how content generators are built.
func (s *Service) WithGeneratorFactory(factory GeneratorFactory) *Service {
	s.generatorFactory = factory
	return s
}

// Parse extracts an analysis object from text. With a usable credential
// the model does the extraction; otherwise, or when the model call
// fails, the labeled-pattern fallback fills what it can and the result
// is marked accordingly.
func (s *Service) Parse(ctx context.Context, text, credential string) (*models.ParseResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is required")
	}

	if s.hasCredential(credential) {
		result, err := s.parseWithAI(ctx, text, credential)
		if err == nil {
			return result, nil
		}
		s.logger.Warn().Err(err).Msg("AI parse failed, falling back to pattern extraction")
		fallback := parseWithPatterns(text)
		fallback.Warning = fmt.Sprintf("AI parse failed (%v); used pattern extraction", err)
		return fallback, nil
	}

	result := parseWithPatterns(text)
	result.Warning = "no model credential available; used pattern extraction"
	return result, nil
}

func (s *Service) hasCredential(credential string) bool {
	if credential != "" {
		return true
	}
	switch s.config.LLM.DefaultProvider {
	case common.LLMProviderGemini:
		return s.config.Gemini.APIKey != ""
	default:
		return s.config.Claude.APIKey != ""
	}
}

func (s *Service) parseWithAI(ctx context.Context, text, credential string) (*models.ParseResult, error) {
	generator := s.generatorFactory(credential)

	model := s.config.Claude.ParseModel
	if s.config.LLM.DefaultProvider == common.LLMProviderGemini {
		model = s.config.Gemini.Model
	}

	response, err := generator.GenerateContent(ctx, &llm.ContentRequest{
		Prompt:    fmt.Sprintf(parsePromptTemplate, text),
		Model:     model,
		MaxTokens: 2000,
	})
	if err != nil {
		return nil, err
	}

	raw, err := analyzer.ExtractJSONObject(analyzer.StripCodeFences(response.Text))
	if err != nil {
		return nil, err
	}

	var analysis models.AnalysisResult
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, fmt.Errorf("parsed object does not decode: %w", err)
	}

	return &models.ParseResult{
		AnalysisResult: analysis,
		Method:         models.ParseMethodAI,
	}, nil
}
