package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/analyst/internal/common"
	"github.com/ternarybob/analyst/internal/models"
	"github.com/ternarybob/arbor"
)

// CallerFactory builds a ModelCaller for one credential. Swappable in
// tests.
type CallerFactory func(credential string) ModelCaller

// Service runs analysis passes against the model endpoint, producing
// validated analysis objects.
type Service struct {
	config        *common.Config
	callerFactory CallerFactory
	runner        ToolRunner
	logger        arbor.ILogger
}

// NewService creates an analysis service. runner may be nil when no
// client-side tools are offered to the model.
func NewService(config *common.Config, runner ToolRunner, logger arbor.ILogger) *Service {
	return &Service{
		config: config,
		callerFactory: func(credential string) ModelCaller {
			return NewClaudeCaller(anthropic.NewClient(option.WithAPIKey(credential)))
		},
		runner: runner,
		logger: logger,
	}
}

// WithCallerFactory overrides how model callers are constructed.
func (s *Service) WithCallerFactory(factory CallerFactory) *Service {
	s.callerFactory = factory
	return s
}

// resolveCredential prefers the per-request credential over the
// configured one.
func (s *Service) resolveCredential(requestKey string) string {
	if requestKey != "" {
		return requestKey
	}
	return s.config.Claude.APIKey
}

func (s *Service) orchestratorFor(credential string) *Orchestrator {
	callTimeout, err := time.ParseDuration(s.config.Claude.Timeout)
	if err != nil {
		callTimeout = 5 * time.Minute
	}
	retryBackoff, err := time.ParseDuration(s.config.Analysis.RetryBackoff)
	if err != nil {
		retryBackoff = 2 * time.Second
	}

	return NewOrchestrator(s.callerFactory(credential), Options{
		Credential:         credential,
		Model:              s.config.Claude.Model,
		TurnBudget:         s.config.Analysis.TurnBudget,
		MaxToolResultChars: s.config.Analysis.MaxToolResultChars,
		MaxRetries:         s.config.Analysis.MaxRetries,
		RetryBackoff:       retryBackoff,
		CallTimeout:        callTimeout,
		Runner:             s.runner,
	}, s.logger)
}

// Analyze runs the single-pass analysis flavor for one subject and
// returns the parsed result with a fresh id and timestamp, plus any
// schema warnings from the validation layer.
func (s *Service) Analyze(ctx context.Context, subject string, depth models.Depth, requestKey string) (*models.AnalysisResult, []string, error) {
	credential := s.resolveCredential(requestKey)

	start := time.Now()
	raw, err := s.orchestratorFor(credential).Run(ctx, AnalysisFlavor(), subject, depth)
	if err != nil {
		return nil, nil, err
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, nil, NewMalformedOutputError(fmt.Sprintf("analysis object does not decode: %v", err), string(raw))
	}

	result.ID = common.NewAnalysisID()
	if result.UpdatedAt == "" {
		result.UpdatedAt = time.Now().Format("2006-01-02")
	}

	warnings := result.Validate()
	s.logger.Info().
		Str("subject", subject).
		Str("ticker", result.Ticker).
		Dur("elapsed", time.Since(start)).
		Int("warnings", len(warnings)).
		Msg("Analysis complete")

	return &result, warnings, nil
}
