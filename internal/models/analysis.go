package models

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

// Scenario display colors used by the presentation layer.
const (
	ScenarioColorBull = "#00d27a"
	ScenarioColorBase = "#f5a623"
	ScenarioColorBear = "#e74c3c"
)

// Depth selects the thoroughness tier of an analysis run.
type Depth string

const (
	DepthQuick Depth = "quick"
	DepthDeep  Depth = "deep"
)

// IsValid returns true if the depth is a recognized tier.
func (d Depth) IsValid() bool {
	return d == DepthQuick || d == DepthDeep
}

// KeyPoint is one numbered entry in the analysis key-point list.
type KeyPoint struct {
	Num     int    `json:"num"`
	Label   string `json:"label"`
	Content string `json:"content"`
}

// Scenario is one of the three Bull/Base/Bear outcome projections.
type Scenario struct {
	Type        string  `json:"type" validate:"required,oneof=Bull Base Bear"`
	Prob        float64 `json:"prob" validate:"gte=0,lte=100"`
	Price       float64 `json:"price"`
	Color       string  `json:"color"`
	Description string  `json:"description"`
}

// Event is a dated catalyst with expected direction.
type Event struct {
	Event     string `json:"event"`
	Impact    string `json:"impact"`
	Direction string `json:"direction" validate:"omitempty,oneof=up down"`
}

// Assumption is one row of the model's stated inputs.
type Assumption struct {
	Item        string `json:"item"`
	Value       string `json:"value"`
	Basis       string `json:"basis"`
	Sensitivity string `json:"sensitivity"`
}

// Peer is one comparable-company row.
type Peer struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
	Metric string `json:"metric"`
	Value  string `json:"value"`
}

// AnalysisResult is the structured output of one analysis run. The
// orchestrator returns it verbatim from the model's JSON; Validate and
// CheckScenarioProbabilities form a separate layer that flags contract
// violations as warnings rather than rejecting the result.
type AnalysisResult struct {
	ID               string       `json:"id,omitempty"`
	Ticker           string       `json:"ticker" validate:"required"`
	Name             string       `json:"name" validate:"required"`
	Market           string       `json:"market" validate:"required,oneof=US KR HK TW CN_SH CN_SZ"`
	Exchange         string       `json:"exchange"`
	Sector           string       `json:"sector"`
	Currency         string       `json:"currency" validate:"required,oneof=USD KRW HKD TWD CNY"`
	CurrentPrice     float64      `json:"currentPrice"`
	FairValue        float64      `json:"fairValue"`
	Verdict          string       `json:"verdict" validate:"required"`
	VerdictType      string       `json:"verdictType" validate:"required,oneof=buy hold sell watch"`
	OneLiner         string       `json:"oneLiner"`
	Narrative        string       `json:"narrative"`
	KeyPoints        []KeyPoint   `json:"keyPoints"`
	DealRadar        string       `json:"dealRadar"`
	Scenarios        []Scenario   `json:"scenarios" validate:"len=3,dive"`
	WeightedFV       float64      `json:"weightedFV"`
	ReversalCheck    string       `json:"reversalCheck,omitempty"`
	Events           []Event      `json:"events"`
	Assumptions      []Assumption `json:"assumptions"`
	Peers            []Peer       `json:"peers,omitempty"`
	CredibilityCheck string       `json:"credibilityCheck,omitempty"`
	Sources          []string     `json:"sources"`
	UpdatedAt        string       `json:"updatedAt"`
}

var validate = validator.New()

// Validate checks required fields and enum membership. Violations are
// returned as a warning list so callers can surface them without
// discarding the result.
func (r *AnalysisResult) Validate() []string {
	var warnings []string
	if err := validate.Struct(r); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, ve := range verrs {
				warnings = append(warnings, fmt.Sprintf("field %s failed %s validation", ve.Field(), ve.Tag()))
			}
		} else {
			warnings = append(warnings, err.Error())
		}
	}
	if err := r.CheckScenarioProbabilities(); err != nil {
		warnings = append(warnings, err.Error())
	}
	return warnings
}

// CheckScenarioProbabilities verifies the three scenario probabilities
// sum to exactly 100.
func (r *AnalysisResult) CheckScenarioProbabilities() error {
	if len(r.Scenarios) != 3 {
		return fmt.Errorf("expected 3 scenarios, got %d", len(r.Scenarios))
	}
	var sum float64
	for _, s := range r.Scenarios {
		sum += s.Prob
	}
	if math.Abs(sum-100) > 1e-9 {
		return fmt.Errorf("scenario probabilities sum to %g, expected 100", sum)
	}
	return nil
}
