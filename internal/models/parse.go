package models

// Parse method markers reported alongside a parsed analysis.
const (
	ParseMethodAI    = "ai"
	ParseMethodRegex = "regex"
)

// ParseResult wraps an analysis extracted from free text with metadata
// about how it was produced.
type ParseResult struct {
	AnalysisResult
	Method  string `json:"_method"`
	Warning string `json:"_warn,omitempty"`
}
