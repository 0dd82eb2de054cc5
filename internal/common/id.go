package common

import (
	"github.com/google/uuid"
)

// NewAnalysisID generates a unique analysis ID with the "ana_" prefix
// Format: ana_<uuid>
func NewAnalysisID() string {
	return "ana_" + uuid.New().String()
}

// NewStockID generates a unique stock record ID with the "stk_" prefix
// Format: stk_<uuid>
func NewStockID() string {
	return "stk_" + uuid.New().String()
}
