package models

import (
	"time"
)

// MaxHistorySnapshots bounds the per-stock analysis history.
const MaxHistorySnapshots = 20

// Stock is a persisted watchlist entry with its current analysis and a
// bounded history of prior analyses.
type Stock struct {
	ID        string          `json:"id" badgerhold:"key"`
	Ticker    string          `json:"ticker" badgerhold:"index" validate:"required"`
	Name      string          `json:"name"`
	Market    string          `json:"market" validate:"required,oneof=US KR HK TW CN_SH CN_SZ"`
	Analysis  *AnalysisResult `json:"analysis,omitempty"`
	History   []HistoryEntry  `json:"history,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// HistoryEntry is one archived analysis snapshot.
type HistoryEntry struct {
	SnapshotAt time.Time      `json:"snapshotAt"`
	Analysis   AnalysisResult `json:"analysis"`
}

// Validate checks the stock's required fields.
func (s *Stock) Validate() error {
	return validate.Struct(s)
}

// ArchiveAnalysis pushes the current analysis onto the front of the
// history before it is replaced. The history is capped at
// MaxHistorySnapshots; the oldest entries fall off.
func (s *Stock) ArchiveAnalysis(now time.Time) {
	if s.Analysis == nil {
		return
	}
	entry := HistoryEntry{SnapshotAt: now, Analysis: *s.Analysis}
	s.History = append([]HistoryEntry{entry}, s.History...)
	if len(s.History) > MaxHistorySnapshots {
		s.History = s.History[:MaxHistorySnapshots]
	}
}
