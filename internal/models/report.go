package models

// PipelineReport is the merged output of the two-stage quant → IB
// analysis pipeline. The stage payloads keep the model's nested JSON
// as-is; only identity fields are lifted to the top level.
type PipelineReport struct {
	ID           string         `json:"id,omitempty"`
	Ticker       string         `json:"ticker"`
	Name         string         `json:"name"`
	Market       string         `json:"market"`
	Exchange     string         `json:"exchange"`
	Sector       string         `json:"sector"`
	Currency     string         `json:"currency"`
	CurrentPrice float64        `json:"currentPrice"`
	Quant        map[string]any `json:"quant"`
	IB           map[string]any `json:"ib"`
	Depth        string         `json:"depth"`
	AnalyzedAt   string         `json:"analyzedAt"`
}
