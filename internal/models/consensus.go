package models

// OpinionBreakdown aggregates analyst opinion counts and percentages.
type OpinionBreakdown struct {
	Buy     int     `json:"buy"`
	Hold    int     `json:"hold"`
	Sell    int     `json:"sell"`
	Total   int     `json:"total"`
	BuyPct  float64 `json:"buyPct"`
	HoldPct float64 `json:"holdPct"`
	SellPct float64 `json:"sellPct"`
}

// BrokerReport is one scraped broker research entry.
type BrokerReport struct {
	Broker      string  `json:"broker"`
	TargetPrice float64 `json:"targetPrice"`
	Opinion     string  `json:"opinion"`
	Date        string  `json:"date"`
	Title       string  `json:"title"`
}

// Consensus is the aggregated broker-consensus view for one ticker.
// Missing fields stay zero-valued; a partially populated result is the
// normal outcome, not an error.
type Consensus struct {
	Code                 string           `json:"code"`
	ConsensusTargetPrice *float64         `json:"consensusTargetPrice"`
	CurrentPrice         *float64         `json:"currentPrice"`
	UpsideVsConsensus    *float64         `json:"upsideVsConsensus"`
	AnalystCount         int              `json:"analystCount"`
	Opinions             OpinionBreakdown `json:"opinions"`
	RecentReports        []BrokerReport   `json:"recentReports"`
	Source               string           `json:"source"`
	FetchedAt            string           `json:"fetchedAt"`
}
