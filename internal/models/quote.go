package models

// Quote is the result of a price lookup for one symbol.
type Quote struct {
	Price  float64 `json:"price"`
	Source string  `json:"source"`
	Symbol string  `json:"symbol"`
}
