// Package common provides shared utilities across the application.
package common

import (
	"strings"
)

// Market codes supported by the analysis schema.
const (
	MarketUS   = "US"
	MarketKR   = "KR"
	MarketHK   = "HK"
	MarketTW   = "TW"
	MarketCNSH = "CN_SH"
	MarketCNSZ = "CN_SZ"
)

// MarketToSuffix maps market codes to Yahoo Finance symbol suffixes.
// US symbols carry no suffix.
var MarketToSuffix = map[string]string{
	MarketKR:   ".KS",
	MarketHK:   ".HK",
	MarketTW:   ".TW",
	MarketCNSH: ".SS",
	MarketCNSZ: ".SZ",
}

// MarketToCurrency maps market codes to their trading currency.
var MarketToCurrency = map[string]string{
	MarketUS:   "USD",
	MarketKR:   "KRW",
	MarketHK:   "HKD",
	MarketTW:   "TWD",
	MarketCNSH: "CNY",
	MarketCNSZ: "CNY",
}

// IsValidMarket reports whether code is one of the supported market codes.
func IsValidMarket(code string) bool {
	_, ok := MarketToCurrency[code]
	return ok
}

// BuildQuoteSymbol builds a provider symbol from a ticker and market code.
// Korean tickers are numeric codes zero-padded to 6 digits (e.g. "5930" ->
// "005930.KS"); other markets append their suffix unchanged.
func BuildQuoteSymbol(ticker, market string) string {
	t := strings.TrimSpace(strings.ToUpper(ticker))
	if market == MarketKR {
		t = PadStockCode(t, 6)
	}
	if suffix, ok := MarketToSuffix[market]; ok {
		return t + suffix
	}
	return t
}

// PadStockCode left-pads a numeric stock code with zeros to the given width.
// Codes already at or beyond the width are returned unchanged.
func PadStockCode(code string, width int) string {
	if len(code) >= width {
		return code
	}
	return strings.Repeat("0", width-len(code)) + code
}
