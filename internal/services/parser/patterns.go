package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/analyst/internal/models"
)

// Labeled patterns for the no-credential fallback. These only pick up
// explicitly labeled figures; everything else stays empty for the user
// to fill in.
var (
	tickerRe       = regexp.MustCompile(`(?i)\b(?:ticker|symbol|종목코드)[:\s]+\$?([A-Za-z0-9.]{1,10})`)
	koreanCodeRe   = regexp.MustCompile(`\b(\d{6})\b`)
	currentPriceRe = regexp.MustCompile(`(?i)(?:current price|현재가|주가)[^0-9$]*\$?([0-9][0-9,]*(?:\.[0-9]+)?)`)
	fairValueRe    = regexp.MustCompile(`(?i)(?:fair value|target price|적정가|목표가|목표주가)[^0-9$]*\$?([0-9][0-9,]*(?:\.[0-9]+)?)`)
	scenarioRe     = regexp.MustCompile(`(?i)\b(bull|base|bear)\b[^0-9%]*([0-9]{1,3})\s*%[^0-9$]*\$?([0-9][0-9,]*(?:\.[0-9]+)?)`)
)

var verdictKeywords = []struct {
	pattern *regexp.Regexp
	verdict string
}{
	{regexp.MustCompile(`(?i)\bstrong buy\b|\bbuy\b|매수`), "buy"},
	{regexp.MustCompile(`(?i)\bsell\b|\breduce\b|\bavoid\b|매도`), "sell"},
	{regexp.MustCompile(`(?i)\bhold\b|\bneutral\b|중립|보유`), "hold"},
	{regexp.MustCompile(`(?i)\bwatch\b|관망`), "watch"},
}

var scenarioColors = map[string]string{
	"Bull": models.ScenarioColorBull,
	"Base": models.ScenarioColorBase,
	"Bear": models.ScenarioColorBear,
}

// parseWithPatterns extracts what the labeled patterns can find.
func parseWithPatterns(text string) *models.ParseResult {
	result := &models.ParseResult{Method: models.ParseMethodRegex}

	if m := tickerRe.FindStringSubmatch(text); m != nil {
		result.Ticker = strings.ToUpper(m[1])
	} else if m := koreanCodeRe.FindStringSubmatch(text); m != nil {
		result.Ticker = m[1]
	}

	// A six-digit numeric code implies a Korean listing
	if regexp.MustCompile(`^\d{6}$`).MatchString(result.Ticker) {
		result.Market = "KR"
		result.Currency = "KRW"
	}

	if v := matchFloat(currentPriceRe, text); v != nil {
		result.CurrentPrice = *v
	}
	if v := matchFloat(fairValueRe, text); v != nil {
		result.FairValue = *v
	}

	for _, kw := range verdictKeywords {
		if loc := kw.pattern.FindStringIndex(text); loc != nil {
			result.VerdictType = kw.verdict
			result.Verdict = strings.TrimSpace(text[loc[0]:loc[1]])
			break
		}
	}

	result.Scenarios = extractScenarios(text)
	if len(result.Scenarios) == 3 {
		var weighted float64
		for _, sc := range result.Scenarios {
			weighted += sc.Prob / 100 * sc.Price
		}
		result.WeightedFV = math.Round(weighted*100) / 100
	}

	return result
}

func extractScenarios(text string) []models.Scenario {
	matches := scenarioRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	byType := make(map[string]models.Scenario, 3)
	for _, m := range matches {
		name := strings.ToUpper(m[1][:1]) + strings.ToLower(m[1][1:])
		if _, dup := byType[name]; dup {
			continue
		}
		prob, _ := strconv.ParseFloat(m[2], 64)
		price, _ := strconv.ParseFloat(strings.ReplaceAll(m[3], ",", ""), 64)
		byType[name] = models.Scenario{
			Type:  name,
			Prob:  prob,
			Price: price,
			Color: scenarioColors[name],
		}
	}

	var scenarios []models.Scenario
	for _, name := range []string{"Bull", "Base", "Bear"} {
		if sc, ok := byType[name]; ok {
			scenarios = append(scenarios, sc)
		}
	}
	return scenarios
}

func matchFloat(re *regexp.Regexp, text string) *float64 {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return nil
	}
	return &v
}
