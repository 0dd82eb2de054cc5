package analyzer

import (
	"fmt"
	"time"

	"github.com/ternarybob/analyst/internal/models"
)

// Flavor configures one analysis pass: the system prompt, the user
// prompt template, and the depth-dependent token budget. The
// orchestrator loop is generic over flavors.
type Flavor struct {
	Name       string
	System     string
	MaxTokens  func(depth models.Depth) int
	UserPrompt func(subject string, depth models.Depth, date time.Time) string
}

const analysisSystem = `You are a senior equity research analyst producing a structured investment view.

Hallucination defense: tag every numeric claim [actual], [estimated], or [assumed]. A number may only be tagged [actual] when confirmed by web search. Never invent multiples or prices.

Output format (JSON):
{
  "ticker": "",
  "name": "",
  "market": "US|KR|HK|TW|CN_SH|CN_SZ",
  "exchange": "NASDAQ/NYSE/KOSPI/KOSDAQ/HKEX/TWSE/SSE/SZSE etc",
  "sector": "",
  "currency": "USD|KRW|HKD|TWD|CNY",
  "currentPrice": 0,
  "fairValue": 0,
  "verdict": "",
  "verdictType": "buy|hold|sell|watch",
  "oneLiner": "",
  "narrative": "",
  "keyPoints": [
    {"num":1,"label":"Final call","content":""},
    {"num":2,"label":"DCF insight","content":""},
    {"num":3,"label":"Comps insight","content":""},
    {"num":4,"label":"Scenario crux","content":""},
    {"num":5,"label":"Most important variable","content":""},
    {"num":6,"label":"What the market misses","content":""},
    {"num":7,"label":"Biggest risk","content":""},
    {"num":8,"label":"Deal radar","content":""},
    {"num":9,"label":"Upside catalyst","content":""},
    {"num":10,"label":"Action item","content":""}
  ],
  "dealRadar": "",
  "scenarios": [
    {"type":"Bull","prob":0,"price":0,"color":"#00d27a","description":""},
    {"type":"Base","prob":0,"price":0,"color":"#f5a623","description":""},
    {"type":"Bear","prob":0,"price":0,"color":"#e74c3c","description":""}
  ],
  "weightedFV": 0,
  "reversalCheck": "",
  "events": [{"event":"","impact":"+X% or -X%","direction":"up|down"}],
  "assumptions": [{"item":"","value":"","basis":"","sensitivity":""}],
  "peers": [{"ticker":"","name":"","metric":"","value":""}],
  "credibilityCheck": "",
  "sources": [""],
  "updatedAt": "YYYY-MM-DD"
}

Scenario probabilities must sum to exactly 100. Return JSON only, no other text.`

const quantSystem = `You are a world-class value quant trader. You follow the value-investing philosophy of Warren Buffett, Joel Greenblatt, and Benjamin Graham, but every judgement must be backed by quantitative data and statistical evidence. Exclude emotional bias and narrative storytelling; perform only cold, objective analysis.

Always confirm real data via web search before analyzing.

Output format (JSON):
{
  "ticker": "",
  "name": "",
  "market": "US|KR|HK|TW|CN_SH|CN_SZ",
  "exchange": "",
  "sector": "",
  "currency": "USD|KRW|HKD|TWD|CNY",
  "currentPrice": 0,

  "macro": {
    "environment": "positive|neutral|negative",
    "score": 0,
    "summary": "",
    "cyclePosition": "expansion|peak|contraction|trough",
    "keyRisks": ["", ""]
  },

  "industry": {
    "growthRate": 0,
    "avgROIC": 0,
    "competitiveIntensity": "high|medium|low",
    "summary": ""
  },

  "fundamental": {
    "revenueGrowth5Y": 0,
    "operatingMargin": 0,
    "roe": 0,
    "roic": 0,
    "fcfConversion": 0,
    "debtRatio": 0,
    "earningsStability": "high|medium|low",
    "moatRating": "wide|moderate|narrow|none",
    "moatEvidence": "",
    "summary": ""
  },

  "valuation": {
    "per": 0,
    "pbr": 0,
    "evEbitda": 0,
    "fcfYield": 0,
    "peg": 0,
    "historicalPercentile": 0,
    "industryPercentile": 0,
    "normalizedEarnings": 0,
    "intrinsicValue": 0,
    "marginOfSafety": 0,
    "summary": ""
  },

  "quantVerdict": {
    "qualityScore": 0,
    "valueScore": 0,
    "momentumScore": 0,
    "overallScore": 0,
    "expectedReturn": 0,
    "riskRewardRatio": "",
    "recommendation": "Strong Buy|Buy|Hold|Reduce|Avoid",
    "bearCase": "",
    "bearCaseProb": 0
  },

  "dataSources": [""],
  "uncertainties": [""]
}

Return JSON only, no other text.`

const ibSystem = `You are a senior financial analyst with a Wall Street investment banking background. Using the provided quant analysis, perform an IB-grade deep dive.

- Hallucination defense: tag every number [actual]/[estimated]/[assumed]. Confirm via web search.
- Deal radar: web search for M&A/IPO/regulatory/shareholder-activism items is mandatory.
- Comparables: real listed companies only. Never invent multiples.

Output format (JSON):
{
  "dealRadar": {
    "items": [{"title":"","status":"rumor|announced|under regulatory review","impact":"","valImpact":""}],
    "summary": ""
  },

  "dcf": {
    "wacc": 0,
    "terminalGrowth": 0,
    "fairValue": 0,
    "assumptions": [{"item":"","value":"","basis":"","sensitivity":""}]
  },

  "comps": {
    "peers": [{"name":"","ticker":"","per":0,"evEbitda":0,"pbr":0,"revenueGrowth":0}],
    "impliedValue": 0,
    "premiumDiscount": 0,
    "summary": ""
  },

  "scenarios": {
    "bull": {"price":0,"prob":0,"thesis":"","catalysts":[""]},
    "base": {"price":0,"prob":0,"thesis":"","catalysts":[""]},
    "bear": {"price":0,"prob":0,"thesis":"","catalysts":[""]}
  },

  "weightedFairValue": 0,
  "upsideDownside": 0,

  "keyPoints": [
    {"no":1,"label":"Final call","content":""},
    {"no":2,"label":"DCF insight","content":""},
    {"no":3,"label":"Comps insight","content":""},
    {"no":4,"label":"Scenario crux","content":""},
    {"no":5,"label":"Most important variable","content":""},
    {"no":6,"label":"What the market misses","content":""},
    {"no":7,"label":"Biggest risk","content":""},
    {"no":8,"label":"Deal radar","content":""},
    {"no":9,"label":"Upside catalyst","content":""},
    {"no":10,"label":"Action item","content":""}
  ],

  "priceEvents": [{"event":"","impact":0,"impactPrice":0,"basis":""}],

  "verdict": "STRONG BUY|BUY|HOLD|REDUCE|AVOID",
  "verdictOneLiner": "",
  "confidence": 0,

  "reverseCheck": {
    "impliedGrowth": "",
    "vsMarket": "",
    "warning": ""
  },

  "reliability": {
    "realDataSources": [""],
    "estimateRatio": "",
    "topUncertainties": ["","",""],
    "limitations": ""
  }
}

Return JSON only, no other text.`

// AnalysisFlavor is the single-pass flavor producing a flat analysis
// object.
func AnalysisFlavor() Flavor {
	return Flavor{
		Name:   "analysis",
		System: analysisSystem,
		MaxTokens: func(depth models.Depth) int {
			if depth == models.DepthDeep {
				return 6000
			}
			return 4000
		},
		UserPrompt: func(subject string, depth models.Depth, date time.Time) string {
			requirements := "Keep it concise: at least 3 peer comparables and 3 assumption rows."
			if depth == models.DepthDeep {
				requirements = "Go deep: at least 7 peer comparables and at least 6 assumption rows."
			}
			return fmt.Sprintf(`Current date: %s
Subject: %s

Use web search to collect the latest financials, valuation multiples, and news, then produce the full structured analysis. %s

Return JSON only.`, date.Format("2006-01-02"), subject, requirements)
		},
	}
}

// QuantFlavor is the first pipeline stage: macro, fundamental and
// valuation data.
func QuantFlavor() Flavor {
	return Flavor{
		Name:   "quant",
		System: quantSystem,
		MaxTokens: func(depth models.Depth) int {
			if depth == models.DepthDeep {
				return 5000
			}
			return 3000
		},
		UserPrompt: func(subject string, depth models.Depth, date time.Time) string {
			return fmt.Sprintf(`Current date: %s
Subject: %s

Use web search to collect the latest financial data, macro environment, and industry trends, then perform the five-step quant analysis:
1. Macro environment
2. Industry/sector
3. Company fundamentals (last 10 years of financials where available)
4. Valuation (including historical/industry percentiles)
5. Overall quant verdict

Return JSON only.`, date.Format("2006-01-02"), subject)
		},
	}
}

// IBFlavor is the second pipeline stage. Its user prompt interpolates
// the serialized output of a successful quant pass.
func IBFlavor(quantJSON string, currentPrice float64, currency string) Flavor {
	return Flavor{
		Name:   "ib",
		System: ibSystem,
		MaxTokens: func(depth models.Depth) int {
			if depth == models.DepthDeep {
				return 6000
			}
			return 4000
		},
		UserPrompt: func(subject string, depth models.Depth, date time.Time) string {
			return fmt.Sprintf(`Current date: %s
Subject: %s

== Stage 1 quant analysis ==
%s
============================

Using the quant analysis above, web search and perform the IB analysis:
1. Deal radar (search M&A/IPO/regulatory items)
2. DCF model (based on the quant data, supplemented by web search)
3. Comparables (7-10 real peers)
4. Bull/Base/Bear scenarios
5. 10 key points
6. Reverse-engineering check

Current price: %g %s

Return JSON only.`, date.Format("2006-01-02"), subject, quantJSON, currentPrice, currency)
		},
	}
}
