package analyzer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ternarybob/analyst/internal/models"
)

// Client-side tool names offered to the model alongside web search.
const (
	ToolGetQuote     = "get_quote"
	ToolGetConsensus = "get_consensus"
	ToolGetNews      = "get_news"
)

// QuoteSource supplies current prices for the get_quote tool.
type QuoteSource interface {
	Quote(ctx context.Context, ticker, market, apiKey string) (*models.Quote, error)
}

// ConsensusSource supplies broker consensus for the get_consensus tool.
type ConsensusSource interface {
	Fetch(ctx context.Context, ticker string) (*models.Consensus, error)
}

// NewsSource supplies headlines for the get_news tool.
type NewsSource interface {
	Fetch(ctx context.Context, ticker, name, market string) (*models.NewsResult, error)
}

// ServiceToolRunner exposes the collaborator services as client-side
// tools the model can invoke mid-conversation. Results are serialized
// to JSON; the orchestrator truncates them.
type ServiceToolRunner struct {
	quotes    QuoteSource
	consensus ConsensusSource
	news      NewsSource
}

// NewServiceToolRunner builds a tool runner over the collaborator
// services. Any source may be nil; its tool is then not declared.
func NewServiceToolRunner(quotes QuoteSource, consensus ConsensusSource, news NewsSource) *ServiceToolRunner {
	return &ServiceToolRunner{quotes: quotes, consensus: consensus, news: news}
}

// Declarations returns the tool declarations for the configured
// sources.
func (r *ServiceToolRunner) Declarations() []anthropic.ToolUnionParam {
	var tools []anthropic.ToolUnionParam

	if r.quotes != nil {
		tools = append(tools, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        ToolGetQuote,
			Description: anthropic.String("Get the current market price for a stock ticker"),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]any{
					"ticker": map[string]any{"type": "string", "description": "Stock ticker symbol"},
					"market": map[string]any{"type": "string", "description": "Market code: US, KR, HK, TW, CN_SH or CN_SZ"},
				},
			},
		}})
	}

	if r.consensus != nil {
		tools = append(tools, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        ToolGetConsensus,
			Description: anthropic.String("Get aggregated broker consensus (target price, opinions, recent reports) for a Korean stock code"),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]any{
					"ticker": map[string]any{"type": "string", "description": "Six-digit Korean stock code"},
				},
			},
		}})
	}

	if r.news != nil {
		tools = append(tools, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        ToolGetNews,
			Description: anthropic.String("Get recent news headlines for a stock"),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: map[string]any{
					"ticker": map[string]any{"type": "string", "description": "Stock ticker symbol"},
					"name":   map[string]any{"type": "string", "description": "Company name"},
					"market": map[string]any{"type": "string", "description": "Market code"},
				},
			},
		}})
	}

	return tools
}

type toolInput struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
	Market string `json:"market"`
}

// Run dispatches one tool invocation and returns its JSON payload.
func (r *ServiceToolRunner) Run(ctx context.Context, name string, input json.RawMessage) (string, error) {
	var args toolInput
	if len(input) > 0 {
		if err := json.Unmarshal(input, &args); err != nil {
			return "", fmt.Errorf("invalid %s input: %w", name, err)
		}
	}

	switch name {
	case ToolGetQuote:
		if r.quotes == nil {
			return "", fmt.Errorf("tool %q is not available", name)
		}
		quote, err := r.quotes.Quote(ctx, args.Ticker, args.Market, "")
		if err != nil {
			return "", err
		}
		return marshalPayload(quote)
	case ToolGetConsensus:
		if r.consensus == nil {
			return "", fmt.Errorf("tool %q is not available", name)
		}
		consensus, err := r.consensus.Fetch(ctx, args.Ticker)
		if err != nil {
			return "", err
		}
		return marshalPayload(consensus)
	case ToolGetNews:
		if r.news == nil {
			return "", fmt.Errorf("tool %q is not available", name)
		}
		news, err := r.news.Fetch(ctx, args.Ticker, args.Name, args.Market)
		if err != nil {
			return "", err
		}
		return marshalPayload(news)
	default:
		return "", fmt.Errorf("unknown tool %q", name)
	}
}

func marshalPayload(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize tool payload: %w", err)
	}
	return string(data), nil
}
