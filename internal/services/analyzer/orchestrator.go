package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ternarybob/analyst/internal/models"
	"github.com/ternarybob/arbor"
)

// ModelCaller abstracts the model endpoint for the orchestrator loop.
type ModelCaller interface {
	CreateMessage(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

// claudeCaller adapts an anthropic.Client to the ModelCaller interface.
type claudeCaller struct {
	client anthropic.Client
}

// NewClaudeCaller wraps a Claude client as a ModelCaller.
func NewClaudeCaller(client anthropic.Client) ModelCaller {
	return &claudeCaller{client: client}
}

func (c *claudeCaller) CreateMessage(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return c.client.Messages.New(ctx, params)
}

// ToolRunner resolves client-side tool invocations requested by the
// model. The web-search tool runs server-side and never reaches the
// runner.
type ToolRunner interface {
	Declarations() []anthropic.ToolUnionParam
	Run(ctx context.Context, name string, input json.RawMessage) (string, error)
}

// Options bound one orchestrator instance. Zero values fall back to
// the defaults applied by NewOrchestrator.
type Options struct {
	Credential         string
	Model              string
	TurnBudget         int
	MaxToolResultChars int
	MaxRetries         int
	RetryBackoff       time.Duration
	CallTimeout        time.Duration
	WebSearchMaxUses   int
	Runner             ToolRunner
}

// Orchestrator drives a bounded tool-use conversation with the model
// endpoint and extracts one JSON object from its final text. Each Run
// invocation owns its transcript exclusively; instances hold no mutable
// state and are safe for concurrent use.
type Orchestrator struct {
	caller ModelCaller
	opts   Options
	logger arbor.ILogger
}

// NewOrchestrator creates an orchestrator over the given model caller.
func NewOrchestrator(caller ModelCaller, opts Options, logger arbor.ILogger) *Orchestrator {
	if opts.TurnBudget <= 0 {
		opts.TurnBudget = 6
	}
	if opts.MaxToolResultChars <= 0 {
		opts.MaxToolResultChars = 1500
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 5 * time.Minute
	}
	if opts.WebSearchMaxUses <= 0 {
		opts.WebSearchMaxUses = 5
	}
	return &Orchestrator{
		caller: caller,
		opts:   opts,
		logger: logger,
	}
}

// Run executes one analysis pass and returns the extracted JSON object.
func (o *Orchestrator) Run(ctx context.Context, flavor Flavor, subject string, depth models.Depth) (json.RawMessage, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, &PreconditionError{Field: "subject"}
	}
	if o.opts.Credential == "" {
		return nil, &PreconditionError{Field: "credential"}
	}
	if depth == "" {
		depth = models.DepthDeep
	}

	tools := []anthropic.ToolUnionParam{
		{OfWebSearchTool20250305: &anthropic.WebSearchTool20250305Param{
			MaxUses: anthropic.Int(int64(o.opts.WebSearchMaxUses)),
		}},
	}
	if o.opts.Runner != nil {
		tools = append(tools, o.opts.Runner.Declarations()...)
	}

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(flavor.UserPrompt(subject, depth, time.Now()))),
	}

	var finalText string

loop:
	for turn := 0; turn < o.opts.TurnBudget; turn++ {
		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(o.opts.Model),
			MaxTokens: int64(flavor.MaxTokens(depth)),
			System:    []anthropic.TextBlockParam{{Text: flavor.System}},
			Tools:     tools,
			Messages:  messages,
		}

		resp, err := o.callModel(ctx, params)
		if err != nil {
			return nil, &UpstreamError{Stage: flavor.Name + " model call", Err: err}
		}

		if text := collectText(resp.Content); text != "" {
			finalText = text
		}

		o.logger.Debug().
			Str("flavor", flavor.Name).
			Int("turn", turn+1).
			Str("stop_reason", string(resp.StopReason)).
			Msg("Model round-trip complete")

		switch resp.StopReason {
		case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence, anthropic.StopReasonMaxTokens:
			break loop
		case anthropic.StopReasonToolUse:
			messages = append(messages, assistantMessage(resp.Content))
			messages = append(messages, anthropic.NewUserMessage(o.resolveToolUses(ctx, resp.Content)...))
		case anthropic.StopReasonPauseTurn:
			// Server-side tool still running; echo the assistant turn
			// back wholesale and let the model continue.
			messages = append(messages, assistantMessage(resp.Content))
		default:
			return nil, &UpstreamError{
				Stage: flavor.Name + " model call",
				Err:   fmt.Errorf("unrecognized stop reason %q", resp.StopReason),
			}
		}
	}

	return ExtractJSONObject(finalText)
}

// callModel performs one model call under the per-call timeout,
// repeating per the configured retry policy (zero retries by default).
func (o *Orchestrator) callModel(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	var resp *anthropic.Message
	var err error

	for attempt := 0; attempt <= o.opts.MaxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
		resp, err = o.caller.CreateMessage(callCtx, params)
		cancel()
		if err == nil {
			return resp, nil
		}
		if attempt == o.opts.MaxRetries {
			break
		}

		backoff := time.Duration(attempt+1) * o.opts.RetryBackoff
		o.logger.Warn().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(err).
			Msg("Retrying model call")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, err
}

// resolveToolUses produces exactly one tool_result block per tool_use
// block, matched by id and in the same relative order. Payloads are
// truncated to the configured cap to bound transcript growth.
func (o *Orchestrator) resolveToolUses(ctx context.Context, content []anthropic.ContentBlockUnion) []anthropic.ContentBlockParamUnion {
	var results []anthropic.ContentBlockParamUnion
	for _, block := range content {
		if block.Type != "tool_use" {
			continue
		}

		payload, isError := o.runTool(ctx, block.Name, block.Input)
		payload = truncateUTF8(payload, o.opts.MaxToolResultChars)
		results = append(results, anthropic.NewToolResultBlock(block.ID, payload, isError))
	}
	return results
}

func (o *Orchestrator) runTool(ctx context.Context, name string, input any) (string, bool) {
	if o.opts.Runner == nil {
		return fmt.Sprintf("tool %q is not available", name), true
	}
	rawInput, err := json.Marshal(input)
	if err != nil {
		return fmt.Sprintf("tool %q input does not serialize: %v", name, err), true
	}
	payload, err := o.opts.Runner.Run(ctx, name, rawInput)
	if err != nil {
		o.logger.Warn().Str("tool", name).Err(err).Msg("Tool execution failed")
		return err.Error(), true
	}
	return payload, false
}

// assistantMessage converts received content blocks back into request
// params so the transcript can be replayed to the endpoint. Every block
// type the endpoint emits must round-trip: server_tool_use and
// web_search_tool_result blocks carry the state of an in-flight web
// search. Message.ToParam in anthropic-sdk-go v1.19.0 drops exactly
// those blocks, hence the hand-rolled conversion.
func assistantMessage(content []anthropic.ContentBlockUnion) anthropic.MessageParam {
	var blocks []anthropic.ContentBlockParamUnion
	for _, block := range content {
		switch block.Type {
		case "text":
			blocks = append(blocks, anthropic.NewTextBlock(block.Text))
		case "tool_use":
			blocks = append(blocks, anthropic.ContentBlockParamUnion{
				OfToolUse: &anthropic.ToolUseBlockParam{
					ID:    block.ID,
					Input: block.Input,
					Name:  block.Name,
				},
			})
		case "server_tool_use":
			blocks = append(blocks, anthropic.NewServerToolUseBlock(block.ID, block.Input))
		case "web_search_tool_result":
			blocks = append(blocks, webSearchResultParam(block))
		case "thinking":
			blocks = append(blocks, anthropic.NewThinkingBlock(block.Signature, block.Thinking))
		case "redacted_thinking":
			blocks = append(blocks, anthropic.NewRedactedThinkingBlock(block.Data))
		}
	}
	return anthropic.NewAssistantMessage(blocks...)
}

// webSearchResultParam rebuilds one web_search_tool_result block, either
// the result list or the tool error the endpoint reported.
func webSearchResultParam(block anthropic.ContentBlockUnion) anthropic.ContentBlockParamUnion {
	if block.Content.Type == "web_search_tool_result_error" {
		return anthropic.NewWebSearchToolResultBlock(anthropic.WebSearchToolRequestErrorParam{
			ErrorCode: anthropic.WebSearchToolRequestErrorErrorCode(block.Content.ErrorCode),
		}, block.ToolUseID)
	}

	results := make([]anthropic.WebSearchResultBlockParam, 0, len(block.Content.OfWebSearchResultBlockArray))
	for _, r := range block.Content.OfWebSearchResultBlockArray {
		item := anthropic.WebSearchResultBlockParam{
			EncryptedContent: r.EncryptedContent,
			Title:            r.Title,
			URL:              r.URL,
		}
		if r.PageAge != "" {
			item.PageAge = anthropic.String(r.PageAge)
		}
		results = append(results, item)
	}
	return anthropic.NewWebSearchToolResultBlock(results, block.ToolUseID)
}

// truncateUTF8 caps s at max bytes without splitting a multi-byte rune,
// walking back to the nearest rune boundary.
func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// collectText joins the text blocks of one response.
func collectText(content []anthropic.ContentBlockUnion) string {
	var parts []string
	for _, block := range content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}
