package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/analyst/internal/common"
	"github.com/ternarybob/analyst/internal/models"
)

// fakeCaller replays canned responses and records every request. When
// the canned responses run out, the last one repeats.
type fakeCaller struct {
	calls     []anthropic.MessageNewParams
	responses []*anthropic.Message
	errs      []error
}

func (f *fakeCaller) CreateMessage(_ context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	idx := len(f.calls)
	f.calls = append(f.calls, params)
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if len(f.responses) == 0 {
		return nil, errors.New("no canned response")
	}
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

func textResponse(stop anthropic.StopReason, text string) *anthropic.Message {
	return &anthropic.Message{
		StopReason: stop,
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: text},
		},
	}
}

func toolUseResponse(ids ...string) *anthropic.Message {
	msg := &anthropic.Message{StopReason: anthropic.StopReasonToolUse}
	for _, id := range ids {
		msg.Content = append(msg.Content, anthropic.ContentBlockUnion{
			Type: "tool_use",
			ID:   id,
			Name: "web_search",
		})
	}
	return msg
}

func newTestOrchestrator(caller ModelCaller, turnBudget int) *Orchestrator {
	return NewOrchestrator(caller, Options{
		Credential: "test-key",
		Model:      "claude-sonnet-4-20250514",
		TurnBudget: turnBudget,
	}, common.GetLogger())
}

func TestTurnBudgetTermination(t *testing.T) {
	// Model always requests tool use; the loop must stop after exactly
	// N round-trips and fail on the empty captured text.
	caller := &fakeCaller{responses: []*anthropic.Message{toolUseResponse("tu_1")}}
	orch := newTestOrchestrator(caller, 4)

	_, err := orch.Run(context.Background(), AnalysisFlavor(), "Apple", models.DepthQuick)

	assert.Len(t, caller.calls, 4)
	var malformed *MalformedOutputError
	require.ErrorAs(t, err, &malformed)
}

func TestEarlyTerminationOnEndTurn(t *testing.T) {
	caller := &fakeCaller{responses: []*anthropic.Message{
		textResponse(anthropic.StopReasonEndTurn, `{"ticker":"AAPL"}`),
	}}
	orch := newTestOrchestrator(caller, 8)

	raw, err := orch.Run(context.Background(), AnalysisFlavor(), "Apple", models.DepthDeep)

	require.NoError(t, err)
	assert.Len(t, caller.calls, 1)
	assert.JSONEq(t, `{"ticker":"AAPL"}`, string(raw))
}

func TestToolResultPairing(t *testing.T) {
	caller := &fakeCaller{responses: []*anthropic.Message{
		toolUseResponse("tu_a", "tu_b"),
		textResponse(anthropic.StopReasonEndTurn, `{"ok":true}`),
	}}
	orch := newTestOrchestrator(caller, 5)

	_, err := orch.Run(context.Background(), AnalysisFlavor(), "Apple", models.DepthDeep)
	require.NoError(t, err)
	require.Len(t, caller.calls, 2)

	// Second request: seed user message, the echoed assistant turn,
	// then one user message carrying the tool results.
	second := caller.calls[1].Messages
	require.Len(t, second, 3)

	var resultIDs []string
	for _, block := range second[2].Content {
		require.NotNil(t, block.OfToolResult, "every block in the reply must be a tool_result")
		resultIDs = append(resultIDs, block.OfToolResult.ToolUseID)
	}
	assert.Equal(t, []string{"tu_a", "tu_b"}, resultIDs)
}

func TestCredentialPrecondition(t *testing.T) {
	caller := &fakeCaller{}
	orch := NewOrchestrator(caller, Options{Credential: ""}, common.GetLogger())

	_, err := orch.Run(context.Background(), AnalysisFlavor(), "Apple", models.DepthDeep)

	var precondition *PreconditionError
	require.ErrorAs(t, err, &precondition)
	assert.Equal(t, "credential", precondition.Field)
	assert.Empty(t, caller.calls, "no network call may happen without a credential")
}

func TestSubjectPrecondition(t *testing.T) {
	caller := &fakeCaller{}
	orch := newTestOrchestrator(caller, 5)

	_, err := orch.Run(context.Background(), AnalysisFlavor(), "   ", models.DepthDeep)

	var precondition *PreconditionError
	require.ErrorAs(t, err, &precondition)
	assert.Equal(t, "subject", precondition.Field)
	assert.Empty(t, caller.calls)
}

func TestUpstreamErrorNotRetried(t *testing.T) {
	caller := &fakeCaller{errs: []error{errors.New("overloaded")}}
	orch := newTestOrchestrator(caller, 5)

	_, err := orch.Run(context.Background(), AnalysisFlavor(), "Apple", models.DepthDeep)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Contains(t, upstream.Error(), "overloaded")
	assert.Len(t, caller.calls, 1, "default policy is fail-fast, no retry")
}

func TestRetryPolicyHonored(t *testing.T) {
	caller := &fakeCaller{
		errs: []error{errors.New("transient"), nil},
		responses: []*anthropic.Message{
			nil,
			textResponse(anthropic.StopReasonEndTurn, `{"ok":1}`),
		},
	}
	orch := NewOrchestrator(caller, Options{
		Credential:   "test-key",
		TurnBudget:   3,
		MaxRetries:   1,
		RetryBackoff: 1, // effectively immediate
	}, common.GetLogger())

	raw, err := orch.Run(context.Background(), AnalysisFlavor(), "Apple", models.DepthDeep)

	require.NoError(t, err)
	assert.Len(t, caller.calls, 2)
	assert.JSONEq(t, `{"ok":1}`, string(raw))
}

func TestUnrecognizedStopReason(t *testing.T) {
	caller := &fakeCaller{responses: []*anthropic.Message{
		textResponse(anthropic.StopReason("compaction"), "whatever"),
	}}
	orch := newTestOrchestrator(caller, 5)

	_, err := orch.Run(context.Background(), AnalysisFlavor(), "Apple", models.DepthDeep)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Contains(t, upstream.Error(), "compaction")
}

func TestPauseTurnEchoesServerToolBlocks(t *testing.T) {
	// A web search in flight surfaces as server_tool_use plus
	// web_search_tool_result blocks; the continuation request must carry
	// them back verbatim or the endpoint rejects the transcript.
	paused := &anthropic.Message{
		StopReason: anthropic.StopReasonPauseTurn,
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: "Searching for filings..."},
			{
				Type:  "server_tool_use",
				ID:    "srvtoolu_1",
				Name:  "web_search",
				Input: json.RawMessage(`{"query":"AAPL 10-K"}`),
			},
			{
				Type:      "web_search_tool_result",
				ToolUseID: "srvtoolu_1",
				Content: anthropic.WebSearchToolResultBlockContentUnion{
					OfWebSearchResultBlockArray: []anthropic.WebSearchResultBlock{
						{
							Title:            "Apple 10-K 2025",
							URL:              "https://www.sec.gov/aapl-10k",
							EncryptedContent: "enc-abc",
							PageAge:          "2 days",
						},
					},
				},
			},
		},
	}
	caller := &fakeCaller{responses: []*anthropic.Message{
		paused,
		textResponse(anthropic.StopReasonEndTurn, `{"done":true}`),
	}}
	orch := newTestOrchestrator(caller, 5)

	_, err := orch.Run(context.Background(), AnalysisFlavor(), "Apple", models.DepthDeep)
	require.NoError(t, err)
	require.Len(t, caller.calls, 2)

	echoed := caller.calls[1].Messages[1].Content
	require.Len(t, echoed, 3)

	var sawServerToolUse, sawSearchResult bool
	for _, block := range echoed {
		if block.OfServerToolUse != nil {
			sawServerToolUse = true
			assert.Equal(t, "srvtoolu_1", block.OfServerToolUse.ID)
		}
		if block.OfWebSearchToolResult != nil {
			sawSearchResult = true
			assert.Equal(t, "srvtoolu_1", block.OfWebSearchToolResult.ToolUseID)
			items := block.OfWebSearchToolResult.Content.OfWebSearchToolResultBlockItem
			require.Len(t, items, 1)
			assert.Equal(t, "enc-abc", items[0].EncryptedContent)
			assert.Equal(t, "Apple 10-K 2025", items[0].Title)
		}
	}
	assert.True(t, sawServerToolUse, "server_tool_use block must survive the echo")
	assert.True(t, sawSearchResult, "web_search_tool_result block must survive the echo")
}

func TestPauseTurnEchoesSearchError(t *testing.T) {
	paused := &anthropic.Message{
		StopReason: anthropic.StopReasonPauseTurn,
		Content: []anthropic.ContentBlockUnion{
			{
				Type:      "web_search_tool_result",
				ToolUseID: "srvtoolu_2",
				Content: anthropic.WebSearchToolResultBlockContentUnion{
					Type:      "web_search_tool_result_error",
					ErrorCode: "max_uses_exceeded",
				},
			},
		},
	}
	caller := &fakeCaller{responses: []*anthropic.Message{
		paused,
		textResponse(anthropic.StopReasonEndTurn, `{"done":true}`),
	}}
	orch := newTestOrchestrator(caller, 5)

	_, err := orch.Run(context.Background(), AnalysisFlavor(), "Apple", models.DepthDeep)
	require.NoError(t, err)

	echoed := caller.calls[1].Messages[1].Content
	require.Len(t, echoed, 1)
	require.NotNil(t, echoed[0].OfWebSearchToolResult)
	errParam := echoed[0].OfWebSearchToolResult.Content.OfRequestWebSearchToolResultError
	require.NotNil(t, errParam)
	assert.Equal(t, anthropic.WebSearchToolRequestErrorErrorCode("max_uses_exceeded"), errParam.ErrorCode)
}

func TestPauseTurnContinues(t *testing.T) {
	caller := &fakeCaller{responses: []*anthropic.Message{
		textResponse(anthropic.StopReasonPauseTurn, "searching..."),
		textResponse(anthropic.StopReasonEndTurn, `{"done":true}`),
	}}
	orch := newTestOrchestrator(caller, 5)

	raw, err := orch.Run(context.Background(), AnalysisFlavor(), "Apple", models.DepthDeep)

	require.NoError(t, err)
	assert.Len(t, caller.calls, 2)
	assert.JSONEq(t, `{"done":true}`, string(raw))
}

func TestMaxTokensStopIsTerminal(t *testing.T) {
	caller := &fakeCaller{responses: []*anthropic.Message{
		textResponse(anthropic.StopReasonMaxTokens, `{"partial":true}`),
	}}
	orch := newTestOrchestrator(caller, 5)

	raw, err := orch.Run(context.Background(), AnalysisFlavor(), "Apple", models.DepthDeep)

	require.NoError(t, err)
	assert.Len(t, caller.calls, 1)
	assert.JSONEq(t, `{"partial":true}`, string(raw))
}

func TestToolResultTruncation(t *testing.T) {
	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'x'
	}

	runner := &staticRunner{payload: string(long)}
	caller := &fakeCaller{responses: []*anthropic.Message{
		toolUseResponse("tu_1"),
		textResponse(anthropic.StopReasonEndTurn, `{"ok":true}`),
	}}
	orch := NewOrchestrator(caller, Options{
		Credential:         "test-key",
		TurnBudget:         5,
		MaxToolResultChars: 1500,
		Runner:             runner,
	}, common.GetLogger())

	_, err := orch.Run(context.Background(), AnalysisFlavor(), "Apple", models.DepthDeep)
	require.NoError(t, err)

	reply := caller.calls[1].Messages[2].Content
	require.Len(t, reply, 1)
	require.NotNil(t, reply[0].OfToolResult)
	require.Len(t, reply[0].OfToolResult.Content, 1)
	text := reply[0].OfToolResult.Content[0].OfText
	require.NotNil(t, text)
	assert.Len(t, text.Text, 1500)
}

func TestToolResultTruncationKeepsRuneBoundary(t *testing.T) {
	// Korean consensus payloads are multi-byte throughout; the cap must
	// never split a rune and leave mojibake at the tail.
	runner := &staticRunner{payload: strings.Repeat("목표주가", 200)}
	caller := &fakeCaller{responses: []*anthropic.Message{
		toolUseResponse("tu_1"),
		textResponse(anthropic.StopReasonEndTurn, `{"ok":true}`),
	}}
	orch := NewOrchestrator(caller, Options{
		Credential:         "test-key",
		TurnBudget:         5,
		MaxToolResultChars: 1000,
		Runner:             runner,
	}, common.GetLogger())

	_, err := orch.Run(context.Background(), AnalysisFlavor(), "삼성전자", models.DepthDeep)
	require.NoError(t, err)

	reply := caller.calls[1].Messages[2].Content
	require.NotNil(t, reply[0].OfToolResult)
	text := reply[0].OfToolResult.Content[0].OfText
	require.NotNil(t, text)
	assert.True(t, utf8.ValidString(text.Text), "truncation must not split a rune")
	assert.LessOrEqual(t, len(text.Text), 1000)
	assert.Equal(t, 999, len(text.Text), "cut backs off to the previous rune boundary")
}

func TestMalformedDiagnosticKeepsRuneBoundary(t *testing.T) {
	raw := strings.Repeat("매수", 200) // 1200 bytes, 500 is mid-rune
	err := NewMalformedOutputError("no JSON object found", raw)

	assert.True(t, utf8.ValidString(err.RawText))
	assert.Equal(t, 498, len(err.RawText))
}

// staticRunner answers every tool call with a fixed payload.
type staticRunner struct {
	payload string
}

func (r *staticRunner) Declarations() []anthropic.ToolUnionParam { return nil }

func (r *staticRunner) Run(_ context.Context, _ string, _ json.RawMessage) (string, error) {
	return r.payload, nil
}
