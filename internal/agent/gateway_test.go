package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/steve/internal/domain"
	"github.com/soyeahso/steve/internal/llm"
	"github.com/soyeahso/steve/internal/logging"
	"github.com/soyeahso/steve/internal/prompts"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func testGateway(t *testing.T, primary, fallback *llm.MockClient) *ModelGateway {
	t.Helper()
	reg := llm.NewRegistry(silentLog())
	reg.Register("primary", primary)
	if fallback != nil {
		reg.Register("fallback", fallback)
	}
	ps, err := prompts.Default()
	require.NoError(t, err)
	return NewModelGateway(reg, ps, GatewayConfig{
		Reasoning: "primary:reasoner",
		Fallbacks: []string{"fallback:backup"},
		Retries:   3,
		Backoff:   time.Millisecond,
	}, silentLog())
}

func reply(content string) func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Content: content}, nil
	}
}

func failing(code int) func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return nil, &llm.ProviderError{Provider: "mock", Code: code, Message: "failed"}
	}
}

func TestReasonRendersPrompts(t *testing.T) {
	primary := &llm.MockClient{ProviderName: "primary", CompleteFunc: reply("Hi, I'm Steve.")}
	gw := testGateway(t, primary, nil).WithTools([]llm.ToolDefinition{{Name: "github-profile"}})

	resp, err := gw.Reason(context.Background(), Prompt{
		Query:   "Who is Jomar?",
		Context: "resume text",
		Memory:  "[Visitor]: hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi, I'm Steve.", resp.Content)
	assert.Equal(t, "primary:reasoner", resp.Model)

	calls := primary.Calls()
	require.Len(t, calls, 1)
	req := calls[0]
	assert.Equal(t, "reasoner", req.Model)
	assert.Contains(t, req.System, "You are Steve")
	assert.Contains(t, req.System, "[Visitor]: hello")
	require.Len(t, req.Messages, 1)
	assert.Equal(t, llm.RoleUser, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "Who is Jomar?")
	assert.Contains(t, req.Messages[0].Content, "resume text")
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "github-profile", req.Tools[0].Name)
}

func TestWithToolsCopies(t *testing.T) {
	gw := testGateway(t, &llm.MockClient{ProviderName: "primary"}, nil)
	withTools := gw.WithTools([]llm.ToolDefinition{{Name: "x"}})
	assert.Empty(t, gw.tools)
	assert.Len(t, withTools.tools, 1)
}

func TestReasonToolCalls(t *testing.T) {
	primary := &llm.MockClient{
		ProviderName: "primary",
		CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{ToolCalls: []llm.ToolCall{
				{ID: "call-1", Name: "weather-data", Arguments: `{"city":"Cainta","region":"Rizal"}`},
				{Name: "github-profile"},
			}}, nil
		},
	}
	resp, err := testGateway(t, primary, nil).Reason(context.Background(), Prompt{Query: "q"})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 2)

	assert.Equal(t, domain.ToolCall{
		ID:   "call-1",
		Name: "weather-data",
		Args: map[string]any{"city": "Cainta", "region": "Rizal"},
	}, resp.ToolCalls[0])
	assert.Equal(t, "github-profile", resp.ToolCalls[1].Name)
	assert.NotEmpty(t, resp.ToolCalls[1].ID)
	assert.Equal(t, map[string]any{}, resp.ToolCalls[1].Args)
}

func TestReasonRejectsMalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		resp *llm.CompletionResponse
	}{
		{"empty", &llm.CompletionResponse{Content: "  "}},
		{"bad arguments", &llm.CompletionResponse{ToolCalls: []llm.ToolCall{{Name: "x", Arguments: "{not json"}}}},
		{"array arguments", &llm.CompletionResponse{ToolCalls: []llm.ToolCall{{Name: "x", Arguments: "[1]"}}}},
		{"nameless call", &llm.CompletionResponse{ToolCalls: []llm.ToolCall{{ID: "1"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := &llm.MockClient{
				ProviderName: "primary",
				CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
					return tt.resp, nil
				},
			}
			_, err := testGateway(t, primary, nil).Reason(context.Background(), Prompt{Query: "q"})
			var ce *ContractError
			assert.ErrorAs(t, err, &ce)
		})
	}
}

func TestRetryThenSucceed(t *testing.T) {
	n := 0
	primary := &llm.MockClient{
		ProviderName: "primary",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			n++
			if n < 3 {
				return nil, &llm.ProviderError{Provider: "mock", Code: 503, Message: "unavailable"}
			}
			return &llm.CompletionResponse{Content: "third time"}, nil
		},
	}
	fallback := &llm.MockClient{ProviderName: "fallback"}

	resp, err := testGateway(t, primary, fallback).Reason(context.Background(), Prompt{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, "third time", resp.Content)
	assert.Len(t, primary.Calls(), 3)
	assert.Empty(t, fallback.Calls())
}

func TestFailoverAfterRetries(t *testing.T) {
	primary := &llm.MockClient{ProviderName: "primary", CompleteFunc: failing(429)}
	fallback := &llm.MockClient{ProviderName: "fallback", CompleteFunc: reply("from fallback")}

	resp, err := testGateway(t, primary, fallback).Reason(context.Background(), Prompt{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, "from fallback", resp.Content)
	assert.Equal(t, "fallback:backup", resp.Model)
	assert.Len(t, primary.Calls(), 3)
	require.Len(t, fallback.Calls(), 1)
	assert.Equal(t, "backup", fallback.Calls()[0].Model)
}

func TestAuthErrorSkipsToFallback(t *testing.T) {
	primary := &llm.MockClient{ProviderName: "primary", CompleteFunc: failing(401)}
	fallback := &llm.MockClient{ProviderName: "fallback", CompleteFunc: reply("ok")}

	_, err := testGateway(t, primary, fallback).Reason(context.Background(), Prompt{Query: "q"})
	require.NoError(t, err)
	assert.Len(t, primary.Calls(), 1)
}

func TestPermanentErrorStops(t *testing.T) {
	primary := &llm.MockClient{
		ProviderName: "primary",
		CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, &llm.ProviderError{Provider: "mock", Code: 400, Message: "bad request"}
		},
	}
	fallback := &llm.MockClient{ProviderName: "fallback"}

	_, err := testGateway(t, primary, fallback).Reason(context.Background(), Prompt{Query: "q"})
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Len(t, primary.Calls(), 1)
	assert.Empty(t, fallback.Calls())
}

func TestAllModelsFail(t *testing.T) {
	primary := &llm.MockClient{ProviderName: "primary", CompleteFunc: failing(500)}
	fallback := &llm.MockClient{ProviderName: "fallback", CompleteFunc: failing(529)}

	_, err := testGateway(t, primary, fallback).Reason(context.Background(), Prompt{Query: "q"})
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	var pe *llm.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 529, pe.Code)
	assert.Len(t, primary.Calls(), 3)
	assert.Len(t, fallback.Calls(), 3)
}

func TestUnresolvableModelIsSkipped(t *testing.T) {
	fallback := &llm.MockClient{ProviderName: "fallback", CompleteFunc: reply("ok")}
	reg := llm.NewRegistry(silentLog())
	reg.Register("fallback", fallback)
	ps, err := prompts.Default()
	require.NoError(t, err)
	gw := NewModelGateway(reg, ps, GatewayConfig{
		Reasoning: "missing:model",
		Fallbacks: []string{"fallback:backup"},
		Backoff:   time.Millisecond,
	}, silentLog())

	resp, err := gw.Reason(context.Background(), Prompt{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
}

func TestCancelDuringBackoff(t *testing.T) {
	primary := &llm.MockClient{ProviderName: "primary", CompleteFunc: failing(503)}
	gw := testGateway(t, primary, nil)
	gw.cfg.Backoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := gw.Reason(ctx, Prompt{Query: "q"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, primary.Calls(), 1)
}

func TestStreamTokens(t *testing.T) {
	primary := &llm.MockClient{
		ProviderName: "primary",
		StreamFunc: func(context.Context, llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
			return llm.StreamOf(&llm.CompletionResponse{Content: "Hello there"}, "Hello ", "there"), nil
		},
	}
	var toks []string
	resp, err := testGateway(t, primary, nil).StreamTokens(context.Background(), Prompt{Query: "q"}, func(s string) {
		toks = append(toks, s)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello ", "there"}, toks)
	assert.Equal(t, "Hello there", resp.Content)
}

func errorStream(err error, deltas ...string) <-chan llm.StreamEvent {
	ch := make(chan llm.StreamEvent, len(deltas)+1)
	for _, d := range deltas {
		ch <- llm.StreamEvent{Type: llm.EventDelta, Content: d}
	}
	ch <- llm.StreamEvent{Type: llm.EventError, Err: err}
	close(ch)
	return ch
}

func TestStreamFailsOverBeforeFirstToken(t *testing.T) {
	overloaded := &llm.ProviderError{Provider: "mock", Code: 529, Message: "overloaded"}
	primary := &llm.MockClient{
		ProviderName: "primary",
		StreamFunc: func(context.Context, llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
			return errorStream(overloaded), nil
		},
	}
	fallback := &llm.MockClient{
		ProviderName: "fallback",
		StreamFunc: func(context.Context, llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
			return llm.StreamOf(&llm.CompletionResponse{Content: "ok"}, "ok"), nil
		},
	}

	var toks []string
	resp, err := testGateway(t, primary, fallback).StreamTokens(context.Background(), Prompt{Query: "q"}, func(s string) {
		toks = append(toks, s)
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, []string{"ok"}, toks)
	assert.Len(t, primary.Calls(), 3)
}

func TestStreamDoesNotRestartAfterFirstToken(t *testing.T) {
	primary := &llm.MockClient{
		ProviderName: "primary",
		StreamFunc: func(context.Context, llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
			return errorStream(&llm.ProviderError{Provider: "mock", Code: 503, Message: "reset"}, "Hel"), nil
		},
	}
	fallback := &llm.MockClient{ProviderName: "fallback"}

	var toks []string
	_, err := testGateway(t, primary, fallback).StreamTokens(context.Background(), Prompt{Query: "q"}, func(s string) {
		toks = append(toks, s)
	})
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, []string{"Hel"}, toks)
	assert.Len(t, primary.Calls(), 1)
	assert.Empty(t, fallback.Calls())
}

func TestSummarizePromptSelection(t *testing.T) {
	primary := &llm.MockClient{ProviderName: "primary", CompleteFunc: reply("  digest  ")}
	gw := testGateway(t, primary, nil)
	msgs := []domain.Message{
		{Role: domain.RoleVisitor, Content: "Where does Jomar live?"},
		{Role: domain.RoleAgent, Content: "Laguna."},
		{Role: domain.RoleTool, Content: "ignored"},
	}

	digest, err := gw.Summarize(context.Background(), "", msgs)
	require.NoError(t, err)
	assert.Equal(t, "digest", digest)

	_, err = gw.Summarize(context.Background(), "earlier summary", msgs)
	require.NoError(t, err)

	calls := primary.Calls()
	require.Len(t, calls, 2)

	first := calls[0].Messages[0].Content
	assert.Contains(t, first, "Summarize the conversation above")
	assert.Contains(t, first, "[Visitor]: Where does Jomar live?\n[Steve]: Laguna.")
	assert.NotContains(t, first, "ignored")
	require.NotNil(t, calls[0].Temperature)
	assert.Zero(t, *calls[0].Temperature)

	second := calls[1].Messages[0].Content
	assert.Contains(t, second, "earlier summary")
	assert.Contains(t, second, "Extend the current summary")
}

func TestSummarizeEmptyDigest(t *testing.T) {
	primary := &llm.MockClient{ProviderName: "primary", CompleteFunc: reply("")}
	_, err := testGateway(t, primary, nil).Summarize(context.Background(), "", nil)
	var ce *ContractError
	assert.ErrorAs(t, err, &ce)
}

func TestRepoAnswerer(t *testing.T) {
	primary := &llm.MockClient{ProviderName: "primary", CompleteFunc: reply("JobJigSaw ranks candidates.")}
	answer, err := testGateway(t, primary, nil).RepoAnswerer()(context.Background(), "What is JobJigSaw?")
	require.NoError(t, err)
	assert.Equal(t, "JobJigSaw ranks candidates.", answer)

	calls := primary.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Messages[0].Content, "Question: What is JobJigSaw?")
	assert.Empty(t, calls[0].Tools)
}

func TestChainDeduplicates(t *testing.T) {
	gw := &ModelGateway{cfg: GatewayConfig{Fallbacks: []string{"a:x", "", "b:y", "a:x"}}}
	assert.Equal(t, []string{"a:x", "b:y"}, gw.chain("a:x"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want failure
	}{
		{&llm.ProviderError{Code: 401}, failAuth},
		{&llm.ProviderError{Code: 403}, failAuth},
		{&llm.ProviderError{Code: 429}, failTransient},
		{&llm.ProviderError{Code: 500}, failTransient},
		{&llm.ProviderError{Code: 529}, failTransient},
		{&llm.ProviderError{Code: 400}, failPermanent},
		{errors.New("model is overloaded"), failTransient},
		{errors.New("Rate limit reached"), failTransient},
		{errors.New("request timeout"), failTransient},
		{errors.New("invalid request"), failPermanent},
		{context.Canceled, failCanceled},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(tt.err), tt.err.Error())
	}
}
