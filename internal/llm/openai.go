package llm

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/soyeahso/steve/internal/logging"
)

// OpenAIClient speaks the Chat Completions API. It serves OpenAI itself and
// compatible endpoints such as Mistral and OpenRouter.
type OpenAIClient struct {
	name   string
	client openai.Client
	log    *logging.Logger
}

// NewOpenAIClient creates a Chat Completions provider. baseURL may be empty
// for api.openai.com. SDK retries are disabled; retry policy lives with the caller.
func NewOpenAIClient(name, apiKey, baseURL string, log *logging.Logger) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIClient{
		name:   name,
		client: openai.NewClient(opts...),
		log:    log.Sub("llm." + name),
	}
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string { return c.name }

// Complete sends a non-streaming request.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, c.buildParams(req))
	if err != nil {
		return nil, wrapError(c.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: c.name, Message: "no choices returned"}
	}

	ch0 := resp.Choices[0]
	out := &CompletionResponse{
		Content:    ch0.Message.Content,
		StopReason: ch0.FinishReason,
		Model:      resp.Model,
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
		Duration: time.Since(start),
	}
	for _, tc := range ch0.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

// aggCall accumulates tool call deltas by index.
type aggCall struct{ id, name, args string }

// Stream sends a streaming request.
func (c *OpenAIClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.buildParams(req))

	ch := make(chan StreamEvent)
	go func() {
		defer close(ch)
		defer stream.Close()

		start := time.Now()
		var text strings.Builder
		var finish, model string
		var usage Usage
		calls := map[int64]*aggCall{}

		for stream.Next() {
			chunk := stream.Current()
			if chunk.Model != "" {
				model = chunk.Model
			}
			if chunk.Usage.TotalTokens > 0 {
				usage = Usage{
					InputTokens:  int(chunk.Usage.PromptTokens),
					OutputTokens: int(chunk.Usage.CompletionTokens),
				}
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					text.WriteString(choice.Delta.Content)
					if !emit(ctx, ch, StreamEvent{Type: EventDelta, Content: choice.Delta.Content}) {
						return
					}
				}
				for _, tc := range choice.Delta.ToolCalls {
					ac, ok := calls[tc.Index]
					if !ok {
						ac = &aggCall{}
						calls[tc.Index] = ac
					}
					if tc.ID != "" {
						ac.id = tc.ID
					}
					if tc.Function.Name != "" {
						ac.name = tc.Function.Name
					}
					ac.args += tc.Function.Arguments
				}
				if choice.FinishReason != "" {
					finish = choice.FinishReason
				}
			}
		}
		if err := stream.Err(); err != nil {
			emit(ctx, ch, StreamEvent{Type: EventError, Err: wrapError(c.name, err)})
			return
		}

		resp := &CompletionResponse{
			Content:    text.String(),
			StopReason: finish,
			Model:      model,
			Usage:      usage,
			Duration:   time.Since(start),
		}
		indexes := make([]int64, 0, len(calls))
		for i := range calls {
			indexes = append(indexes, i)
		}
		sort.Slice(indexes, func(a, b int) bool { return indexes[a] < indexes[b] })
		for _, i := range indexes {
			ac := calls[i]
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{ID: ac.id, Name: ac.name, Arguments: ac.args})
		}
		emit(ctx, ch, StreamEvent{Type: EventDone, Response: resp})
	}()
	return ch, nil
}

func (c *OpenAIClient) buildParams(req CompletionRequest) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    req.Model,
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
		for i, d := range req.Tools {
			tools[i] = openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        d.Name,
					Description: openai.String(d.Description),
					Parameters:  openai.FunctionParameters(d.JSONSchema()),
				},
			}
		}
		params.Tools = tools
	}
	return params
}
