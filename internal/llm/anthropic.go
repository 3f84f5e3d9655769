package llm

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/soyeahso/steve/internal/logging"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	name   string
	client anthropic.Client
	log    *logging.Logger
}

// NewAnthropicClient creates an Anthropic provider. baseURL may be empty.
func NewAnthropicClient(name, apiKey, baseURL string, log *logging.Logger) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicClient{
		name:   name,
		client: anthropic.NewClient(opts...),
		log:    log.Sub("llm.anthropic"),
	}
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string { return c.name }

// Complete sends a non-streaming request.
func (c *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	msg, err := c.client.Messages.New(ctx, c.buildParams(req))
	if err != nil {
		return nil, wrapError(c.name, err)
	}
	resp := fromAnthropicMessage(msg)
	resp.Duration = time.Since(start)
	return resp, nil
}

// Stream sends a streaming request.
func (c *AnthropicClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	stream := c.client.Messages.NewStreaming(ctx, c.buildParams(req))

	ch := make(chan StreamEvent)
	go func() {
		defer close(ch)
		defer stream.Close()

		start := time.Now()
		message := anthropic.Message{}
		for stream.Next() {
			event := stream.Current()
			if err := message.Accumulate(event); err != nil {
				emit(ctx, ch, StreamEvent{Type: EventError, Err: wrapError(c.name, err)})
				return
			}
			if ev, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
				if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
					if !emit(ctx, ch, StreamEvent{Type: EventDelta, Content: delta.Text}) {
						return
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			emit(ctx, ch, StreamEvent{Type: EventError, Err: wrapError(c.name, err)})
			return
		}

		resp := fromAnthropicMessage(&message)
		resp.Duration = time.Since(start)
		emit(ctx, ch, StreamEvent{Type: EventDone, Response: resp})
	}()
	return ch, nil
}

func (c *AnthropicClient) buildParams(req CompletionRequest) anthropic.MessageNewParams {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	var system []anthropic.TextBlockParam
	if req.System != "" {
		system = append(system, anthropic.TextBlockParam{Text: req.System})
	}
	var messages []anthropic.MessageParam
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if len(system) > 0 {
		params.System = system
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if len(req.Tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, len(req.Tools))
		for i, d := range req.Tools {
			schema := d.JSONSchema()
			input := anthropic.ToolInputSchemaParam{
				Properties: schema["properties"],
				Required:   schema["required"].([]string),
			}
			tools[i] = anthropic.ToolUnionParamOfTool(input, d.Name)
			if tools[i].OfTool != nil {
				tools[i].OfTool.Description = anthropic.String(d.Description)
			}
		}
		params.Tools = tools
	}
	return params
}

func fromAnthropicMessage(msg *anthropic.Message) *CompletionResponse {
	var text strings.Builder
	resp := &CompletionResponse{
		StopReason: string(msg.StopReason),
		Model:      string(msg.Model),
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			tu := block.AsToolUse()
			args := "{}"
			if len(tu.Input) > 0 {
				args = string(tu.Input)
			}
			if !json.Valid([]byte(args)) {
				args = "{}"
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{ID: tu.ID, Name: tu.Name, Arguments: args})
		}
	}
	resp.Content = text.String()
	return resp
}
