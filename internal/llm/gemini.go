package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/soyeahso/steve/internal/logging"
)

// GeminiClient talks to the Gemini API through an eino chat model.
// The genai client is shared; a chat model is built per request so that
// tool binding never leaks between concurrent calls.
type GeminiClient struct {
	name   string
	client *genai.Client
	log    *logging.Logger
}

// NewGeminiClient creates a Gemini provider. baseURL may be empty.
func NewGeminiClient(ctx context.Context, name, apiKey, baseURL string, log *logging.Logger) (*GeminiClient, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions.BaseURL = baseURL
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiClient{name: name, client: client, log: log.Sub("llm.gemini")}, nil
}

// Name returns the provider name.
func (c *GeminiClient) Name() string { return c.name }

// Complete sends a non-streaming request.
func (c *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	cm, err := c.chatModel(ctx, req)
	if err != nil {
		return nil, err
	}

	out, err := cm.Generate(ctx, einoMessages(req))
	if err != nil {
		return nil, wrapError(c.name, err)
	}
	resp := fromEinoMessage(out, req.Model)
	resp.Duration = time.Since(start)
	return resp, nil
}

// Stream sends a streaming request.
func (c *GeminiClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	cm, err := c.chatModel(ctx, req)
	if err != nil {
		return nil, err
	}
	sr, err := cm.Stream(ctx, einoMessages(req))
	if err != nil {
		return nil, wrapError(c.name, err)
	}

	ch := make(chan StreamEvent)
	go func() {
		defer close(ch)
		defer sr.Close()

		start := time.Now()
		var chunks []*schema.Message
		for {
			msg, err := sr.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				emit(ctx, ch, StreamEvent{Type: EventError, Err: wrapError(c.name, err)})
				return
			}
			chunks = append(chunks, msg)
			if msg.Content != "" && !emit(ctx, ch, StreamEvent{Type: EventDelta, Content: msg.Content}) {
				return
			}
		}

		final := &schema.Message{Role: schema.Assistant}
		if len(chunks) > 0 {
			merged, err := schema.ConcatMessages(chunks)
			if err != nil {
				emit(ctx, ch, StreamEvent{Type: EventError, Err: wrapError(c.name, err)})
				return
			}
			final = merged
		}
		resp := fromEinoMessage(final, req.Model)
		resp.Duration = time.Since(start)
		emit(ctx, ch, StreamEvent{Type: EventDone, Response: resp})
	}()
	return ch, nil
}

func (c *GeminiClient) chatModel(ctx context.Context, req CompletionRequest) (*gemini.ChatModel, error) {
	cfg := &gemini.Config{
		Client: c.client,
		Model:  req.Model,
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		cfg.Temperature = &t
	}
	if req.MaxTokens > 0 {
		n := req.MaxTokens
		cfg.MaxTokens = &n
	}

	cm, err := gemini.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating gemini chat model: %w", err)
	}
	if len(req.Tools) > 0 {
		if err := cm.BindTools(einoTools(req.Tools)); err != nil {
			return nil, fmt.Errorf("binding tools: %w", err)
		}
	}
	return cm, nil
}

func einoMessages(req CompletionRequest) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, schema.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			msgs = append(msgs, schema.SystemMessage(m.Content))
		case RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(m.Content, nil))
		default:
			msgs = append(msgs, schema.UserMessage(m.Content))
		}
	}
	return msgs
}

func einoTools(defs []ToolDefinition) []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, len(defs))
	for i, d := range defs {
		params := make(map[string]*schema.ParameterInfo, len(d.Params))
		for _, p := range d.Params {
			params[p.Name] = &schema.ParameterInfo{
				Type:     schema.DataType(p.Type),
				Desc:     p.Description,
				Required: p.Required,
			}
		}
		infos[i] = &schema.ToolInfo{
			Name:        d.Name,
			Desc:        d.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		}
	}
	return infos
}

func fromEinoMessage(m *schema.Message, model string) *CompletionResponse {
	resp := &CompletionResponse{Content: m.Content, Model: model}
	for _, tc := range m.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	if m.ResponseMeta != nil {
		resp.StopReason = m.ResponseMeta.FinishReason
		if u := m.ResponseMeta.Usage; u != nil {
			resp.Usage = Usage{InputTokens: u.PromptTokens, OutputTokens: u.CompletionTokens}
		}
	}
	return resp
}
