package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/steve/internal/config"
	"github.com/soyeahso/steve/internal/domain"
	"github.com/soyeahso/steve/internal/llm"
	"github.com/soyeahso/steve/internal/logging"
	"github.com/soyeahso/steve/internal/prompts"
	"github.com/soyeahso/steve/internal/tools"
)

const defaultBackoff = 500 * time.Millisecond

// Prompt is the input of a reasoning call.
type Prompt struct {
	Query   string
	Context string
	Memory  string
}

// Response is a normalized model reply: text, tool calls, or both.
type Response struct {
	Content   string
	ToolCalls []domain.ToolCall
	Model     string
	Usage     llm.Usage
}

// Model is what the graph needs from the model backend.
type Model interface {
	Reason(ctx context.Context, p Prompt) (*Response, error)
	StreamTokens(ctx context.Context, p Prompt, onToken func(string)) (*Response, error)
	Summarize(ctx context.Context, prior string, msgs []domain.Message) (string, error)
}

// GatewayConfig selects models and retry behavior.
type GatewayConfig struct {
	Reasoning   string
	Summarizer  string
	RepoModel   string
	Fallbacks   []string
	MaxTokens   int
	Temperature *float64
	Retries     int
	Backoff     time.Duration
}

// GatewayConfigFrom builds a GatewayConfig from the loaded configuration.
func GatewayConfigFrom(cfg *config.Config) GatewayConfig {
	return GatewayConfig{
		Reasoning:   cfg.Models.Reasoning,
		Summarizer:  cfg.Models.Summarizer,
		RepoModel:   cfg.Tools.GitHubRepo.Model,
		Fallbacks:   cfg.Models.Fallbacks,
		MaxTokens:   cfg.Models.MaxTokens,
		Temperature: cfg.Models.Temperature,
		Retries:     cfg.Models.Retries,
	}
}

// ModelGateway talks to the configured models through the provider
// registry. Each call retries transient failures on one model, then fails
// over to the next model in the chain.
type ModelGateway struct {
	registry *llm.Registry
	prompts  *prompts.Set
	cfg      GatewayConfig
	tools    []llm.ToolDefinition
	log      *logging.Logger
}

// NewModelGateway creates a gateway with no tools bound.
func NewModelGateway(registry *llm.Registry, ps *prompts.Set, cfg GatewayConfig, log *logging.Logger) *ModelGateway {
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.Summarizer == "" {
		cfg.Summarizer = cfg.Reasoning
	}
	if cfg.RepoModel == "" {
		cfg.RepoModel = cfg.Reasoning
	}
	return &ModelGateway{
		registry: registry,
		prompts:  ps,
		cfg:      cfg,
		log:      log.Sub("gateway.model"),
	}
}

// WithTools returns a copy of g that offers defs to the reasoning model.
func (g *ModelGateway) WithTools(defs []llm.ToolDefinition) *ModelGateway {
	cp := *g
	cp.tools = defs
	return &cp
}

// Reason asks the reasoning model for the next action.
func (g *ModelGateway) Reason(ctx context.Context, p Prompt) (*Response, error) {
	req, err := g.reasonRequest(ctx, p)
	if err != nil {
		return nil, err
	}
	resp, err := g.complete(ctx, "reason", g.chain(g.cfg.Reasoning), req)
	if err != nil {
		return nil, err
	}
	return normalize("reason", resp)
}

// StreamTokens is Reason with incremental text delivered to onToken. A
// stream that fails after its first token is not retried.
func (g *ModelGateway) StreamTokens(ctx context.Context, p Prompt, onToken func(string)) (*Response, error) {
	req, err := g.reasonRequest(ctx, p)
	if err != nil {
		return nil, err
	}
	resp, err := g.stream(ctx, g.chain(g.cfg.Reasoning), req, onToken)
	if err != nil {
		return nil, err
	}
	return normalize("stream", resp)
}

// Summarize folds msgs into prior, or writes a first summary when prior is
// empty.
func (g *ModelGateway) Summarize(ctx context.Context, prior string, msgs []domain.Message) (string, error) {
	key := prompts.MemoryNew
	if prior != "" {
		key = prompts.MemoryUpdate
	}
	text, err := g.prompts.Render(ctx, key, map[string]any{
		"summary":  prior,
		"messages": strings.Join(transcript(msgs), "\n"),
	})
	if err != nil {
		return "", err
	}

	resp, err := g.complete(ctx, "summarize", g.chain(g.cfg.Summarizer), g.plainRequest(text))
	if err != nil {
		return "", err
	}
	digest := strings.TrimSpace(resp.Content)
	if digest == "" {
		return "", &ContractError{Op: "summarize", Message: "model returned an empty summary"}
	}
	return digest, nil
}

// RepoAnswerer returns the sub-agent behind the github-repo tool.
func (g *ModelGateway) RepoAnswerer() tools.AnswerFunc {
	return func(ctx context.Context, query string) (string, error) {
		text, err := g.prompts.Render(ctx, prompts.GitHubRepo, map[string]any{"query": query})
		if err != nil {
			return "", err
		}
		resp, err := g.complete(ctx, "github-repo", g.chain(g.cfg.RepoModel), g.plainRequest(text))
		if err != nil {
			return "", err
		}
		return resp.Content, nil
	}
}

func (g *ModelGateway) reasonRequest(ctx context.Context, p Prompt) (llm.CompletionRequest, error) {
	system, human, err := g.prompts.RenderPair(ctx, prompts.Steve, prompts.SteveHuman, map[string]any{
		"query":   p.Query,
		"context": p.Context,
		"memory":  p.Memory,
	})
	if err != nil {
		return llm.CompletionRequest{}, err
	}
	return llm.CompletionRequest{
		System:      system,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: human}},
		Tools:       g.tools,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	}, nil
}

func (g *ModelGateway) plainRequest(text string) llm.CompletionRequest {
	zero := 0.0
	return llm.CompletionRequest{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: text}},
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: &zero,
	}
}

// chain returns primary followed by the fallbacks, without repeats.
func (g *ModelGateway) chain(primary string) []string {
	models := make([]string, 0, len(g.cfg.Fallbacks)+1)
	seen := make(map[string]bool)
	for _, m := range append([]string{primary}, g.cfg.Fallbacks...) {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		models = append(models, m)
	}
	return models
}

func (g *ModelGateway) complete(ctx context.Context, op string, models []string, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var lastErr error
	for _, ref := range models {
		client, model, err := g.registry.Resolve(ref)
		if err != nil {
			g.log.Debug().Str("model", ref).Err(err).Msg("no provider for model, skipping")
			lastErr = err
			continue
		}
		req.Model = model

		for attempt := 1; attempt <= g.cfg.Retries; attempt++ {
			resp, err := client.Complete(ctx, req)
			if err == nil {
				resp.Model = ref
				return resp, nil
			}
			lastErr = err

			kind := classify(err)
			if kind == failCanceled {
				return nil, err
			}
			if kind == failPermanent {
				return nil, &UpstreamError{Op: op, Err: err}
			}
			if kind == failAuth || attempt == g.cfg.Retries {
				g.log.Warn().Str("model", ref).Int("attempt", attempt).Err(err).Msg("trying next model")
				break
			}
			g.log.Debug().Str("model", ref).Int("attempt", attempt).Err(err).Msg("retrying")
			if err := g.sleep(ctx, attempt); err != nil {
				return nil, err
			}
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no models configured")
	}
	return nil, &UpstreamError{Op: op, Err: lastErr}
}

func (g *ModelGateway) stream(ctx context.Context, models []string, req llm.CompletionRequest, onToken func(string)) (*llm.CompletionResponse, error) {
	const op = "stream"
	var lastErr error
	for _, ref := range models {
		client, model, err := g.registry.Resolve(ref)
		if err != nil {
			lastErr = err
			continue
		}
		req.Model = model

		for attempt := 1; attempt <= g.cfg.Retries; attempt++ {
			started := false
			resp, err := func() (*llm.CompletionResponse, error) {
				ch, err := client.Stream(ctx, req)
				if err != nil {
					return nil, err
				}
				return llm.Collect(ctx, ch, func(tok string) {
					started = true
					if onToken != nil {
						onToken(tok)
					}
				})
			}()
			if err == nil {
				resp.Model = ref
				return resp, nil
			}
			lastErr = err

			kind := classify(err)
			if kind == failCanceled {
				return nil, err
			}
			if started || kind == failPermanent {
				return nil, &UpstreamError{Op: op, Err: err}
			}
			if kind == failAuth || attempt == g.cfg.Retries {
				g.log.Warn().Str("model", ref).Int("attempt", attempt).Err(err).Msg("trying next model")
				break
			}
			if err := g.sleep(ctx, attempt); err != nil {
				return nil, err
			}
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no models configured")
	}
	return nil, &UpstreamError{Op: op, Err: lastErr}
}

func (g *ModelGateway) sleep(ctx context.Context, attempt int) error {
	t := time.NewTimer(g.cfg.Backoff << (attempt - 1))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type failure int

const (
	failPermanent failure = iota
	failTransient
	failAuth
	failCanceled
)

// classify decides whether err is worth another attempt on the same model,
// worth the next model, or final.
func classify(err error) failure {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return failCanceled
	}

	var provErr *llm.ProviderError
	if errors.As(err, &provErr) {
		switch {
		case provErr.Code == 401 || provErr.Code == 403:
			return failAuth
		case provErr.Code == 429 || provErr.Code >= 500:
			return failTransient
		}
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"overloaded", "rate limit", "capacity", "timeout"} {
		if strings.Contains(msg, s) {
			return failTransient
		}
	}
	return failPermanent
}

// normalize converts a provider reply into a Response. Tool arguments must
// decode to a JSON object.
func normalize(op string, resp *llm.CompletionResponse) (*Response, error) {
	out := &Response{
		Content: resp.Content,
		Model:   resp.Model,
		Usage:   resp.Usage,
	}
	for _, tc := range resp.ToolCalls {
		if tc.Name == "" {
			return nil, &ContractError{Op: op, Message: "tool call without a name"}
		}
		args := map[string]any{}
		if raw := strings.TrimSpace(tc.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, &ContractError{Op: op, Message: fmt.Sprintf("tool %s: arguments are not a JSON object: %v", tc.Name, err)}
			}
			if args == nil {
				args = map[string]any{}
			}
		}
		id := tc.ID
		if id == "" {
			id = uuid.NewString()
		}
		out.ToolCalls = append(out.ToolCalls, domain.ToolCall{ID: id, Name: tc.Name, Args: args})
	}
	if strings.TrimSpace(out.Content) == "" && len(out.ToolCalls) == 0 {
		return nil, &ContractError{Op: op, Message: "model returned neither text nor tool calls"}
	}
	return out, nil
}
