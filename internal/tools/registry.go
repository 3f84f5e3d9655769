package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/soyeahso/steve/internal/domain"
	"github.com/soyeahso/steve/internal/llm"
	"github.com/soyeahso/steve/internal/logging"
)

// Registry maps tool names to implementations. It is populated at startup
// and read concurrently afterwards.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string // registration order, used for model tool definitions
	log   *logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		tools: make(map[string]Tool),
		log:   log.Sub("tools"),
	}
}

// Register adds a tool after checking its spec.
func (r *Registry) Register(t Tool) error {
	spec := t.Spec()
	if err := validateSpec(spec); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[spec.Name]; exists {
		return fmt.Errorf("tool already registered: %s", spec.Name)
	}
	r.tools[spec.Name] = t
	r.order = append(r.order, spec.Name)

	r.log.Debug().
		Str("tool", spec.Name).
		Str("route", spec.Route.String()).
		Int("params", len(spec.Params)).
		Msg("tool registered")
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Specs returns every registered spec in registration order.
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Spec())
	}
	return out
}

// Definitions returns model-ready tool definitions in registration order.
func (r *Registry) Definitions() []llm.ToolDefinition {
	specs := r.Specs()
	defs := make([]llm.ToolDefinition, 0, len(specs))
	for _, s := range specs {
		params := make([]llm.ToolParam, 0, len(s.Params))
		for _, p := range s.Params {
			desc := p.Description
			if p.Default != nil {
				desc = fmt.Sprintf("%s (default: %v)", desc, p.Default)
			}
			params = append(params, llm.ToolParam{
				Name:        p.Name,
				Type:        p.Type,
				Description: desc,
				Required:    p.Required,
			})
		}
		defs = append(defs, llm.ToolDefinition{
			Name:        s.Name,
			Description: s.Description,
			Params:      params,
		})
	}
	return defs
}

// Invoke resolves, validates and runs a tool call. The returned spec lets the
// caller route on the tool's declared behavior.
func (r *Registry) Invoke(ctx context.Context, call domain.ToolCall) (domain.Output, Spec, error) {
	t, ok := r.Get(call.Name)
	if !ok {
		return domain.Output{}, Spec{}, &UnknownToolError{Name: call.Name}
	}
	spec := t.Spec()

	args, err := validateArgs(spec, call.Args)
	if err != nil {
		return domain.Output{}, spec, err
	}

	start := time.Now()
	out, err := t.Invoke(ctx, args)
	dur := time.Since(start)
	if err != nil {
		r.log.Warn().Err(err).Str("tool", spec.Name).Dur("duration", dur).Msg("tool failed")
		return domain.Output{}, spec, &InvokeError{Tool: spec.Name, Err: err}
	}

	r.log.Info().Str("tool", spec.Name).Str("call_id", call.ID).Dur("duration", dur).Msg("tool invoked")
	return out, spec, nil
}
