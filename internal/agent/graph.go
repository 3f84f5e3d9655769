// Package agent runs Steve's conversation graph: a small state machine that
// alternates between the reasoning model and the tool registry until a turn
// produces its final response.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/steve/internal/domain"
	"github.com/soyeahso/steve/internal/hooks"
	"github.com/soyeahso/steve/internal/logging"
	"github.com/soyeahso/steve/internal/tools"
)

// DefaultMaxSteps bounds the transitions of a single turn.
const DefaultMaxSteps = 12

// State is a node of the conversation graph.
type State int

const (
	StateSummarize State = iota
	StateReason
	StateInvokeTools
	StateTerminate
)

func (s State) String() string {
	switch s {
	case StateSummarize:
		return "summarize"
	case StateReason:
		return "reason"
	case StateInvokeTools:
		return "invoke_tools"
	case StateTerminate:
		return "terminate"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Invoker runs tool calls. *tools.Registry implements it.
type Invoker interface {
	Invoke(ctx context.Context, call domain.ToolCall) (domain.Output, tools.Spec, error)
}

// Options tunes a Graph.
type Options struct {
	MaxSteps         int
	SummaryThreshold int
	Hooks            *hooks.Manager
}

// Turn is one visitor message on a thread.
type Turn struct {
	ThreadID     string
	Message      string
	StreamTokens bool
}

// Graph drives turns through Summarize, Reason, InvokeTools and Terminate.
type Graph struct {
	model      Model
	tools      Invoker
	summarizer *Summarizer
	sessions   *SessionStore
	hooks      *hooks.Manager
	maxSteps   int
	now        func() time.Time
	log        *logging.Logger
}

// NewGraph wires a graph over its collaborators.
func NewGraph(model Model, invoker Invoker, sessions *SessionStore, opts Options, log *logging.Logger) *Graph {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	return &Graph{
		model:      model,
		tools:      invoker,
		summarizer: NewSummarizer(model, opts.SummaryThreshold, log),
		sessions:   sessions,
		hooks:      opts.Hooks,
		maxSteps:   opts.MaxSteps,
		now:        time.Now,
		log:        log.Sub("agent"),
	}
}

// Sessions returns the store holding the graph's checkpoints.
func (g *Graph) Sessions() *SessionStore { return g.sessions }

// Run executes one turn and reports its events through emit in order. The
// thread's checkpoint is replaced only when the turn reaches Terminate; on
// error the previous checkpoint is left as it was.
func (g *Graph) Run(ctx context.Context, turn Turn, emit func(domain.Event)) (domain.ConversationState, error) {
	if g == nil {
		return domain.ConversationState{}, ErrNotInitialized
	}
	if strings.TrimSpace(turn.Message) == "" {
		return domain.ConversationState{}, ErrEmptyMessage
	}
	if emit == nil {
		emit = func(domain.Event) {}
	}

	unlock := g.sessions.Lock(turn.ThreadID)
	defer unlock()

	start := g.now()
	log := g.log.With("thread", turn.ThreadID)
	g.hooks.EmitAsync(ctx, hooks.EventTurnStart, map[string]any{"thread_id": turn.ThreadID})

	st, _ := g.sessions.Load(turn.ThreadID)
	st.Input = turn.Message
	st.Result = ""
	st.RetrievedContext = ""
	st.Messages = append(st.Messages, domain.Message{
		Role:      domain.RoleVisitor,
		Content:   turn.Message,
		Timestamp: start,
	})

	state := StateSummarize
	for steps := 0; state != StateTerminate; steps++ {
		if steps >= g.maxSteps {
			return st, g.fail(ctx, turn, fmt.Errorf("%w after %d steps", ErrStepLimit, g.maxSteps))
		}
		if err := ctx.Err(); err != nil {
			return st, g.fail(ctx, turn, err)
		}

		next, out, events, err := g.step(ctx, state, st, turn, emit)
		if err != nil {
			return st, g.fail(ctx, turn, err)
		}
		for _, ev := range events {
			emit(ev)
		}
		log.Debug().Stringer("from", state).Stringer("to", next).Msg("transition")
		state, st = next, out
	}

	g.sessions.Save(turn.ThreadID, st)
	log.Info().Dur("duration", g.now().Sub(start)).Int("messages", len(st.Messages)).Msg("turn complete")
	g.hooks.EmitAsync(ctx, hooks.EventTurnEnd, map[string]any{
		"thread_id": turn.ThreadID,
		"result":    st.Result,
	})
	return st, nil
}

func (g *Graph) fail(ctx context.Context, turn Turn, err error) error {
	g.log.Error().Err(err).Str("thread", turn.ThreadID).Msg("turn failed")
	g.hooks.EmitAsync(ctx, hooks.EventTurnError, map[string]any{
		"thread_id": turn.ThreadID,
		"error":     err.Error(),
	})
	return err
}

// step performs one transition. Events are returned rather than emitted so
// that a failed step leaves nothing behind; streamed tokens are the
// exception and go straight to emit.
func (g *Graph) step(ctx context.Context, s State, st domain.ConversationState, turn Turn, emit func(domain.Event)) (State, domain.ConversationState, []domain.Event, error) {
	switch s {
	case StateSummarize:
		out, err := g.summarizer.Apply(ctx, st)
		if err != nil {
			return s, st, nil, err
		}
		return StateReason, out, nil, nil
	case StateReason:
		return g.reason(ctx, st, turn, emit)
	case StateInvokeTools:
		return g.invokeTools(ctx, st, turn)
	default:
		return StateTerminate, st, nil, nil
	}
}

func (g *Graph) reason(ctx context.Context, st domain.ConversationState, turn Turn, emit func(domain.Event)) (State, domain.ConversationState, []domain.Event, error) {
	if m, ok := st.Last(domain.RoleVisitor); ok {
		st.Input = m.Content
	}
	p := Prompt{
		Query:  st.Input,
		Memory: buildMemory(st.Summary, st.Messages),
	}
	if m, ok := st.Last(domain.RoleTool); ok {
		p.Context = m.Content
	}

	var (
		resp *Response
		err  error
	)
	if turn.StreamTokens {
		resp, err = g.model.StreamTokens(ctx, p, func(tok string) { emit(domain.Token(tok)) })
	} else {
		resp, err = g.model.Reason(ctx, p)
	}
	if err != nil {
		return StateReason, st, nil, err
	}

	msg := domain.Message{Role: domain.RoleAgent, Content: resp.Content, Timestamp: g.now()}
	if len(resp.ToolCalls) > 0 {
		msg.ToolCalls = resp.ToolCalls
		st.Messages = append(st.Messages, msg)
		return StateInvokeTools, st, []domain.Event{domain.ToolCallsRequested(resp.ToolCalls)}, nil
	}

	st.Messages = append(st.Messages, msg)
	st.Result = resp.Content
	return StateTerminate, st, []domain.Event{domain.FinalResponse(resp.Content)}, nil
}

// invokeTools runs the calls of the latest agent message in order. Answers
// from return-direct tools accumulate; the first other tool to produce a
// result decides the route and ends the batch.
func (g *Graph) invokeTools(ctx context.Context, st domain.ConversationState, turn Turn) (State, domain.ConversationState, []domain.Event, error) {
	last := domain.Message{}
	if n := len(st.Messages); n > 0 {
		last = st.Messages[n-1]
	}
	if last.Role != domain.RoleAgent || len(last.ToolCalls) == 0 {
		return StateInvokeTools, st, nil, &ContractError{Op: "invoke_tools", Message: "no pending tool calls"}
	}

	var (
		events []domain.Event
		direct []string
		winner *tools.Spec
		text   string
	)
	for _, call := range last.ToolCalls {
		start := g.now()
		out, spec, err := g.tools.Invoke(ctx, call)
		if err != nil {
			return StateInvokeTools, st, nil, toolError(err)
		}
		g.hooks.EmitAsync(ctx, hooks.EventToolInvoked, map[string]any{
			"thread_id":    turn.ThreadID,
			"tool_name":    call.Name,
			"tool_call_id": call.ID,
			"route":        spec.Route.String(),
			"duration_ms":  g.now().Sub(start).Milliseconds(),
		})

		result := out.String()
		st.Messages = append(st.Messages, domain.Message{
			Role:       domain.RoleTool,
			Content:    result,
			ToolName:   call.Name,
			ToolCallID: call.ID,
			Timestamp:  g.now(),
		})

		if spec.Route == tools.RouteDirect {
			direct = append(direct, result)
			continue
		}
		if spec.Route == tools.RouteTerminate {
			events = append(events, domain.ToolOutput(call, out))
		}
		winner, text = &spec, result
		break
	}

	switch {
	case winner != nil && winner.Route == tools.RouteReason:
		st.RetrievedContext = text
		return StateSummarize, st, events, nil
	case winner == nil:
		text = strings.Join(direct, "\n\n")
	}
	st.Result = text
	events = append(events, domain.FinalResponse(text))
	return StateTerminate, st, events, nil
}

// toolError maps registry failures onto the turn's error taxonomy.
func toolError(err error) error {
	var unknown *tools.UnknownToolError
	var invoke *tools.InvokeError
	switch {
	case errors.As(err, &unknown):
		return &ContractError{Op: "invoke_tools", Message: unknown.Error()}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.As(err, &invoke):
		return &UpstreamError{Op: "tool " + invoke.Tool, Err: invoke.Err}
	default:
		return err
	}
}
