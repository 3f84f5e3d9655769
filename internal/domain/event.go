package domain

import "encoding/json"

// EventType names a caller-visible event emitted during a turn.
type EventType string

const (
	EventAgentToolCall EventType = "agent_tool_call"
	EventToolOutput    EventType = "tool_output"
	EventFinalResponse EventType = "final_response"
	EventToken         EventType = "token"
	EventError         EventType = "error"
)

// RequestedCall is the caller-facing view of a tool call.
type RequestedCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Event is one record of the NDJSON stream returned for a turn.
type Event struct {
	Type       EventType
	Content    string
	ToolCalls  []RequestedCall
	Output     any
	ToolName   string
	ToolArgs   map[string]any
	ToolCallID string
}

// FinalResponse builds a final_response event.
func FinalResponse(content string) Event {
	return Event{Type: EventFinalResponse, Content: content}
}

// Token builds a token event.
func Token(content string) Event {
	return Event{Type: EventToken, Content: content}
}

// ErrorEvent builds an error event.
func ErrorEvent(content string) Event {
	return Event{Type: EventError, Content: content}
}

// ToolCallsRequested builds an agent_tool_call event from model tool calls.
func ToolCallsRequested(calls []ToolCall) Event {
	req := make([]RequestedCall, len(calls))
	for i, c := range calls {
		args := c.Args
		if args == nil {
			args = map[string]any{}
		}
		req[i] = RequestedCall{Name: c.Name, Args: args}
	}
	return Event{Type: EventAgentToolCall, ToolCalls: req}
}

// ToolOutput builds a tool_output event.
func ToolOutput(call ToolCall, out Output) Event {
	return Event{
		Type:       EventToolOutput,
		Output:     out.Value(),
		ToolName:   call.Name,
		ToolArgs:   call.Args,
		ToolCallID: call.ID,
	}
}

// MarshalJSON encodes only the fields that belong to the event type.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventAgentToolCall:
		return json.Marshal(struct {
			Type      EventType       `json:"type"`
			ToolCalls []RequestedCall `json:"tool_calls"`
		}{e.Type, e.ToolCalls})
	case EventToolOutput:
		return json.Marshal(struct {
			Type       EventType      `json:"type"`
			Output     any            `json:"output"`
			ToolName   string         `json:"tool_name"`
			ToolArgs   map[string]any `json:"tool_args"`
			ToolCallID string         `json:"tool_call_id"`
		}{e.Type, e.Output, e.ToolName, e.ToolArgs, e.ToolCallID})
	default:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Content string    `json:"content"`
		}{e.Type, e.Content})
	}
}
