package agent

import (
	"errors"
	"fmt"
)

// NotInitializedMessage is reported to callers when no graph is available.
const NotInitializedMessage = "Steve Agent not initialized."

var (
	// ErrNotInitialized is returned by a nil Graph.
	ErrNotInitialized = errors.New(NotInitializedMessage)

	// ErrStepLimit is returned when a turn does not reach Terminate within
	// the configured number of steps.
	ErrStepLimit = errors.New("step limit exceeded")

	// ErrEmptyMessage is returned for a turn without visitor text.
	ErrEmptyMessage = errors.New("message must not be empty")
)

// ContractError reports a response or tool call that does not have the shape
// the graph expects, such as a model reply with neither text nor tool calls.
type ContractError struct {
	Op      string
	Message string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// UpstreamError wraps a failure of the model backend or a tool's upstream
// service after retries and failover were exhausted.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
