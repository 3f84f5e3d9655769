// Package tools implements the capabilities the agent can call and the
// registry that validates and dispatches those calls.
package tools

import (
	"context"

	"github.com/soyeahso/steve/internal/domain"
)

// Route tells the conversation graph where to go after a tool returns.
type Route int

const (
	// RouteTerminate ends the turn with the flattened tool output.
	RouteTerminate Route = iota
	// RouteReason feeds the output back into another reasoning step.
	RouteReason
	// RouteDirect ends the turn with the output passed through verbatim.
	RouteDirect
)

func (r Route) String() string {
	switch r {
	case RouteReason:
		return "reason"
	case RouteDirect:
		return "direct"
	default:
		return "terminate"
	}
}

// Parameter types accepted in a Param.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
)

// Param declares one input argument.
type Param struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Default     any // used when the argument is absent; nil means no default
}

// Spec describes a tool to the registry and to the model.
type Spec struct {
	Name        string
	Description string
	Params      []Param
	Route       Route
}

// Tool is a capability the agent can invoke.
type Tool interface {
	Spec() Spec
	// Invoke runs the tool with arguments that have already been validated
	// against Spec().Params.
	Invoke(ctx context.Context, args Args) (domain.Output, error)
}

// Args holds validated tool arguments.
type Args map[string]any

// String returns the named argument as a string, or "" when absent.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Float returns the named numeric argument.
func (a Args) Float(name string) float64 {
	f, _ := a[name].(float64)
	return f
}

// Int returns the named integer argument.
func (a Args) Int(name string) int {
	i, _ := a[name].(int)
	return i
}

// Bool returns the named boolean argument.
func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}
