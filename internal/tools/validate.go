package tools

import (
	"encoding/json"
	"fmt"
	"math"
)

// validateSpec checks a spec at registration time.
func validateSpec(s Spec) error {
	if s.Name == "" {
		return fmt.Errorf("tool name is empty")
	}
	seen := make(map[string]bool, len(s.Params))
	for _, p := range s.Params {
		if p.Name == "" {
			return fmt.Errorf("tool %s: parameter with empty name", s.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("tool %s: duplicate parameter %q", s.Name, p.Name)
		}
		seen[p.Name] = true
		if !knownType(p.Type) {
			return fmt.Errorf("tool %s: parameter %q has unsupported type %q", s.Name, p.Name, p.Type)
		}
		if p.Default != nil {
			if _, err := coerce(p.Type, p.Default); err != nil {
				return fmt.Errorf("tool %s: parameter %q default: %w", s.Name, p.Name, err)
			}
		}
	}
	return nil
}

func knownType(t string) bool {
	switch t {
	case TypeString, TypeNumber, TypeInteger, TypeBoolean:
		return true
	}
	return false
}

// validateArgs checks raw model arguments against the spec and returns the
// normalized argument set. Arguments not declared by the spec are dropped.
func validateArgs(s Spec, raw map[string]any) (Args, error) {
	out := make(Args, len(s.Params))
	for _, p := range s.Params {
		v, ok := raw[p.Name]
		if !ok || v == nil {
			switch {
			case p.Default != nil:
				v = p.Default
			case p.Required:
				return nil, &ValidationError{Tool: s.Name, Param: p.Name, Message: "missing required argument"}
			default:
				continue
			}
		}
		cv, err := coerce(p.Type, v)
		if err != nil {
			return nil, &ValidationError{Tool: s.Name, Param: p.Name, Message: err.Error()}
		}
		out[p.Name] = cv
	}
	return out, nil
}

// coerce converts a decoded JSON value into the Go type used for t:
// string, float64, int or bool.
func coerce(t string, v any) (any, error) {
	switch t {
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeNumber:
		if f, ok := toFloat(v); ok {
			return f, nil
		}
	case TypeInteger:
		if f, ok := toFloat(v); ok && f == math.Trunc(f) {
			return int(f), nil
		}
	case TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("expected %s, got %T", t, v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
