package strategy

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
)

// ErrInvalidParams is matched by every *ParamError.
var ErrInvalidParams = errors.New("invalid strategy parameters")

// ParamError reports a missing, mistyped or out-of-range parameter.
type ParamError struct {
	Strategy string
	Param    string
	Reason   string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("strategy %s: parameter %q: %s", e.Strategy, e.Param, e.Reason)
}

func (e *ParamError) Unwrap() error { return ErrInvalidParams }

// Params is an opaque key/value strategy configuration. After validation
// through a Registry, declared parameters hold int, float64, string or bool
// values.
type Params map[string]any

// Int returns the named parameter as an int, or 0.
func (p Params) Int(name string) int {
	switch v := p[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// Float returns the named parameter as a float64, or 0.
func (p Params) Float(name string) float64 {
	switch v := p[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// String returns the named parameter as a string, or "".
func (p Params) String(name string) string {
	s, _ := p[name].(string)
	return s
}

// Bool returns the named parameter as a bool, or false.
func (p Params) Bool(name string) bool {
	b, _ := p[name].(bool)
	return b
}

// ---------------------------------------------------------------------------
// Parameter specs
// ---------------------------------------------------------------------------

// ParamType names the value type of a strategy parameter.
type ParamType string

const (
	ParamInt    ParamType = "int"
	ParamFloat  ParamType = "float"
	ParamString ParamType = "string"
	ParamBool   ParamType = "bool"
)

// ParamSpec describes one tunable strategy parameter.
type ParamSpec struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Default     any       `json:"default,omitempty"`
	Min         *float64  `json:"min,omitempty"`
	Max         *float64  `json:"max,omitempty"`
	Options     []string  `json:"options,omitempty"`
	Required    bool      `json:"required,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Bound is a helper for filling ParamSpec.Min and ParamSpec.Max.
func Bound(v float64) *float64 { return &v }

// validateParams coerces raw against specs and fills defaults. Keys with no
// spec pass through unchanged.
func validateParams(strategyID string, specs []ParamSpec, raw Params) (Params, error) {
	out := make(Params, len(raw)+len(specs))
	for k, v := range raw {
		out[k] = v
	}

	for _, spec := range specs {
		v, ok := raw[spec.Name]
		if !ok || v == nil {
			if spec.Required {
				return nil, &ParamError{Strategy: strategyID, Param: spec.Name, Reason: "missing required parameter"}
			}
			if spec.Default != nil {
				out[spec.Name] = spec.Default
			}
			continue
		}

		coerced, err := coerce(spec.Type, v)
		if err != nil {
			return nil, &ParamError{Strategy: strategyID, Param: spec.Name, Reason: err.Error()}
		}
		if reason := checkBounds(spec, coerced); reason != "" {
			return nil, &ParamError{Strategy: strategyID, Param: spec.Name, Reason: reason}
		}
		out[spec.Name] = coerced
	}
	return out, nil
}

func coerce(t ParamType, v any) (any, error) {
	switch t {
	case ParamInt:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("want integer, got %v", v)
		}
		return int(f), nil
	case ParamFloat:
		return toFloat(v)
	case ParamString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", v)
		}
		return s, nil
	case ParamBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			return strconv.ParseBool(b)
		}
		return nil, fmt.Errorf("want bool, got %T", v)
	default:
		return v, nil
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("want number, got %q", n)
		}
		return f, nil
	}
	return 0, fmt.Errorf("want number, got %T", v)
}

func checkBounds(spec ParamSpec, v any) string {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case float64:
		f = n
	case string:
		if len(spec.Options) > 0 && !slices.Contains(spec.Options, n) {
			return fmt.Sprintf("%q not one of %v", n, spec.Options)
		}
		return ""
	default:
		return ""
	}
	if spec.Min != nil && f < *spec.Min {
		return fmt.Sprintf("%v below minimum %v", v, *spec.Min)
	}
	if spec.Max != nil && f > *spec.Max {
		return fmt.Sprintf("%v above maximum %v", v, *spec.Max)
	}
	return ""
}
