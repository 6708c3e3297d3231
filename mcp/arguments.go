package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Arguments holds normalized tool arguments keyed by parameter name.
type Arguments map[string]any

// String returns the named argument as a string, or "" if absent.
func (a Arguments) String(name string) string {
	switch v := a[name].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the named argument as an int, or 0 if absent.
func (a Arguments) Int(name string) int {
	switch v := a[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Bool returns the named argument as a bool.
func (a Arguments) Bool(name string) bool {
	v, _ := a[name].(bool)
	return v
}

// decodeArguments parses the raw arguments member of tools/call. An absent or
// null member yields an empty set.
func decodeArguments(raw json.RawMessage) (Arguments, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Arguments{}, nil
	}

	var args Arguments
	if err := json.Unmarshal(trimmed, &args); err != nil {
		return nil, &ArgumentError{Reason: "arguments must be a JSON object"}
	}
	if args == nil {
		args = Arguments{}
	}
	return args, nil
}

// normalizeArguments applies defaults, drops nulls, coerces loosely typed
// values to the declared parameter types and clamps bounded integers.
func normalizeArguments(params []ToolParameter, args Arguments) (Arguments, error) {
	out := make(Arguments, len(args))
	for k, v := range args {
		if v != nil {
			out[k] = v
		}
	}

	for _, p := range params {
		v, ok := out[p.Name]
		if !ok {
			if p.Required {
				return nil, argumentError(p.Name, "missing required argument")
			}
			if p.Default != nil {
				out[p.Name] = p.Default
			}
			continue
		}

		coerced, err := coerce(p, v)
		if err != nil {
			return nil, err
		}
		out[p.Name] = coerced
	}
	return out, nil
}

func coerce(p ToolParameter, v any) (any, error) {
	switch p.Type {
	case ParamInteger:
		switch t := v.(type) {
		case float64:
			return clampInteger(p, t)
		case int:
			return boundInteger(p, t), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
			if err != nil && !errors.Is(err, strconv.ErrRange) {
				return nil, argumentError(p.Name, "expected an integer, got %q", t)
			}
			return clampInteger(p, f)
		default:
			return v, nil
		}

	case ParamNumber:
		if s, ok := v.(string); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, argumentError(p.Name, "expected a number, got %q", s)
			}
			return f, nil
		}

	case ParamBoolean:
		if s, ok := v.(string); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(s))
			if err != nil {
				return nil, argumentError(p.Name, "expected a boolean, got %q", s)
			}
			return b, nil
		}
	}

	// Anything else is left for schema validation to accept or reject.
	return v, nil
}

// clampInteger bounds f to the parameter's range before converting it, so
// values beyond the int range saturate instead of wrapping.
func clampInteger(p ToolParameter, f float64) (int, error) {
	if math.IsNaN(f) || f != math.Trunc(f) {
		return 0, argumentError(p.Name, "expected an integer, got %v", f)
	}
	if p.Maximum != nil && f > float64(*p.Maximum) {
		return *p.Maximum, nil
	}
	if p.Minimum != nil && f < float64(*p.Minimum) {
		return *p.Minimum, nil
	}
	if f >= float64(math.MaxInt) || f < float64(math.MinInt) {
		return 0, argumentError(p.Name, "integer %v out of range", f)
	}
	return int(f), nil
}

func boundInteger(p ToolParameter, n int) int {
	if p.Minimum != nil && n < *p.Minimum {
		return *p.Minimum
	}
	if p.Maximum != nil && n > *p.Maximum {
		return *p.Maximum
	}
	return n
}
