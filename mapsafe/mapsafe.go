package mapsafe

import (
	"encoding/json"
	"math"
	"strconv"
)

// Get retrieves a typed value from a map[string]any.
// If the key is missing or the type cannot be converted, it returns the default value.
func Get[T any](m map[string]any, key string, defaultValue T) T {
	if v, ok := Lookup[T](m, key); ok {
		return v
	}
	return defaultValue
}

// Lookup retrieves a typed value and reports whether the key was present
// and convertible. Integers accept whole floats, json.Number and numeric
// strings, which is how they arrive from decoded JSON and query strings.
func Lookup[T any](m map[string]any, key string) (T, bool) {
	var zero T

	val, ok := m[key]
	if !ok || val == nil {
		return zero, false
	}

	switch any(zero).(type) {
	case int:
		if n, ok := toInt(val); ok {
			return any(n).(T), true
		}
	case float64:
		if f, ok := toFloat(val); ok {
			return any(f).(T), true
		}
	case string:
		if s, ok := val.(string); ok {
			return any(s).(T), true
		}
	case bool:
		switch x := val.(type) {
		case bool:
			return any(x).(T), true
		case string:
			if b, err := strconv.ParseBool(x); err == nil {
				return any(b).(T), true
			}
		}
	default:
		// fallback: if type matches exactly
		if v2, ok := val.(T); ok {
			return v2, true
		}
	}

	return zero, false
}

// Present reports whether key is set to a non-nil value.
func Present(m map[string]any, key string) bool {
	v, ok := m[key]
	return ok && v != nil
}

func toInt(val any) (int, bool) {
	switch x := val.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int(x), true
		}
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return int(n), true
		}
	case string:
		if n, err := strconv.Atoi(x); err == nil {
			return n, true
		}
	}
	return 0, false
}

func toFloat(val any) (float64, bool) {
	switch x := val.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f, true
		}
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
