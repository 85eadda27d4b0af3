package decode

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FieldError names the exact field that failed strict validation.
// Nested fields use dotted paths, e.g. behavioral_action.action_type.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
}

func fieldPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64, int:
		return "number"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

// numberBound keeps rounded model numbers well inside the int range; every
// field is clamped to a far smaller range afterwards
const numberBound = 1e9

// roundInt rounds f to an int, saturating at ±numberBound
func roundInt(f float64) (int, bool) {
	if math.IsNaN(f) {
		return 0, false
	}
	return int(math.Round(math.Max(-numberBound, math.Min(numberBound, f)))), true
}

// asNumber accepts JSON numbers only
func asNumber(v interface{}) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil || math.IsInf(f, 0) {
			return 0, false
		}
		return roundInt(f)
	case float64:
		return roundInt(n)
	case int:
		return n, true
	}
	return 0, false
}

// asLenientNumber also accepts numeric strings such as "72" or "72%"
func asLenientNumber(v interface{}) (int, bool) {
	if n, ok := asNumber(v); ok {
		return n, true
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) {
			return roundInt(f)
		}
	}
	return 0, false
}

func requireNumber(m map[string]interface{}, prefix, key string) (int, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, &FieldError{Field: fieldPath(prefix, key), Reason: "is missing"}
	}
	n, ok := asNumber(v)
	if !ok {
		return 0, &FieldError{Field: fieldPath(prefix, key), Reason: "must be a number, got " + typeName(v)}
	}
	return n, nil
}

func requireObject(m map[string]interface{}, prefix, key string) (map[string]interface{}, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, &FieldError{Field: fieldPath(prefix, key), Reason: "is missing"}
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, &FieldError{Field: fieldPath(prefix, key), Reason: "must be an object, got " + typeName(v)}
	}
	return obj, nil
}

func requireString(m map[string]interface{}, prefix, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", &FieldError{Field: fieldPath(prefix, key), Reason: "is missing"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &FieldError{Field: fieldPath(prefix, key), Reason: "must be a string, got " + typeName(v)}
	}
	if strings.TrimSpace(s) == "" {
		return "", &FieldError{Field: fieldPath(prefix, key), Reason: "must not be empty"}
	}
	return s, nil
}

func requireStringArray(m map[string]interface{}, prefix, key string) ([]string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, &FieldError{Field: fieldPath(prefix, key), Reason: "is missing"}
	}
	arr, ok := v.([]interface{})
	if !ok {
		return nil, &FieldError{Field: fieldPath(prefix, key), Reason: "must be an array, got " + typeName(v)}
	}
	out := make([]string, 0, len(arr))
	for i, item := range arr {
		s, ok := item.(string)
		if !ok {
			return nil, &FieldError{
				Field:  fmt.Sprintf("%s[%d]", fieldPath(prefix, key), i),
				Reason: "must be a string, got " + typeName(item),
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// normalizeToken folds case, trims and maps spaces and hyphens to underscores
func normalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

func requireEnum[T ~string](m map[string]interface{}, prefix, key string, values []T) (T, error) {
	s, err := requireString(m, prefix, key)
	if err != nil {
		return "", err
	}
	tok := normalizeToken(s)
	for _, v := range values {
		if string(v) == tok {
			return v, nil
		}
	}
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = string(v)
	}
	return "", &FieldError{
		Field:  fieldPath(prefix, key),
		Reason: fmt.Sprintf("must be one of %s, got %q", strings.Join(names, "|"), s),
	}
}

// stringList is the lenient reading of a list: an array keeps its non-empty
// string items, a single string becomes a one-item list, anything else is empty
func stringList(v interface{}) []string {
	switch t := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		if strings.TrimSpace(t) != "" {
			return []string{strings.TrimSpace(t)}
		}
	}
	return []string{}
}

func optionalString(v interface{}) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
