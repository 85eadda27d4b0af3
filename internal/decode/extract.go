// Package decode turns free-form model text into typed values. Parsing is
// two-phase: text is first parsed into loosely typed maps, then validated into
// model types by separate strict (hard-fail) and repair passes.
package decode

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// PreviewLen bounds the raw text attached to a ParseError
const PreviewLen = 200

var errNoJSON = errors.New("no JSON value found")

// ParseError is a hard decode failure carrying a bounded preview of the input
type ParseError struct {
	Preview string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("decode: %v; raw text: %q", e.Err, e.Preview)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func newParseError(text string, err error) *ParseError {
	return &ParseError{Preview: preview(text), Err: err}
}

func preview(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= PreviewLen {
		return s
	}
	return string(r[:PreviewLen]) + "..."
}

// StripFences removes a surrounding markdown code fence (```json ... ``` or
// ``` ... ```). Text without a fence is returned trimmed.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	start := strings.Index(s, "```")
	if start == -1 {
		return s
	}
	body := s[start+3:]
	// drop the language tag on the opening fence line
	if nl := strings.IndexByte(body, '\n'); nl != -1 {
		tag := strings.TrimSpace(body[:nl])
		if tag == "" || !strings.ContainsAny(tag, "{[") {
			body = body[nl+1:]
		}
	}
	if end := strings.Index(body, "```"); end != -1 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// ExtractJSON returns the JSON value in text that opens with open ('{' or
// '['). Fences are stripped first; if the remainder does not start with open,
// the first balanced span that is valid JSON is used, else the first balanced
// span at all.
func ExtractJSON(text string, open byte) (string, error) {
	s := StripFences(text)
	if len(s) > 0 && s[0] == open {
		if span, ok := balancedSpan(s, 0); ok {
			return span, nil
		}
		return "", newParseError(text, fmt.Errorf("unbalanced %q", open))
	}
	first := ""
	for i := 0; i < len(s); i++ {
		if s[i] != open {
			continue
		}
		span, ok := balancedSpan(s, i)
		if !ok {
			continue
		}
		if json.Valid([]byte(span)) {
			return span, nil
		}
		if first == "" {
			first = span
		}
	}
	if first != "" {
		return first, nil
	}
	return "", newParseError(text, errNoJSON)
}

// balancedSpan scans from s[start] to its matching close bracket, ignoring
// brackets inside string literals
func balancedSpan(s string, start int) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
			if depth < 0 {
				return "", false
			}
		}
	}
	return "", false
}

func unmarshal(raw string, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	return dec.Decode(v)
}

// ParseObject extracts and parses a JSON object. Numbers are kept as
// json.Number so the validator can tell them apart from numeric strings.
func ParseObject(text string) (map[string]interface{}, error) {
	raw, err := ExtractJSON(text, '{')
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := unmarshal(raw, &m); err != nil {
		return nil, newParseError(text, err)
	}
	return m, nil
}

// ParseArray extracts and parses a JSON array. An object wrapping exactly one
// array field ({"agents": [...]}) is unwrapped; a lone object becomes a
// one-element array.
func ParseArray(text string) ([]interface{}, error) {
	s := StripFences(text)
	if strings.HasPrefix(s, "{") {
		obj, err := ParseObject(s)
		if err != nil {
			return nil, newParseError(text, errors.Unwrap(err))
		}
		var inner []interface{}
		arrays := 0
		for _, v := range obj {
			if arr, ok := v.([]interface{}); ok {
				inner = arr
				arrays++
			}
		}
		if arrays == 1 && len(obj) == 1 {
			return inner, nil
		}
		return []interface{}{obj}, nil
	}

	raw, err := ExtractJSON(s, '[')
	if err != nil {
		return nil, newParseError(text, errors.Unwrap(err))
	}
	var arr []interface{}
	if err := unmarshal(raw, &arr); err != nil {
		return nil, newParseError(text, err)
	}
	return arr, nil
}
