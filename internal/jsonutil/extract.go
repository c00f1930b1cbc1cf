// Package jsonutil extracts structured JSON from free-form model output.
// Language models wrap JSON in markdown fences, preambles and trailing
// commentary; callers that need a strict object use ExtractObject instead of
// unmarshalling the raw response.
package jsonutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSONObject indicates no JSON object could be located in the text.
var ErrNoJSONObject = errors.New("no JSON object found in text")

// ExtractObject finds the first complete JSON object in raw and unmarshals
// it into v. Strict parsing is tried first; the tolerant path strips markdown
// fences and surrounding prose before scanning for a balanced object.
func ExtractObject(raw string, v any) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ErrNoJSONObject
	}

	// Fast path: the whole text is valid JSON.
	if err := json.Unmarshal([]byte(trimmed), v); err == nil {
		return nil
	}

	candidate := stripFences(trimmed)
	if err := json.Unmarshal([]byte(candidate), v); err == nil {
		return nil
	}

	object, ok := firstObject(candidate)
	if !ok {
		return ErrNoJSONObject
	}

	if err := json.Unmarshal([]byte(object), v); err != nil {
		return fmt.Errorf("extracted object is not valid JSON: %w", err)
	}

	return nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag.
func stripFences(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}

	start := strings.Index(s, "```")
	rest := s[start+3:]

	// Drop the language tag line ("json", "JSON", or empty).
	if newline := strings.IndexByte(rest, '\n'); newline >= 0 {
		firstLine := strings.TrimSpace(rest[:newline])
		if firstLine == "" || strings.EqualFold(firstLine, "json") {
			rest = rest[newline+1:]
		}
	}

	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}

	return strings.TrimSpace(rest)
}

// firstObject scans for the first balanced top-level JSON object, tracking
// string literals and escapes so braces inside values do not break the scan.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}

		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}

	return "", false
}
