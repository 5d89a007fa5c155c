// Package modeltext decodes structured data out of raw language-model reply
// text. Models asked for strict JSON still wrap it in markdown fences or
// prose often enough that every caller needs the same best-effort recovery,
// so the contract lives here exactly once: find the first balanced
// brace-delimited substring, parse it, and report failure as an error the
// caller downgrades rather than propagates.
package modeltext

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON returns the first balanced brace-delimited substring of raw,
// scanning with brace matching so trailing prose after the object does not
// break the parse. Braces inside JSON strings are skipped.
func ExtractJSON(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
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
					return raw[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// DecodeFirst unmarshals the first JSON object found in raw into out.
// Markdown code fences are stripped before scanning.
func DecodeFirst(raw string, out any) error {
	cleaned := StripFences(raw)

	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}

	obj, ok := ExtractJSON(cleaned)
	if !ok {
		return fmt.Errorf("no JSON object in reply text")
	}
	if err := json.Unmarshal([]byte(obj), out); err != nil {
		return fmt.Errorf("invalid JSON in reply text: %w", err)
	}
	return nil
}

// StripFences removes markdown code fences around a reply.
func StripFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	for _, prefix := range []string{"```json", "```JSON", "```"} {
		cleaned = strings.TrimPrefix(cleaned, prefix)
	}
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}
