package nlu

import (
	"encoding/json"
	"strings"
)

// ExtractJSON pulls the first valid JSON object out of an LLM completion.
// Models wrap structured output in markdown fences or surround it with
// prose; fenced blocks are preferred, then embedded top-level objects.
func ExtractJSON(s string) (string, bool) {
	if idx := strings.Index(s, "```json"); idx >= 0 {
		rest := s[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			candidate := strings.TrimSpace(rest[:end])
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
	}

	for _, candidate := range findJSONCandidates(s) {
		if json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}
	return "", false
}

// findJSONCandidates scans the input for top-level JSON object candidates,
// handling nested braces and string escaping. Byte iteration is safe for
// the ASCII delimiters involved: UTF-8 guarantees ASCII bytes never appear
// inside a multi-byte sequence.
func findJSONCandidates(s string) []string {
	var candidates []string
	var depth int
	start := -1
	var inString, escape bool

	for i := 0; i < len(s); i++ {
		b := s[i]

		if escape {
			escape = false
			continue
		}
		if inString {
			if b == '\\' {
				escape = true
			} else if b == '"' {
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					candidates = append(candidates, s[start:i+1])
					start = -1
				}
			}
		}
	}
	return candidates
}
