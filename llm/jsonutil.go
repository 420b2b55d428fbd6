package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	// fencedBlockPattern matches the body of a markdown code fence.
	fencedBlockPattern = regexp.MustCompile("(?s)```(?:json|JSON)?[ \\t]*\\n?(.*?)```")
	// trailingCommaPattern matches trailing commas before ] or }.
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON finds the JSON payload in model output. It tries, in order:
// the content of a fenced code block, the whole text, and the first
// balanced {...} or [...] substring. Comments and trailing commas are
// stripped from the result. It returns "" when nothing looks like JSON.
func ExtractJSON(content string) string {
	if m := fencedBlockPattern.FindStringSubmatch(content); len(m) > 1 {
		if body := strings.TrimSpace(m[1]); body != "" {
			if json.Valid([]byte(body)) {
				return body
			}
			if sub := balancedSubstring(body); sub != "" {
				return cleanJSON(sub)
			}
		}
	}

	trimmed := strings.TrimSpace(content)
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		return trimmed
	}

	if sub := balancedSubstring(content); sub != "" {
		return cleanJSON(sub)
	}
	return ""
}

// balancedSubstring returns the first complete object or array in s,
// honoring string literals and escapes.
func balancedSubstring(s string) string {
	start := strings.IndexAny(s, "{[")
	for start >= 0 {
		if end := matchClose(s, start); end > 0 {
			return s[start : end+1]
		}
		next := strings.IndexAny(s[start+1:], "{[")
		if next < 0 {
			break
		}
		start += next + 1
	}
	return ""
}

// matchClose returns the index of the bracket closing s[start], or -1.
func matchClose(s string, start int) int {
	var stack []byte
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != ch {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}

// cleanJSON removes JavaScript-style comments and trailing commas, which
// models commonly emit.
func cleanJSON(raw string) string {
	lines := strings.Split(raw, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned = append(cleaned, stripLineComment(line))
	}
	result := strings.Join(cleaned, "\n")

	return trailingCommaPattern.ReplaceAllString(result, "$1")
}

// stripLineComment removes a // comment from a JSON line, respecting string values.
// For example:
//
//	"geo": "Rome",          // capital   → "geo": "Rome",
//	"url": "http://example.com"          → unchanged
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}

	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/' {
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}
