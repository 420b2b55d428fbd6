// Package logging builds the process logger and scrubs credentials from
// anything that reaches it.
package logging

import "regexp"

// Redacted replaces every credential-shaped substring.
const Redacted = "[REDACTED]"

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_\-]{8,}`),
	regexp.MustCompile(`sk-[A-Za-z0-9_\-]{8,}`),
	regexp.MustCompile(`AIza[0-9A-Za-z_\-]{20,}`),
	regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/\-]+=*`),
	regexp.MustCompile(`(?i)((?:api[_-]?key|x-api-key|access_token)["']?\s*[=:]\s*["']?)[^\s"'&,}]+`),
}

// Redact replaces API keys, bearer tokens and key=value credentials in s.
func Redact(s string) string {
	for _, p := range secretPatterns {
		if p.NumSubexp() > 0 {
			s = p.ReplaceAllString(s, "${1}"+Redacted)
			continue
		}
		s = p.ReplaceAllString(s, Redacted)
	}
	return s
}
