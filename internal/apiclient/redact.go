package apiclient

import (
	"regexp"
	"strings"
)

var (
	bearerTokenRe = regexp.MustCompile(`(?i)\bBearer\s+[^\s"']+`)
	apiKeyKVRe    = regexp.MustCompile(`(?i)\b(api[_-]?key|key|token)\b\s*[:=]\s*[^\s"'&]+`)
)

// Redact removes obvious secret-bearing substrings from error and log text.
func Redact(s string) string {
	if s == "" {
		return ""
	}
	out := bearerTokenRe.ReplaceAllString(s, "Bearer <redacted>")
	out = apiKeyKVRe.ReplaceAllString(out, "<redacted_kv>")
	return strings.TrimSpace(out)
}

func snippet(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	// Response bodies can echo lead data back; keep only a short hint.
	const max = 256
	b := body
	if len(b) > max {
		b = b[:max]
	}
	s := Redact(string(b))
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(body) > max {
		return s + "..."
	}
	return s
}
