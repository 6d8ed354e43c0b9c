package logging

import (
	"net/http"
	"regexp"
	"strings"
)

// Sensitive field names that should be redacted.
var sensitiveFields = []string{
	"password",
	"secret",
	"token",
	"authorization",
	"auth",
	"credential",
	"cookie",
	"session",
}

// Patterns for credentials that can appear inside free text (URLs, errors, headers).
var secretPatterns = []*regexp.Regexp{
	// Authorization header schemes used by the chat backend.
	regexp.MustCompile(`(?i)\b(token|bearer)\s+[a-zA-Z0-9._~+/=-]{8,}`),

	// Query string credentials, e.g. ws://host/ws/chat/1/?token=abc
	regexp.MustCompile(`(?i)([?&](token|access_token|auth)=)[^&\s"]+`),

	// key=value pairs with long opaque values.
	regexp.MustCompile(`(?i)(key|token|secret|password|auth)[=:]["']?([a-zA-Z0-9+/=_-]{32,})["']?`),
}

// RedactedValue is the replacement for sensitive values.
const RedactedValue = "[REDACTED]"

// Redact replaces sensitive information in a string.
func Redact(s string) string {
	result := s
	for i, pattern := range secretPatterns {
		if i == 1 {
			result = pattern.ReplaceAllString(result, "${1}"+RedactedValue)
			continue
		}
		result = pattern.ReplaceAllString(result, RedactedValue)
	}
	return result
}

// RedactHeader returns a copy of h with sensitive header values replaced.
func RedactHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, values := range h {
		if IsSensitiveField(k) {
			out[k] = RedactedValue
			continue
		}
		out[k] = Redact(strings.Join(values, ", "))
	}
	return out
}

// RedactMap redacts sensitive fields in a map.
func RedactMap(m map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(m))

	for k, v := range m {
		if IsSensitiveField(k) {
			result[k] = RedactedValue
		} else if nested, ok := v.(map[string]interface{}); ok {
			result[k] = RedactMap(nested)
		} else if str, ok := v.(string); ok {
			result[k] = Redact(str)
		} else {
			result[k] = v
		}
	}

	return result
}

// IsSensitiveField checks if a field name is considered sensitive.
func IsSensitiveField(name string) bool {
	lowerName := strings.ToLower(name)
	for _, field := range sensitiveFields {
		if strings.Contains(lowerName, field) {
			return true
		}
	}
	return false
}
