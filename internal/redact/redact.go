// Package redact strips sensitive material from strings before they reach
// logs or error responses: connection strings, credentials, signed tokens,
// and host names that error messages from drivers and providers tend to
// carry.
package redact

import "regexp"

const (
	credentialPlaceholder = "[REDACTED_CREDENTIAL]"
	keyPlaceholder        = "[REDACTED_KEY]"
	tokenPlaceholder      = "[REDACTED_TOKEN]"
	hostPlaceholder       = "[REDACTED_HOST]"
	pathPlaceholder       = "[REDACTED_PATH]"
)

type rule struct {
	pattern     *regexp.Regexp
	placeholder string
}

// Ordered so the more specific patterns win before the broad ones run.
var rules = []rule{
	{regexp.MustCompile(`(?i)(postgres|postgresql|mysql)://[^@\s]+@`), credentialPlaceholder},
	{regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]['"]?)[^'"&\s]{3,}`), credentialPlaceholder},
	{regexp.MustCompile(`(?i)(api[_-]?key|secret|bearer)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`), keyPlaceholder},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), tokenPlaceholder},
	{regexp.MustCompile(`(/[\w.-]+){2,}`), pathPlaceholder},
	{regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}(?::\d{1,5})?\b`), hostPlaceholder},
}

// String returns the input with sensitive fragments replaced by
// placeholders.
func String(input string) string {
	if input == "" {
		return input
	}
	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.placeholder)
	}
	return result
}

// Error redacts an error's message. Returns "" for nil.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
