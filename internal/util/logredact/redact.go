// Package logredact strips credential material out of text destined for
// logs or error messages. Upstream APIs occasionally echo tokens back in
// error bodies; anything passing through here is safe to persist.
package logredact

import "regexp"

const sensitiveKeys = `access_token|refresh_token|id_token|client_secret|code_verifier|authorization|code`

var (
	jsonValue  = regexp.MustCompile(`(?i)"(` + sensitiveKeys + `)"\s*:\s*"[^"]*"`)
	queryValue = regexp.MustCompile(`(?i)\b(` + sensitiveKeys + `)=[^&\s"']+`)
	bearer     = regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/-]+=*`)
)

// RedactText replaces token-bearing values in s with "***". It handles
// JSON bodies, query strings and Authorization header values.
func RedactText(s string) string {
	s = jsonValue.ReplaceAllString(s, `"$1":"***"`)
	s = queryValue.ReplaceAllString(s, `$1=***`)
	s = bearer.ReplaceAllString(s, `Bearer ***`)
	return s
}
