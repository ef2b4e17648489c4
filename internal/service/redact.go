package service

import "regexp"

// secretParamPattern matches credential-like query parameter values in URLs,
// including URLs embedded in transport error messages.
var secretParamPattern = regexp.MustCompile(`(?i)([?&;](?:api_?key|access_token|token|key|secret|password)=)[^&\s"]+`)

// RedactSecrets masks credential-like query parameter values in s.
func RedactSecrets(s string) string {
	return secretParamPattern.ReplaceAllString(s, "${1}[REDACTED]")
}
