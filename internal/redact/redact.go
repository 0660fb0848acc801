// Package redact strips secrets and learner data from error text before it
// is logged. Connection strings, bearer tokens, SQL statements (which carry
// recalled phrases as bound values), email addresses, file paths and stack
// traces are replaced with fixed placeholders.
package redact

import (
	"log/slog"
	"regexp"
)

// Placeholders substituted for redacted fragments.
const (
	Placeholder           = "[REDACTED]"
	CredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	TokenPlaceholder      = "[REDACTED_TOKEN]"
	JWTPlaceholder        = "[REDACTED_JWT]"
	SQLPlaceholder        = "[REDACTED_SQL]"
	EmailPlaceholder      = "[REDACTED_EMAIL]"
	PathPlaceholder       = "[REDACTED_PATH]"
	StackPlaceholder      = "[STACK_TRACE_REDACTED]"
)

type rule struct {
	re   *regexp.Regexp
	repl string
}

// rules run in order; later rules see the output of earlier ones.
var rules = []rule{
	{
		re:   regexp.MustCompile(`(?:goroutine \d+ \[[^\]]*\]:|panic:)[\s\S]*`),
		repl: StackPlaceholder,
	},
	{
		re:   regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`),
		repl: JWTPlaceholder,
	},
	{
		re:   regexp.MustCompile(`(?i)\b(bearer\s+)[A-Za-z0-9_\-.~+/]+=*`),
		repl: "${1}" + TokenPlaceholder,
	},
	{
		// userinfo of URLs and DSNs; scheme and host are kept
		re:   regexp.MustCompile(`(?i)\b([a-z][a-z0-9+.-]*://)[^/\s:@]+(?::[^/\s@]*)?@`),
		repl: "${1}" + CredentialPlaceholder + "@",
	},
	{
		re: regexp.MustCompile(
			`(?i)\b(jwt_secret|password|passwd|pwd|secret|api[_-]?key|token)(\s*[=:]\s*)['"]?[^\s'"&,;\[][^\s'"&,;]*['"]?`,
		),
		repl: "${1}${2}" + Placeholder,
	},
	{
		re: regexp.MustCompile(
			`(?i)\b(?:SELECT\s.+?\sFROM|INSERT\s+INTO|UPDATE\s+\S+\s+SET|DELETE\s+FROM)\b[^;\n]*`,
		),
		repl: SQLPlaceholder,
	},
	{
		re:   regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		repl: EmailPlaceholder,
	},
	{
		re:   regexp.MustCompile(`(?:/[\w.-]+){2,}`),
		repl: PathPlaceholder,
	},
}

// String redacts sensitive fragments of s.
func String(s string) string {
	if s == "" {
		return s
	}
	for _, r := range rules {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	return s
}

// Error redacts err's message. A nil error yields "".
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

// ErrorAttr returns err as a redacted "error" log attribute.
func ErrorAttr(err error) slog.Attr {
	return slog.String("error", Error(err))
}
