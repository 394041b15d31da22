package middleware

import (
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const maxHeaderValueSize = 8192

var (
	htmlTag     = regexp.MustCompile(`<[^>]*>`)
	unsafeChars = strings.NewReplacer("<", "", ">", "", "'", "", `"`, "", "&", "")

	// Caught separately: neither carries a character SanitizeText drops.
	scriptScheme = regexp.MustCompile(`(?i)(javascript\s*:|\bon\w+\s*=)`)
)

// Sanitize rejects requests whose path, headers or query parameters could
// smuggle markup or control sequences into the service.
func Sanitize() echo.MiddlewareFunc {
	return SanitizeWithLogger(zerolog.Nop())
}

// SanitizeWithLogger is Sanitize with every rejection logged at warn level.
func SanitizeWithLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if reason := inspectRequest(c.Request()); reason != "" {
				logger.Warn().
					Str("path", c.Request().URL.Path).
					Str("remote_ip", c.RealIP()).
					Str("reason", reason).
					Msg("request rejected by sanitizer")
				return reject(c, http.StatusBadRequest, "validation", reason)
			}
			return next(c)
		}
	}
}

// inspectRequest returns why r is refused, or "" when it is acceptable.
func inspectRequest(r *http.Request) string {
	for _, p := range []string{r.URL.Path, r.URL.RawPath} {
		switch {
		case traversesPath(p):
			return "path traversal detected"
		case hasNullByte(p):
			return "null byte in path"
		}
	}

	for name, values := range r.Header {
		for _, v := range values {
			switch {
			case len(v) > maxHeaderValueSize:
				return "header " + name + " is too large"
			case strings.ContainsAny(v, "\r\n"):
				return "header " + name + " contains a line break"
			}
		}
	}

	// Query values are identifiers, dates and enum tags. Any of them that
	// SanitizeText would alter is refused rather than rewritten.
	for key, values := range r.URL.Query() {
		if !isCleanText(key) {
			return "query parameter name contains markup or unsafe characters"
		}
		for _, v := range values {
			if !isCleanText(v) {
				return "query parameter " + key + " contains markup or unsafe characters"
			}
		}
	}
	return ""
}

func isCleanText(s string) bool {
	return SanitizeText(s) == strings.TrimSpace(s) && !scriptScheme.MatchString(s)
}

func traversesPath(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "..") || strings.Contains(lower, "%2e%2e") || strings.Contains(lower, "%252e")
}

func hasNullByte(s string) bool {
	return strings.ContainsRune(s, '\x00') || strings.Contains(strings.ToLower(s), "%00")
}

// SanitizeString strips null bytes and control characters other than
// \n, \r and \t, then trims surrounding whitespace.
func SanitizeString(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if r == '\x00' {
			continue
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// SanitizeText prepares clinical free text for storage: HTML tags are
// removed, then the characters < > ' " & are dropped, then SanitizeString
// applies.
func SanitizeText(input string) string {
	out := htmlTag.ReplaceAllString(input, "")
	out = unsafeChars.Replace(out)
	return SanitizeString(out)
}
