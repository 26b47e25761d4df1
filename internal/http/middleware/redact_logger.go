package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures RedactingLogger. MaskHeaders names extra headers
// (case-insensitive) whose values are replaced wholesale; Authorization,
// Cookie, and Set-Cookie are always masked.
type RedactOptions struct {
	MaskHeaders []string
}

// Identifier patterns scrubbed from logged queries and header values. UUIDs
// go first so the loose phone pattern never sees their digit groups.
var (
	redactUUID  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	redactEmail = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// digits only, e.g. "+94 77 123 4567", "(212) 555-1212"
	redactPhone = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// redactIdentifiers replaces UUIDs, email addresses, and phone numbers in s.
func redactIdentifiers(s string) string {
	if s == "" {
		return s
	}
	s = redactUUID.ReplaceAllString(s, "[REDACTED:id]")
	s = redactEmail.ReplaceAllString(s, "[REDACTED:email]")
	return redactPhone.ReplaceAllString(s, "[REDACTED:phone]")
}

// RedactingLogger is the access logger for production. It never reads
// bodies, so passwords and OTPs submitted as JSON stay out of the logs, and
// on top of what Logger records it:
//
//   - blanks the values of otp, code, token, access_token and password query
//     parameters
//   - replaces UUIDs, emails, and phone numbers in the query and in header
//     values
//   - masks sensitive headers entirely
//   - keeps the client IP and user agent out of the request-scoped logger,
//     so handler log lines carry only the correlation id, method, and route
//
// Usernames and listing text never appear in the access line.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		query := truncate(redactIdentifiers(scrubQuery(c.Request.URL.RawQuery)), maxQueryLogLength)
		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := masked[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = redactIdentifiers(strings.Join(vv, ", "))
		}

		l := log.With().
			Str("request_id", requestIDOf(c)).
			Str("method", c.Request.Method).
			Str("path", routeOf(c)).
			Logger()
		c.Set(ctxKeyLogger, &l)

		c.Next()

		emitAccess(c, start, "http_request", func(ev *zerolog.Event) {
			ev.Str("query", query).Interface("headers", headers)
		})
	}
}

// sensitiveParams are query parameters whose values are never logged.
var sensitiveParams = map[string]struct{}{
	"otp":          {},
	"code":         {},
	"token":        {},
	"access_token": {},
	"password":     {},
}

// scrubQuery blanks the values of sensitiveParams in a raw query string,
// leaving parameter order and every other byte as sent.
func scrubQuery(raw string) string {
	if raw == "" {
		return raw
	}
	parts := strings.Split(raw, "&")
	for i, p := range parts {
		k, _, hasVal := strings.Cut(p, "=")
		if !hasVal {
			continue
		}
		if _, ok := sensitiveParams[strings.ToLower(k)]; ok {
			parts[i] = k + "=[REDACTED]"
		}
	}
	return strings.Join(parts, "&")
}
