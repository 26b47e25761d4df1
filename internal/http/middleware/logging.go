// Package middleware holds the Gin middleware shared by every route:
// correlation ids, access logging, panic recovery, sessions, idempotency,
// rate limiting, security headers, and HTTP metrics.
//
// Install the logging trio first and in this order, so that every log line
// and every error body carries the correlation id:
//
//	RequestID() → Logger() or RedactingLogger(...) → Recovery()
//
// The access logger leaves a request-scoped zerolog.Logger on the Gin
// context. Handlers fetch it with LoggerFrom; RequireSession re-binds it with
// the caller's user id once the session is resolved.
package middleware

import (
	"net/http"
	"regexp"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	ctxKeyLogger    = "logger"
	requestIDHeader = "X-Request-ID"

	// maxQueryLogLength caps the logged raw query, in bytes.
	maxQueryLogLength = 2048
	// maxRequestIDLength caps inbound correlation ids.
	maxRequestIDLength = 128
)

// requestIDPattern is what an inbound X-Request-ID must look like to be kept.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:\-]+$`)

// RequestID propagates the caller's X-Request-ID or mints a UUIDv4. Inbound
// values longer than 128 bytes or containing anything outside
// [A-Za-z0-9._:-] are replaced, so a client cannot smuggle newlines or JSON
// into log lines through the header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if len(rid) > maxRequestIDLength || !requestIDPattern.MatchString(rid) {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// requestIDOf returns the correlation id set by RequestID, falling back to
// the response header when the middleware ran on another engine.
func requestIDOf(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		return asString(v)
	}
	return c.Writer.Header().Get(requestIDHeader)
}

// routeOf is the registered route template, or the raw path for requests
// that matched nothing.
func routeOf(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

// Logger writes one structured access line per request.
//
// The line carries method, route, client IP, user agent, the query string
// with sensitive parameters scrubbed, request and response sizes, status,
// and latency. Routes with an :id parameter also log it as resource_id, and
// idempotent replays are flagged. 5xx responses and requests that recorded
// Gin errors log at error level, 4xx at warn, everything else at info.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		l := log.With().
			Str("request_id", requestIDOf(c)).
			Str("method", c.Request.Method).
			Str("path", routeOf(c)).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("referer", c.Request.Referer()).
			Str("query", truncate(scrubQuery(c.Request.URL.RawQuery), maxQueryLogLength)).
			Int64("bytes_in", c.Request.ContentLength). // -1 when unknown
			Logger()
		c.Set(ctxKeyLogger, &l)

		c.Next()

		emitAccess(c, start, "request", nil)
	}
}

// emitAccess writes the closing access line. It re-reads the logger from
// the context because RequireSession may have bound the user id after the
// line's logger was created. extra, when set, adds fields to the event.
func emitAccess(c *gin.Context, start time.Time, msg string, extra func(*zerolog.Event)) {
	lg := LoggerFrom(c)
	status := c.Writer.Status()

	var ev *zerolog.Event
	switch {
	case len(c.Errors) > 0:
		ev = lg.Error().Str("errors", c.Errors.String())
	case status >= 500:
		ev = lg.Error()
	case status >= 400:
		ev = lg.Warn()
	default:
		ev = lg.Info()
	}

	ev = ev.
		Int("status", status).
		Dur("latency", time.Since(start)).
		Int("bytes_out", c.Writer.Size())
	if id := c.Param("id"); id != "" {
		ev = ev.Str("resource_id", id)
	}
	if IsReplay(c) {
		ev = ev.Bool("replayed", true)
	}
	if extra != nil {
		extra(ev)
	}
	ev.Msg(msg)
}

// Recovery turns a panic into a logged stack trace and, if nothing was
// written yet, the standard JSON 500 envelope:
//
//	{"request_id": "...", "code": "internal_error", "message": "internal server error"}
//
// A panic after the handler started writing only aborts with 500, since the
// status line is already on the wire. Every recovered panic increments
// http_panics_total.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			httpPanics.WithLabelValues(routeOf(c)).Inc()

			rid := requestIDOf(c)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", rid).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, rid)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or a copy of the global
// logger when no access logger ran. The result is never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(ctxKeyLogger); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate cuts s to max bytes and appends an ellipsis. max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
