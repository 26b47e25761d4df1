// Bearer-token authentication. RequireSession stores the caller under
// "userID" and "user", where rate limiting, idempotency and handlers read it.

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
)

const (
	ctxKeyUserID = "userID"
	ctxKeyUser   = "user"
	ctxKeyToken  = "session.token"
)

// SessionResolver maps a bearer token to its user.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*domain.User, error)
}

// BearerToken returns the token from "Authorization: Bearer <token>", or "".
func BearerToken(c *gin.Context) string {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

// RequireSession rejects requests without a valid session with 401. On
// success the request-scoped logger is re-bound with the user id.
func RequireSession(res SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}
		u, err := res.ResolveSession(c.Request.Context(), token)
		if err != nil || u == nil {
			abortUnauthorized(c, "invalid or expired session")
			return
		}

		c.Set(ctxKeyUserID, u.ID)
		c.Set(ctxKeyUser, u)
		c.Set(ctxKeyToken, token)

		lg := LoggerFrom(c).With().Str("user_id", u.ID).Logger()
		c.Set(ctxKeyLogger, &lg)

		c.Next()
	}
}

// CurrentUser returns the user stored by RequireSession.
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(ctxKeyUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok && u != nil
}

// SessionToken returns the raw token accepted by RequireSession.
func SessionToken(c *gin.Context) string {
	return asString(c.Value(ctxKeyToken))
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="zerohunger"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": requestIDOf(c),
		"code":       "unauthorized",
		"message":    msg,
	})
}
