package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"stocks-simulator/auth"

	"github.com/gin-gonic/gin"
)

const (
	// SessionCookie holds the session token for browser clients.
	SessionCookie = "session"
	// UserIDKey is the gin context key of the authenticated user id.
	UserIDKey = "user_id"
)

// SessionParser resolves a session token to a user id.
type SessionParser interface {
	Parse(ctx context.Context, token string) (uint, error)
}

// Token extracts the session token from the Authorization header or the
// session cookie.
func Token(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}

// RequireSession redirects anonymous requests to /login and rejects invalid
// sessions with 403. On success the user id is stored under UserIDKey.
func RequireSession(sessions SessionParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := Token(c)
		if token == "" {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}

		userID, err := sessions.Parse(c.Request.Context(), token)
		if err != nil {
			status := http.StatusForbidden
			if !errors.Is(err, auth.ErrInvalidSession) && !errors.Is(err, auth.ErrSessionRevoked) {
				status = http.StatusInternalServerError
			}
			c.AbortWithStatusJSON(status, gin.H{"error": "must log in"})
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// UserID returns the id stored by RequireSession.
func UserID(c *gin.Context) uint {
	return c.MustGet(UserIDKey).(uint)
}
