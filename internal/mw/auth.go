package mw

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cmms-backend/internal/auth"
	"cmms-backend/internal/model"
	"cmms-backend/internal/session"
)

// Context keys set by Auth.
const (
	UserKey      = "cmms.username"
	userValueKey = "cmms.user"
	remainingKey = "cmms.remaining"
)

// TokenParser validates bearer tokens.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// SessionChecker reports and ends sessions.
type SessionChecker interface {
	Remaining(ctx context.Context, username string) (time.Duration, error)
	Logout(ctx context.Context, username string) error
}

// UserLookup resolves a username to its account.
type UserLookup interface {
	Get(username string) (model.User, error)
}

// Auth requires a valid bearer token whose user still has an active, unexpired
// session. An expired session is logged out before the request is rejected.
func Auth(tokens TokenParser, sessions SessionChecker, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := tokens.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ctx := c.Request.Context()
		remaining, err := sessions.Remaining(ctx, claims.Username)
		switch {
		case errors.Is(err, session.ErrExpired):
			if err := sessions.Logout(ctx, claims.Username); err != nil {
				log.Printf("Failed to log out expired session of %s: %v", claims.Username, err)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		case errors.Is(err, session.ErrNotActive):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
			return
		case err != nil:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		user, err := users.Get(claims.Username)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
			return
		}

		c.Set(UserKey, user.Username)
		c.Set(userValueKey, user)
		c.Set(remainingKey, remaining)
		c.Next()
	}
}

// CurrentUser returns the user set by Auth.
func CurrentUser(c *gin.Context) model.User {
	u, _ := c.Get(userValueKey)
	user, _ := u.(model.User)
	return user
}

// Remaining returns the session time left as checked by Auth.
func Remaining(c *gin.Context) time.Duration {
	return c.GetDuration(remainingKey)
}
