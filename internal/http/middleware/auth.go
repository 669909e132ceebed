// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides token authentication. Identity lives in the users table
// keyed by API token; production deployments sit behind a hosted auth
// provider and only mirror identities here. Two extractors exist because the
// public surface historically used both: resource endpoints take a bearer
// token, the status-update endpoint takes a session cookie.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mechanicondemand/go-backend/internal/domain"
	"github.com/mechanicondemand/go-backend/internal/repo"
)

const (
	// ctxKeyUser is the Gin context key holding the authenticated *domain.User.
	ctxKeyUser = "authUser"
	// sessionCookieName carries the session token for cookie-authenticated routes.
	sessionCookieName = "mod_session"
)

// UserFrom returns the authenticated user attached by an auth middleware,
// or nil when the request is unauthenticated.
func UserFrom(c *gin.Context) *domain.User {
	if v, ok := c.Get(ctxKeyUser); ok {
		if u, ok := v.(*domain.User); ok {
			return u
		}
	}
	return nil
}

// BearerAuth authenticates requests via "Authorization: Bearer <token>".
// On success the resolved user is stored in the context together with the
// "userID" key consumed by logging and rate limiting. Missing or unknown
// tokens abort with 401.
func BearerAuth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(h, prefix) {
			unauthorized(c, "missing bearer token")
			return
		}
		authenticate(c, db, strings.TrimSpace(h[len(prefix):]))
	}
}

// SessionAuth authenticates requests via the session cookie. A bearer token
// is accepted as a fallback so API clients can reach cookie-first routes.
func SessionAuth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok, err := c.Cookie(sessionCookieName); err == nil && tok != "" {
			authenticate(c, db, tok)
			return
		}
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			authenticate(c, db, strings.TrimSpace(h[len("Bearer "):]))
			return
		}
		unauthorized(c, "missing session")
	}
}

// authenticate resolves token to a user and either attaches it or aborts.
func authenticate(c *gin.Context, db *gorm.DB, token string) {
	if token == "" {
		unauthorized(c, "empty token")
		return
	}
	user, err := repo.GetUserByToken(c.Request.Context(), db, token)
	if err != nil {
		unauthorized(c, "invalid token")
		return
	}
	c.Set(ctxKeyUser, user)
	c.Set("userID", user.ID)
	c.Next()
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       "unauthorized",
		"message":    msg,
	})
}
