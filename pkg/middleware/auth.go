package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/docflow/docflow/client/internal/api"
	"github.com/docflow/docflow/client/internal/session"
	"github.com/docflow/docflow/client/internal/token"
	"github.com/docflow/docflow/client/pkg/logger"
	"github.com/gin-gonic/gin"
)

const (
	SessionCookie = "docflow_session"
	claimsKey     = "claims"
	tokensKey     = "tokens"
	sessionKey    = "session_id"
)

// SessionResolver maps a session cookie onto the stored upstream token.
type SessionResolver interface {
	Resolve(ctx context.Context, id string) (string, error)
	Handle(id string) *session.Handle
	Revoked(ctx context.Context, tok string) (bool, error)
}

// headerToken serves a token taken from the request's Authorization header.
// Clearing it is a no-op: the caller owns that token.
type headerToken string

func (h headerToken) Token(context.Context) (string, error) { return string(h), nil }
func (h headerToken) Clear(context.Context) error           { return nil }

// Unauthorized aborts with 401 and tells the browser where to log in.
func Unauthorized(c *gin.Context, msg, loginPath string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "redirect": loginPath})
}

// AuthMiddleware resolves the upstream token from the session cookie or a
// Bearer header. With a non-empty secret the signature is verified too.
func AuthMiddleware(sessions SessionResolver, secret []byte, loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			raw    string
			source api.TokenSource
		)
		if id, err := c.Cookie(SessionCookie); err == nil && id != "" && sessions != nil {
			tok, err := sessions.Resolve(c.Request.Context(), id)
			if err != nil {
				logger.Errorf("session lookup failed: %v", err)
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
				return
			}
			if tok == "" {
				Unauthorized(c, "session expired", loginPath)
				return
			}
			raw, source = tok, sessions.Handle(id)
			c.Set(sessionKey, id)
		} else if auth := c.GetHeader("Authorization"); auth != "" {
			if !strings.HasPrefix(auth, token.BearerPrefix) {
				Unauthorized(c, "invalid Authorization header", loginPath)
				return
			}
			raw = token.Strip(auth)
			source = headerToken(raw)
		}
		if raw == "" {
			Unauthorized(c, "missing credentials", loginPath)
			return
		}
		if sessions != nil {
			revoked, err := sessions.Revoked(c.Request.Context(), raw)
			if err != nil {
				logger.Errorf("revocation lookup failed: %v", err)
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
				return
			}
			if revoked {
				Unauthorized(c, "token revoked", loginPath)
				return
			}
		}

		var (
			claims *token.Claims
			err    error
		)
		if len(secret) > 0 {
			claims, err = token.Verify(raw, secret)
		} else {
			claims, err = token.Decode(raw)
		}
		if err != nil {
			Unauthorized(c, "invalid token", loginPath)
			return
		}
		if claims.Expired(time.Now()) {
			Unauthorized(c, "token expired", loginPath)
			return
		}

		c.Set(claimsKey, claims)
		c.Set(tokensKey, source)
		c.Next()
	}
}

// Claims returns the claims set by AuthMiddleware, or nil.
func Claims(c *gin.Context) *token.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	cl, _ := v.(*token.Claims)
	return cl
}

// Tokens returns the per-request token source set by AuthMiddleware.
func Tokens(c *gin.Context) api.TokenSource {
	v, ok := c.Get(tokensKey)
	if !ok {
		return nil
	}
	ts, _ := v.(api.TokenSource)
	return ts
}

// SessionID returns the cookie session of the request, if any.
func SessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}

// subjectKey prefers the authenticated user over the client address.
func subjectKey(c *gin.Context) string {
	if cl := Claims(c); cl != nil && cl.UserID != "" {
		return "uid:" + string(cl.UserID)
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}
