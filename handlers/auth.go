package handlers

import (
	"errors"
	"net/http"

	"github.com/docflow/docflow/client/internal/api"
	"github.com/docflow/docflow/client/internal/directory"
	"github.com/docflow/docflow/client/internal/nav"
	"github.com/docflow/docflow/client/internal/token"
	"github.com/docflow/docflow/client/pkg/logger"
	"github.com/docflow/docflow/client/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// LoginRequest is accepted as JSON or as a form.
type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// UserInfo is the public view of the caller's token.
type UserInfo struct {
	UserID     token.UserID `json:"uid"`
	Username   string       `json:"username"`
	GlobalRole string       `json:"globalRole"`
	IsAdmin    bool         `json:"isAdmin"`
	Realms     []string     `json:"realms"`
	ExpiresAt  int64        `json:"expiresAt,omitempty"`
}

func userInfo(c *token.Claims) UserInfo {
	info := UserInfo{
		UserID:     c.UserID,
		Username:   c.Username,
		GlobalRole: c.GlobalRole,
		IsAdmin:    c.IsAdmin(),
		Realms:     c.RealmIDs(),
	}
	if c.ExpiresAt != nil {
		info.ExpiresAt = c.ExpiresAt.Unix()
	}
	return info
}

// Login exchanges credentials with the auth service and opens a server-side
// session holding the upstream token.
func (g *Gateway) Login(c *gin.Context) {
	if g.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session store not configured"})
		return
	}
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// the login page itself: a rejected password must not count as a forced logout
	client := api.New(api.Options{
		BaseURL:   g.cfg.API.BaseURL,
		Timeout:   g.cfg.API.RequestTimeout,
		Navigator: nav.NewLocation(g.loginPath(), nil),
		LoginPath: g.loginPath(),
		Transport: g.transport,
	})
	raw, err := directory.NewWithCache(client, nil, g.dirCache).Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "incorrect username or password"})
			return
		}
		g.fail(c, nil, err)
		return
	}
	claims, err := token.Decode(raw)
	if err != nil {
		logger.Warnf("login for %s returned an undecodable token: %v", req.Username, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "auth service returned an invalid token"})
		return
	}

	id, err := g.sessions.CreateSession(c.Request.Context(), raw)
	if err != nil {
		logger.Errorf("failed to create session: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to create session"})
		return
	}
	g.setCookie(c, id, g.cfg.Session.TTL)
	logger.Infow("session opened", "uid", string(claims.UserID), "username", claims.Username)
	c.JSON(http.StatusOK, gin.H{"user": userInfo(claims)})
}

// WhoAmI returns the identity behind the current session or bearer token.
func (g *Gateway) WhoAmI(c *gin.Context) {
	claims := middleware.Claims(c)
	if claims == nil {
		middleware.Unauthorized(c, "missing credentials", g.loginPath())
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userInfo(claims), "session": middleware.SessionID(c) != ""})
}

// Logout revokes the caller's token and destroys the server-side session, if
// any. Bearer callers get their token revoked the same way.
func (g *Gateway) Logout(c *gin.Context) {
	if g.sessions != nil {
		ctx := c.Request.Context()
		if raw, err := middleware.Tokens(c).Token(ctx); err == nil && raw != "" {
			if err := g.sessions.Revoke(ctx, raw); err != nil {
				logger.Errorf("failed to revoke token: %v", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to revoke token"})
				return
			}
		}
		if id := middleware.SessionID(c); id != "" {
			if err := g.sessions.Destroy(ctx, id); err != nil {
				logger.Errorf("failed to destroy session: %v", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to destroy session"})
				return
			}
		}
	}
	g.expireCookie(c)
	c.Status(http.StatusNoContent)
}
