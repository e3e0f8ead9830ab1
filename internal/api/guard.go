package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/docflow/docflow/client/internal/token"
	"github.com/docflow/docflow/client/pkg/logger"
	"github.com/docflow/docflow/client/pkg/metrics"
)

// TokenSource is the explicit session the guard reads the bearer token from.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// Navigator exposes the caller's current location and a way to move it.
type Navigator interface {
	Location() string
	Redirect(path string)
}

// Guard attaches the bearer token to outbound requests and turns an upstream
// 401 into a forced logout.
type Guard struct {
	tokens    TokenSource
	nav       Navigator
	loginPath string
}

func NewGuard(tokens TokenSource, nav Navigator, loginPath string) *Guard {
	if loginPath == "" {
		loginPath = "/login"
	}
	return &Guard{tokens: tokens, nav: nav, loginPath: loginPath}
}

// Prepare sets "Authorization: Bearer <token>" when a token is stored.
// Without a token the request goes out unauthenticated. A payload that does
// not decode is logged and the request is still sent.
func (g *Guard) Prepare(req *http.Request) {
	if g == nil || g.tokens == nil {
		return
	}
	raw, err := g.tokens.Token(req.Context())
	if err != nil {
		logger.Warnf("token store read failed, sending %s %s unauthenticated: %v", req.Method, req.URL.Path, err)
		return
	}
	tok := token.Strip(raw)
	if tok == "" {
		return
	}
	req.Header.Set("Authorization", token.BearerPrefix+tok)

	c, err := token.Decode(tok)
	if err != nil {
		logger.Warnf("request %s %s: cannot decode token payload: %v", req.Method, req.URL.Path, err)
		return
	}
	logger.Debugw("request with token", "method", req.Method, "path", req.URL.Path,
		"uid", string(c.UserID), "global_role", c.GlobalRole, "realms", c.RealmIDs())
}

// Observe inspects a response; a 401 clears the token and redirects to the
// login path unless the navigator is already there.
func (g *Guard) Observe(ctx context.Context, resp *http.Response) {
	if g == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		return
	}
	if g.nav != nil && strings.Contains(g.nav.Location(), g.loginPath) {
		return
	}
	if g.tokens != nil {
		if err := g.tokens.Clear(ctx); err != nil {
			logger.Errorf("clearing token after 401 failed: %v", err)
		}
	}
	metrics.ForcedLogouts.Inc()
	logger.Infof("upstream returned 401, redirecting to %s", g.loginPath)
	if g.nav != nil {
		g.nav.Redirect(g.loginPath)
	}
}

func (g *Guard) LoginPath() string { return g.loginPath }
