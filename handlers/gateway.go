package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/docflow/docflow/client/internal/api"
	"github.com/docflow/docflow/client/internal/config"
	"github.com/docflow/docflow/client/internal/directory"
	"github.com/docflow/docflow/client/internal/document/service"
	"github.com/docflow/docflow/client/internal/nav"
	"github.com/docflow/docflow/client/internal/notification"
	"github.com/docflow/docflow/client/internal/session"
	"github.com/docflow/docflow/client/internal/storage"
	"github.com/docflow/docflow/client/pkg/logger"
	"github.com/docflow/docflow/client/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// Options wires a Gateway.
type Options struct {
	Config   *config.Config
	Sessions *session.Service
	// Presigner signs upload URLs; nil asks the minio-api service.
	Presigner storage.Presigner
	// Transport is the upstream transport; nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// Gateway serves the browser-facing API on top of the flow, auth and
// minio-api services. Each request gets its own upstream client bound to the
// caller's token.
type Gateway struct {
	cfg       *config.Config
	sessions  *session.Service
	presigner storage.Presigner
	transport http.RoundTripper
	dirCache  *cache.Cache
	secure    bool
}

func NewGateway(opts Options) *Gateway {
	g := &Gateway{
		cfg:       opts.Config,
		sessions:  opts.Sessions,
		presigner: opts.Presigner,
		transport: opts.Transport,
		secure:    opts.Config.Server.Environment == "production",
	}
	if ttl := opts.Config.API.DirectoryTTL; ttl > 0 {
		g.dirCache = cache.New(ttl, 2*ttl)
	}
	return g
}

// Register mounts every /api route. extra runs after authentication, e.g. a
// per-user rate limiter.
func (g *Gateway) Register(r *gin.Engine, extra ...gin.HandlerFunc) {
	r.POST("/api/session", g.Login)

	var resolver middleware.SessionResolver
	if g.sessions != nil {
		resolver = g.sessions
	}
	chain := append([]gin.HandlerFunc{middleware.AuthMiddleware(resolver, []byte(g.cfg.JWT.Secret), g.loginPath())}, extra...)
	a := r.Group("/api", chain...)
	a.GET("/session", g.WhoAmI)
	a.DELETE("/session", g.Logout)
	g.registerDocuments(a)
	g.registerNotifications(a)
	g.registerDirectory(a)
	a.POST("/uploads", g.Upload)
}

func (g *Gateway) loginPath() string {
	if g.cfg.API.LoginPath == "" {
		return nav.Login.Pattern
	}
	return g.cfg.API.LoginPath
}

// scope is the upstream view of one request.
type scope struct {
	client *api.Client
	tokens api.TokenSource
	loc    *nav.Location
}

func (g *Gateway) scope(c *gin.Context) *scope {
	tokens := middleware.Tokens(c)
	loc := nav.NewLocation(c.Request.URL.Path, nil)
	client := api.New(api.Options{
		BaseURL:   g.cfg.API.BaseURL,
		Timeout:   g.cfg.API.RequestTimeout,
		Tokens:    tokens,
		Navigator: loc,
		LoginPath: g.loginPath(),
		Transport: g.transport,
	})
	return &scope{client: client, tokens: tokens, loc: loc}
}

func (s *scope) documents(g *Gateway) *service.Service {
	return service.New(s.client, s.tokens, s.directory(g), service.Options{
		AdminPolicy:  g.cfg.API.AdminRealmPolicy,
		DefaultRealm: g.cfg.API.DefaultRealm,
		Concurrency:  g.cfg.API.FetchConcurrency,
	})
}

func (s *scope) directory(g *Gateway) *directory.Service {
	return directory.NewWithCache(s.client, s.tokens, g.dirCache)
}

func (s *scope) notifications() *notification.Service {
	return notification.New(s.client)
}

// loggedOut reports whether an upstream 401 forced the caller to log in.
func (s *scope) loggedOut(g *Gateway) bool {
	return s.loc.Location() == g.loginPath()
}

// fail maps err onto a response. An upstream 401 has already cleared the
// session by the time it gets here.
func (g *Gateway) fail(c *gin.Context, s *scope, err error) {
	if s != nil && s.loggedOut(g) {
		g.expireCookie(c)
		middleware.Unauthorized(c, "session expired", g.loginPath())
		return
	}
	var status int
	switch {
	case errors.Is(err, api.ErrAuthentication), errors.Is(err, api.ErrUnauthorized):
		g.expireCookie(c)
		middleware.Unauthorized(c, err.Error(), g.loginPath())
		return
	case errors.Is(err, api.ErrInvalidInput), errors.Is(err, storage.ErrUnsupportedFileType):
		status = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	default:
		status = api.StatusOf(err)
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
	}
	if status >= 500 {
		logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	} else {
		logger.Debugf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func (g *Gateway) setCookie(c *gin.Context, id string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, id, int(ttl.Seconds()), "/", "", g.secure, true)
}

func (g *Gateway) expireCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", g.secure, true)
}
