// Package flowtest runs an in-process stand-in for the flow, auth and
// minio-api services. Client tests point their base URL at it.
package flowtest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docflow/docflow/client/internal/token"
	"github.com/gin-gonic/gin"
)

// Call is one request the fake upstream received.
type Call struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   []byte
}

// JSON decodes the call body into a generic map.
func (c Call) JSON() map[string]interface{} {
	var m map[string]interface{}
	_ = json.Unmarshal(c.Body, &m)
	return m
}

type account struct {
	password string
	claims   token.Claims
}

type Server struct {
	*httptest.Server
	Repo   *Repo
	Secret []byte

	mu        sync.Mutex
	calls     []Call
	failRealm map[string]int
	delay     map[string]time.Duration
	reject    bool
	accounts  map[string]account
}

// New starts a fake upstream closed at the end of the test.
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := &Server{
		Repo:      NewRepo(),
		Secret:    []byte("flowtest-secret-0123456789abcdef"),
		failRealm: make(map[string]int),
		delay:     make(map[string]time.Duration),
		accounts:  make(map[string]account),
	}
	s.Server = httptest.NewServer(s.engine())
	t.Cleanup(s.Close)
	return s
}

// FailRealm makes GET /flow/documents/{realm} answer status.
func (s *Server) FailRealm(realm string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRealm[realm] = status
}

// DelayRealm holds the realm listing for d before answering.
func (s *Server) DelayRealm(realm string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay[realm] = d
}

// RejectTokens makes every authenticated route answer 401.
func (s *Server) RejectTokens(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject = on
}

// AddAccount registers credentials accepted by POST /auth/login.
func (s *Server) AddAccount(username, password string, claims token.Claims) {
	s.mu.Lock()
	defer s.mu.Unlock()
	claims.Username = username
	s.accounts[username] = account{password: password, claims: claims}
}

// Token signs claims with the server secret.
func (s *Server) Token(t testing.TB, claims token.Claims) string {
	t.Helper()
	raw, err := token.Sign(s.Secret, &claims, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo filters the recorded calls by method and path prefix.
func (s *Server) CallsTo(method, prefix string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method == method && strings.HasPrefix(c.Path, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) record(c *gin.Context) {
	body, _ := io.ReadAll(c.Request.Body)
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	s.mu.Lock()
	s.calls = append(s.calls, Call{
		Method: c.Request.Method,
		Path:   c.Request.URL.Path,
		Query:  c.Request.URL.RawQuery,
		Auth:   c.GetHeader("Authorization"),
		Body:   body,
	})
	s.mu.Unlock()
	c.Next()
}

// authenticate mirrors the flow service: a decodable bearer token is required.
func (s *Server) authenticate(c *gin.Context) {
	s.mu.Lock()
	reject := s.reject
	s.mu.Unlock()

	auth := c.GetHeader("Authorization")
	if reject || !strings.HasPrefix(auth, token.BearerPrefix) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate credentials"})
		return
	}
	claims, err := token.Decode(auth)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate credentials"})
		return
	}
	c.Set("claims", claims)
	c.Next()
}

func (s *Server) engine() *gin.Engine {
	r := gin.New()
	r.Use(s.record)

	r.POST("/auth/login", s.login)
	admin := r.Group("/auth/admin", s.authenticate)
	admin.GET("/groups/all/", s.listGroups)
	admin.GET("/groups/names", s.groupNames)
	admin.GET("/groups/:id/reviewers", s.groupReviewers)
	admin.GET("/users/:id/username", s.username)

	flow := r.Group("/flow", s.authenticate)
	flow.GET("/documents/:id", s.listRealm)
	flow.POST("/documents/:id", s.createDocument)
	flow.PUT("/documents/:id", s.updateDocument)
	flow.PATCH("/documents/:id", s.updateDocument)
	flow.GET("/documents/:id/details", s.documentDetail)
	flow.POST("/documents/:id/submit-for-review", s.submitForReview)
	flow.POST("/documents/:id/review-action", s.reviewAction)
	flow.GET("/documents/:id/review-history", s.reviewHistory)
	flow.GET("/notifications/", s.listNotifications)
	flow.PATCH("/notifications/:id", s.markNotification)

	r.POST("/minio-api/generate-upload-url/:uid", s.presign)
	r.PUT("/objects/*key", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/objects/*key", func(c *gin.Context) {
		c.String(http.StatusOK, "# %s\n", strings.TrimPrefix(c.Param("key"), "/"))
	})
	return r
}
