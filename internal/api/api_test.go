package api

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/docflow/docflow/client/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memTokens struct {
	mu      sync.Mutex
	tok     string
	cleared int
}

func (m *memTokens) Token(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tok, nil
}

func (m *memTokens) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tok = ""
	m.cleared++
	return nil
}

type stubNav struct {
	loc       string
	redirects []string
}

func (n *stubNav) Location() string { return n.loc }

func (n *stubNav) Redirect(p string) {
	n.redirects = append(n.redirects, p)
	n.loc = p
}

func testToken() string {
	h := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	p := base64.RawURLEncoding.EncodeToString([]byte(`{"uid":3,"global_role":"user","realm_roles":{"1":["user"]}}`))
	return h + "." + p + ".c2ln"
}

func TestGuard_AttachesBearer(t *testing.T) {
	var gotAuth, gotReqID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-ID")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tok := testToken()
	c := New(Options{BaseURL: srv.URL, Timeout: time.Second, Tokens: &memTokens{tok: "Bearer " + tok}})

	var out map[string]bool
	require.NoError(t, c.Get(context.Background(), "/flow/ping", nil, &out))
	assert.True(t, out["ok"])
	assert.Equal(t, "Bearer "+tok, gotAuth)
	assert.NotEmpty(t, gotReqID)
}

func TestGuard_NoTokenSendsUnauthenticated(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, Tokens: &memTokens{}})
	require.NoError(t, c.Get(context.Background(), "/x", nil, nil))
	assert.Empty(t, gotAuth)
}

func TestGuard_UndecodableTokenStillSent(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, Tokens: &memTokens{tok: "garbage"}})
	require.NoError(t, c.Get(context.Background(), "/x", nil, nil))
	assert.Equal(t, "Bearer garbage", gotAuth)
}

func TestGuard_UnauthorizedClearsAndRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"expired"}`))
	}))
	defer srv.Close()

	tokens := &memTokens{tok: testToken()}
	nav := &stubNav{loc: "/notifications"}
	c := New(Options{BaseURL: srv.URL, Tokens: tokens, Navigator: nav})

	before := testutil.ToFloat64(metrics.ForcedLogouts)
	err := c.Get(context.Background(), "/flow/notifications/", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))

	assert.Empty(t, tokens.tok)
	assert.Equal(t, 1, tokens.cleared)
	assert.Equal(t, []string{"/login"}, nav.redirects)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ForcedLogouts))
}

func TestGuard_UnauthorizedOnLoginDoesNotRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := &memTokens{tok: testToken()}
	nav := &stubNav{loc: "/login?next=/"}
	c := New(Options{BaseURL: srv.URL, Tokens: tokens, Navigator: nav})

	err := c.Post(context.Background(), "/auth/login", url.Values{"username": {"a"}}, nil)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Empty(t, nav.redirects)
	assert.Equal(t, 0, tokens.cleared)
}

func TestClient_FormAndJSONBodies(t *testing.T) {
	var ct []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ct = append(ct, r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL + "/"})
	require.NoError(t, c.Post(context.Background(), "/a", url.Values{"k": {"v"}}, nil))
	require.NoError(t, c.Patch(context.Background(), "/b", map[string]string{"k": "v"}, nil))
	assert.Equal(t, []string{"application/x-www-form-urlencoded", "application/json"}, ct)
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	err := c.Get(context.Background(), "/slow", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded) || isTimeout(err))
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

func TestClient_FetchOmitsAuthorization(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("# title"))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: "http://unused", Tokens: &memTokens{tok: testToken()}})
	body, err := c.Fetch(context.Background(), srv.URL+"/bucket/1/markdown/a.md")
	require.NoError(t, err)
	assert.Equal(t, "# title", string(body))
	assert.Empty(t, gotAuth)
}

func TestAuthenticationError(t *testing.T) {
	cause := errors.New("bad payload")
	err := error(&AuthenticationError{Reason: "token cannot be decoded", Err: cause})
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, &AuthenticationError{Reason: "no token"}, ErrAuthentication)
}

func TestErrorSentinels(t *testing.T) {
	assert.ErrorIs(t, &Error{StatusCode: 404}, ErrNotFound)
	assert.ErrorIs(t, &Error{StatusCode: 403}, ErrForbidden)
	assert.NotErrorIs(t, &Error{StatusCode: 500}, ErrUnauthorized)
	assert.Equal(t, 0, StatusOf(errors.New("x")))
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, NewLimiter(0, 5))
	l := NewLimiter(5, 0)
	require.NotNil(t, l)
	assert.Equal(t, 1, l.Burst())
}
