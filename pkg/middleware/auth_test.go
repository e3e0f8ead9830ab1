package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/docflow/docflow/client/internal/session"
	"github.com/docflow/docflow/client/internal/token"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("middleware-test-secret-xxxxxxxxx")

func signed(t *testing.T, c token.Claims) string {
	raw, err := token.Sign(testSecret, &c, time.Hour)
	require.NoError(t, err)
	return raw
}

func protectedEngine(sessions SessionResolver, secret []byte) *gin.Engine {
	gin.SetMode(gin.TestMode)
	g := gin.New()
	g.GET("/", AuthMiddleware(sessions, secret, "/login"), func(c *gin.Context) {
		tok, _ := Tokens(c).Token(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"uid": string(Claims(c).UserID), "token": tok, "session": SessionID(c)})
	})
	return g
}

func TestAuthMiddleware_NoCredentials(t *testing.T) {
	g := protectedEngine(nil, nil)
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusUnauthorized, rw.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &body))
	require.Equal(t, "/login", body["redirect"])
}

func TestAuthMiddleware_InvalidHeader(t *testing.T) {
	g := protectedEngine(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "BadHeader")
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	require.Equal(t, http.StatusUnauthorized, rw.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rw = httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	require.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestAuthMiddleware_BearerToken(t *testing.T) {
	g := protectedEngine(nil, testSecret)
	raw := signed(t, token.Claims{UserID: "7"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)

	require.Equal(t, http.StatusOK, rw.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &body))
	require.Equal(t, "7", body["uid"])
	require.Equal(t, raw, body["token"])
	require.Empty(t, body["session"])
}

func TestAuthMiddleware_RejectsBadSignature(t *testing.T) {
	g := protectedEngine(nil, []byte("another-secret-yyyyyyyyyyyyyyyyy"))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, token.Claims{UserID: "7"}))
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	require.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestAuthMiddleware_RejectsExpiredToken(t *testing.T) {
	g := protectedEngine(nil, nil)
	c := token.Claims{UserID: "7"}
	c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &c).SignedString(testSecret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	require.Equal(t, http.StatusUnauthorized, rw.Code)
	require.Contains(t, rw.Body.String(), "token expired")
}

func TestAuthMiddleware_SessionCookie(t *testing.T) {
	svc := session.NewService(session.NewMemoryStore(), time.Hour)
	raw := signed(t, token.Claims{UserID: "9"})
	id, err := svc.CreateSession(context.Background(), raw)
	require.NoError(t, err)

	g := protectedEngine(svc, testSecret)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: id})
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)

	require.Equal(t, http.StatusOK, rw.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &body))
	require.Equal(t, "9", body["uid"])
	require.Equal(t, id, body["session"])

	require.NoError(t, svc.Destroy(context.Background(), id))
	rw = httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	require.Equal(t, http.StatusUnauthorized, rw.Code)
	require.Contains(t, rw.Body.String(), "session expired")
}

func TestAuthMiddleware_RevokedBearerToken(t *testing.T) {
	svc := session.NewService(session.NewMemoryStore(), time.Hour)
	raw := signed(t, token.Claims{UserID: "9"})
	g := protectedEngine(svc, testSecret)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	require.Equal(t, http.StatusOK, rw.Code)

	require.NoError(t, svc.Revoke(context.Background(), raw))
	rw = httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	require.Equal(t, http.StatusUnauthorized, rw.Code)
	require.Contains(t, rw.Body.String(), "token revoked")
}
