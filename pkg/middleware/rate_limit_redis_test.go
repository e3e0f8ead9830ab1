package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func limitedEngine(h gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(h)
	r.GET("/r", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func hit(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/r", nil))
	return w
}

func TestRedisRateLimitMiddleware_Basic(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})

	// a long window keeps both requests in the same bucket
	r := limitedEngine(RedisRateLimitMiddleware(client, 0, 1, time.Hour))
	require.Equal(t, http.StatusOK, hit(r).Code)

	w := hit(r)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	secs, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	require.GreaterOrEqual(t, secs, 1)
	require.LessOrEqual(t, secs, 3600)

	keys := m.Keys()
	require.Len(t, keys, 1)
	require.True(t, strings.HasPrefix(keys[0], redisLimitPrefix))
	require.True(t, m.TTL(keys[0]) > 0)
}

func TestWindowCounter_NewWindowResets(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	wc := &windowCounter{client: redis.NewClient(&redis.Options{Addr: m.Addr()}), window: time.Minute, allowed: 1}
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 10, 0, 10, 0, time.UTC)

	cnt, left, err := wc.hit(ctx, "user:7", now)
	require.NoError(t, err)
	require.EqualValues(t, 1, cnt)
	require.Equal(t, 50*time.Second, left)

	cnt, _, err = wc.hit(ctx, "user:7", now.Add(20*time.Second))
	require.NoError(t, err)
	require.EqualValues(t, 2, cnt)

	cnt, _, err = wc.hit(ctx, "user:7", now.Add(time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 1, cnt)

	cnt, _, err = wc.hit(ctx, "user:8", now)
	require.NoError(t, err)
	require.EqualValues(t, 1, cnt)
}

func TestRedisRateLimitMiddleware_FallsBackWithoutClient(t *testing.T) {
	r := limitedEngine(RedisRateLimitMiddleware(nil, 0.5, 1, time.Second))
	require.Equal(t, http.StatusOK, hit(r).Code)
}

func TestRedisRateLimitMiddleware_StoreDown(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: m.Addr(), MaxRetries: -1})
	m.Close()

	r := limitedEngine(RedisRateLimitMiddleware(client, 1, 1, time.Second))
	require.Equal(t, http.StatusServiceUnavailable, hit(r).Code)
}
