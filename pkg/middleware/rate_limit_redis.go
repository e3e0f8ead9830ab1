package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/docflow/docflow/client/pkg/logger"
	"github.com/docflow/docflow/client/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const redisLimitPrefix = "docflow:rl:"

// windowCounter counts hits per subject in fixed windows shared by every
// gateway replica.
type windowCounter struct {
	client  *redis.Client
	window  time.Duration
	allowed int64
}

// hit records one request and returns the count so far in the current
// window and the time left until the window closes.
func (w *windowCounter) hit(ctx context.Context, subject string, now time.Time) (int64, time.Duration, error) {
	start := now.Truncate(w.window)
	key := redisLimitPrefix + subject + ":" + strconv.FormatInt(start.Unix(), 10)

	var incr *redis.IntCmd
	_, err := w.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.Expire(ctx, key, w.window+time.Second)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return incr.Val(), start.Add(w.window).Sub(now), nil
}

// RedisRateLimitMiddleware allows floor(rps*window)+burst requests per subject
// and window. Without a client it falls back to the in-memory bucket.
func RedisRateLimitMiddleware(client *redis.Client, rps float64, burst int, window time.Duration) gin.HandlerFunc {
	if client == nil {
		return RateLimitMiddleware(rps, burst)
	}
	if window < time.Second {
		window = time.Second
	}
	wc := &windowCounter{
		client:  client,
		window:  window,
		allowed: int64(rps*window.Seconds()) + int64(burst),
	}
	return func(c *gin.Context) {
		cnt, left, err := wc.hit(c.Request.Context(), subjectKey(c), time.Now())
		if err != nil {
			logger.Errorf("rate limit check failed: %v", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "rate limit store unavailable"})
			return
		}
		if cnt > wc.allowed {
			secs := int64(left.Round(time.Second) / time.Second)
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.FormatInt(secs, 10))
			metrics.RateLimitRejected.WithLabelValues("redis").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("redis").Inc()
		c.Next()
	}
}
