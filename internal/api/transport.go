package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/docflow/docflow/client/pkg/metrics"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Transport is the http.RoundTripper every authenticated request goes through.
type Transport struct {
	Base    http.RoundTripper
	Guard   *Guard
	Limiter *rate.Limiter
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Limiter != nil {
		if err := t.Limiter.Wait(req.Context()); err != nil {
			metrics.RateLimitRejected.WithLabelValues("client").Inc()
			return nil, err
		}
		metrics.RateLimitAllowed.WithLabelValues("client").Inc()
	}

	// RoundTrippers must not mutate the caller's request
	out := req.Clone(req.Context())
	if out.Header.Get("X-Request-ID") == "" {
		out.Header.Set("X-Request-ID", uuid.NewString())
	}
	t.Guard.Prepare(out)

	start := time.Now()
	resp, err := t.base().RoundTrip(out)
	metrics.UpstreamLatency.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(req.Method, "network_error").Inc()
		return nil, err
	}
	metrics.UpstreamRequests.WithLabelValues(req.Method, outcome(resp.StatusCode)).Inc()
	t.Guard.Observe(req.Context(), resp)
	return resp, nil
}

func outcome(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return "unauthorized"
	case status >= 500:
		return "server_error"
	case status >= 400:
		return "client_error"
	case status >= 200 && status < 300:
		return "ok"
	}
	return strconv.Itoa(status)
}

// NewLimiter returns nil when rps is not positive (no client-side limit).
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
