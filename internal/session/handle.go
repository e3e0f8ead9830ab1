package session

import (
	"context"
	"time"

	"github.com/docflow/docflow/client/internal/token"
)

// Handle binds a Store to one key. It is the explicit session object handed
// to the request guard and the document services.
type Handle struct {
	store Store
	key   string
}

func NewHandle(s Store, key string) *Handle {
	return &Handle{store: s, key: key}
}

func (h *Handle) Key() string { return h.key }

// Token returns the stored token or "" when none is stored.
func (h *Handle) Token(ctx context.Context) (string, error) {
	return h.store.Get(ctx, h.key)
}

// Save stores tok without any "Bearer " prefix, expiring with its exp claim.
func (h *Handle) Save(ctx context.Context, tok string) error {
	tok = token.Strip(tok)
	var ttl time.Duration
	if c, err := token.Decode(tok); err == nil && c.ExpiresAt != nil {
		ttl = time.Until(c.ExpiresAt.Time)
		if ttl <= 0 {
			ttl = time.Second
		}
	}
	return h.store.Set(ctx, h.key, tok, ttl)
}

func (h *Handle) Clear(ctx context.Context) error {
	return h.store.Delete(ctx, h.key)
}
